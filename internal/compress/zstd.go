// Package compress provides the stream compressor used for database backups.
package compress

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"trail-go/internal/trail"
)

// Zstd compresses streams with zstd. A new encoder or decoder is created per
// call because backups are infrequent and the stream APIs are not safe for
// concurrent reuse.
type Zstd struct {
	level zstd.EncoderLevel
}

var _ trail.Compressor = (*Zstd)(nil)

func NewZstd() *Zstd {
	return &Zstd{level: zstd.SpeedBetterCompression}
}

func (z *Zstd) Compress(r io.Reader, w io.Writer) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(z.level))
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	if _, err := enc.ReadFrom(r); err != nil {
		enc.Close()
		return fmt.Errorf("compressing: %w", err)
	}
	return enc.Close()
}

func (z *Zstd) Decompress(r io.Reader, w io.Writer) error {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	if _, err := dec.WriteTo(w); err != nil {
		return fmt.Errorf("decompressing: %w", err)
	}
	return nil
}
