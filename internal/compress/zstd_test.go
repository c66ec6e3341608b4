package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZstd_Roundtrip(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", []byte{}},
		{"small", []byte("SQLite format 3\x00")},
		{"large", bytes.Repeat([]byte("route_data"), 50_000)},
	}

	z := NewZstd()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var packed bytes.Buffer
			require.NoError(t, z.Compress(bytes.NewReader(tt.input), &packed))

			var out bytes.Buffer
			require.NoError(t, z.Decompress(&packed, &out))
			assert.Equal(t, len(tt.input), out.Len())
			assert.True(t, bytes.Equal(tt.input, out.Bytes()), "round trip changed the data")
		})
	}
}

func TestZstd_ShrinksRepetitiveInput(t *testing.T) {
	input := bytes.Repeat([]byte("46.5000,7.9000;"), 10_000)
	var packed bytes.Buffer
	require.NoError(t, NewZstd().Compress(bytes.NewReader(input), &packed))
	assert.Less(t, packed.Len(), len(input)/10)
}

func TestZstd_InvalidInput(t *testing.T) {
	var out bytes.Buffer
	err := NewZstd().Decompress(bytes.NewReader([]byte("not valid zstd data")), &out)
	assert.Error(t, err)
}
