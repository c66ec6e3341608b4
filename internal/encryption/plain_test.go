package encryption

import (
	"bytes"
	"testing"
)

func TestPlainEncryptor_RoundTrip(t *testing.T) {
	e := NewPlainEncryptor()

	var sealed bytes.Buffer
	if err := e.Encrypt(bytes.NewReader([]byte("sqlite bytes")), &sealed); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if !bytes.HasPrefix(sealed.Bytes(), plainMagic) {
		t.Errorf("sealed output missing marker: %q", sealed.Bytes())
	}

	dc, err := e.Unlock("anything")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	var out bytes.Buffer
	if err := dc.Decrypt(&sealed, &out); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if out.String() != "sqlite bytes" {
		t.Errorf("Decrypt() = %q", out.String())
	}
}

func TestPlainEncryptor_RejectsUnsealed(t *testing.T) {
	dc, _ := NewPlainEncryptor().Unlock("")

	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"short", []byte("TRAIL")},
		{"wrong marker", []byte("SQLite format 3\x00")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := dc.Decrypt(bytes.NewReader(tt.input), &out); err == nil {
				t.Error("Decrypt() on unsealed input should fail")
			}
		})
	}
}
