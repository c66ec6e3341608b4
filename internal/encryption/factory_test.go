package encryption

import (
	"fmt"
	"testing"

	"trail-go/internal/config"
)

func TestNewEncryptorFromConfig(t *testing.T) {
	tests := []struct {
		typ     string
		want    string
		wantErr bool
	}{
		{typ: "age", want: "*encryption.AgeEncryptor"},
		{typ: "", want: "*encryption.AgeEncryptor"},
		{typ: "test", want: "encryption.PlainEncryptor"},
		{typ: "rot13", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			enc, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: tt.typ})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEncryptorFromConfig() error = %v", err)
			}
			if got := fmt.Sprintf("%T", enc); got != tt.want {
				t.Errorf("type = %s, want %s", got, tt.want)
			}
		})
	}
}
