package docpassword

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("s3cret-pass")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "s3cret-pass" || !strings.HasPrefix(hash, "$2") {
		t.Fatalf("expected a bcrypt hash, got %q", hash)
	}
	if err := Verify(hash, "s3cret-pass"); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if err := Verify(hash, "wrong-pass"); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
}

func TestHashLengthRules(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     error
	}{
		{name: "too short", password: "abc", want: ErrTooShort},
		{name: "multibyte counts runes", password: "ääääää", want: nil},
		{name: "too long", password: strings.Repeat("x", MaxBytes+1), want: ErrTooLong},
		{name: "max length", password: strings.Repeat("x", MaxBytes), want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Hash(tt.password)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Hash() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestVerifyEmptyHash(t *testing.T) {
	if err := Verify("", "anything"); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch for empty hash, got %v", err)
	}
}
