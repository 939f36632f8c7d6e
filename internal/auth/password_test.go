package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("Expected hash to differ from plain text")
	}

	tests := []struct {
		name  string
		hash  string
		plain string
		want  bool
	}{
		{"match", hash, "correct horse", true},
		{"mismatch", hash, "wrong horse", false},
		{"empty hash", "", "correct horse", false},
		{"empty password", hash, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyPassword(tt.hash, tt.plain); got != tt.want {
				t.Errorf("VerifyPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}
