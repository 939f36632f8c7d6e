package apikey

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		key, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if len(key) != Length {
			t.Errorf("Expected length %d, got %d (%q)", Length, len(key), key)
		}
		if !strings.HasPrefix(key, Prefix) {
			t.Errorf("Expected prefix %q, got %q", Prefix, key)
		}
		if !ValidFormat(key) {
			t.Errorf("Generated key %q does not pass ValidFormat", key)
		}
		if seen[key] {
			t.Fatalf("Duplicate key generated: %q", key)
		}
		seen[key] = true
	}
}

func TestValidFormat(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		valid bool
	}{
		{"valid", "fk_" + strings.Repeat("a", 32), true},
		{"valid with symbols", "fk_" + strings.Repeat("A-_9", 8), true},
		{"empty", "", false},
		{"prefix only", "fk_", false},
		{"wrong prefix", "sk_" + strings.Repeat("a", 32), false},
		{"uppercase prefix", "FK_" + strings.Repeat("a", 32), false},
		{"too short", "fk_" + strings.Repeat("a", 31), false},
		{"too long", "fk_" + strings.Repeat("a", 33), false},
		{"invalid char", "fk_" + strings.Repeat("a", 31) + ".", false},
		{"space", "fk_" + strings.Repeat("a", 31) + " ", false},
		{"non-ascii", "fk_" + strings.Repeat("a", 29) + "é", false},
		{"masked preview", MaskedPreview, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidFormat(tt.key); got != tt.valid {
				t.Errorf("ValidFormat(%q) = %v, want %v", tt.key, got, tt.valid)
			}
		})
	}
}
