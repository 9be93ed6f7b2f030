package wallet

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

const (
	vector12 = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	vector24 = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"
)

func TestGenerateMnemonic(t *testing.T) {
	seen := make(map[string]bool)
	for range 3 {
		m, err := GenerateMnemonic()
		if err != nil {
			t.Fatalf("GenerateMnemonic: %v", err)
		}
		if n := len(strings.Fields(m)); n != 24 {
			t.Errorf("word count = %d, want 24", n)
		}
		if !ValidateMnemonic(m) {
			t.Errorf("generated mnemonic does not validate: %q", m)
		}
		if seen[m] {
			t.Fatal("duplicate mnemonic generated")
		}
		seen[m] = true
	}
}

func TestValidateMnemonic(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
		valid    bool
	}{
		{"24 words", vector24, true},
		{"12 words", vector12, true},
		{"empty", "", false},
		{"unknown words", "these words are not in the list", false},
		{"bad checksum", strings.Repeat("abandon ", 23) + "abandon", false},
		{"one word", "abandon", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateMnemonic(tt.mnemonic); got != tt.valid {
				t.Errorf("ValidateMnemonic = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestSeedFromMnemonic_Vector(t *testing.T) {
	seed, err := SeedFromMnemonic(vector12, "TREZOR")
	if err != nil {
		t.Fatalf("SeedFromMnemonic: %v", err)
	}
	want := "c55257c360c07c72029aebc1b53c05ed0362ada38ead3e3e9efa3708e53495531f09a6987599d18264c1e1c92f2cf141630c7a3c4ab7c81b2f001698e7463b04"
	if got := hex.EncodeToString(seed); got != want {
		t.Errorf("seed = %s, want %s", got, want)
	}
	if len(seed) != SeedSize {
		t.Errorf("seed length = %d, want %d", len(seed), SeedSize)
	}
}

func TestSeedFromMnemonic_Passphrase(t *testing.T) {
	a, err := SeedFromMnemonic(vector24, "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic: %v", err)
	}
	b, err := SeedFromMnemonic(vector24, "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic: %v", err)
	}
	c, err := SeedFromMnemonic(vector24, "extra")
	if err != nil {
		t.Fatalf("SeedFromMnemonic: %v", err)
	}
	if hex.EncodeToString(a) != hex.EncodeToString(b) {
		t.Error("same mnemonic and passphrase gave different seeds")
	}
	if hex.EncodeToString(a) == hex.EncodeToString(c) {
		t.Error("passphrase did not change the seed")
	}
}

func TestSeedFromMnemonic_Invalid(t *testing.T) {
	for _, m := range []string{"", "not valid words here"} {
		if _, err := SeedFromMnemonic(m, ""); !errors.Is(err, ErrInvalidMnemonic) {
			t.Errorf("SeedFromMnemonic(%q) error = %v, want ErrInvalidMnemonic", m, err)
		}
	}
}
