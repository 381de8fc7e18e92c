package auth

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestKeyringStore_RoundTrip(t *testing.T) {
	keyring.MockInit()
	store := NewKeyringStore("")

	if _, err := store.GetToken(APIKey); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
	if err := store.SetToken(" API ", "secret-token"); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}
	got, err := store.GetToken(APIKey)
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if got != "secret-token" {
		t.Errorf("GetToken = %q, want secret-token", got)
	}
	if err := store.DeleteToken(APIKey); err != nil {
		t.Fatalf("DeleteToken failed: %v", err)
	}
	if err := store.DeleteToken(APIKey); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound on second delete, got %v", err)
	}
}

func TestMask(t *testing.T) {
	for in, want := range map[string]string{
		"":             "****",
		"abc":          "****",
		"tok_abcd1234": "****1234",
	} {
		if got := Mask(in); got != want {
			t.Errorf("Mask(%q) = %q, want %q", in, got, want)
		}
	}
}
