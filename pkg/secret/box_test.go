package secret_test

import (
	"errors"
	"phishsim/pkg/secret"
	"testing"
)

func TestSealOpen(t *testing.T) {
	b, err := secret.NewBox("unit-test-key")
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}

	sealed, err := b.Seal("s3cr3t!")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed == "s3cr3t!" {
		t.Fatalf("sealed value equals plaintext")
	}

	again, _ := b.Seal("s3cr3t!")
	if again == sealed {
		t.Errorf("two seals of the same value are identical, nonce not random")
	}

	plain, err := b.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if plain != "s3cr3t!" {
		t.Errorf("Open() = %q, want %q", plain, "s3cr3t!")
	}
}

func TestOpenWithOtherKey(t *testing.T) {
	b1, _ := secret.NewBox("key-one")
	b2, _ := secret.NewBox("key-two")

	sealed, err := b1.Seal("password")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, err := b2.Open(sealed); !errors.Is(err, secret.ErrOpenSecretFailed) {
		t.Errorf("Open() err = %v, want ErrOpenSecretFailed", err)
	}

	if _, err := b1.Open("not base64 !!"); !errors.Is(err, secret.ErrMalformedSecret) {
		t.Errorf("Open() err = %v, want ErrMalformedSecret", err)
	}
}

func TestNewBoxEmptyKey(t *testing.T) {
	if _, err := secret.NewBox(""); !errors.Is(err, secret.ErrEmptyKey) {
		t.Errorf("NewBox(\"\") err = %v, want ErrEmptyKey", err)
	}
}
