// Package secret seals credentials that are stored at rest, such as the SMTP password.
package secret

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// purpose binds derived keys to one kind of secret
const purpose = "phishsim.smtp-password.v1"

var (
	ErrEmptyKey         = errors.New("empty secret key")
	ErrMalformedSecret  = errors.New("malformed sealed secret")
	ErrOpenSecretFailed = errors.New("open sealed secret failed")
)

type Box interface {
	Seal(plain string) (string, error)
	Open(sealed string) (string, error)
}

type box struct {
	aead cipher.AEAD
}

func NewBox(key string) (Box, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	derived := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(key), nil, []byte(purpose)), derived); err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(derived)
	if err != nil {
		return nil, err
	}

	return &box{aead: aead}, nil
}

func (b *box) Seal(plain string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize(), b.aead.NonceSize()+len(plain)+b.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := b.aead.Seal(nonce, nonce, []byte(plain), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (b *box) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrMalformedSecret
	}

	if len(raw) < b.aead.NonceSize()+b.aead.Overhead() {
		return "", ErrMalformedSecret
	}

	nonce, ciphertext := raw[:b.aead.NonceSize()], raw[b.aead.NonceSize():]

	plain, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrOpenSecretFailed
	}

	return string(plain), nil
}
