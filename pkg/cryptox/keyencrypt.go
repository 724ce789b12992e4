package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"
)

// sealInfo binds derived keys to their purpose so the same master key material
// can never produce a key that validates data sealed for something else.
const sealInfo = "xdauth session snapshot v1"

// ErrNoMasterKey is returned when neither a key file nor XDAUTH_MASTER_KEY is set.
var ErrNoMasterKey = errors.New("cryptox: no master key configured")

// Sealer performs authenticated encryption of data kept at rest (session
// snapshots) using AES-256-GCM with a key derived from master key material.
//
// Output format: [12-byte nonce][ciphertext][16-byte tag]
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives an AES-256 key from keyMaterial with HKDF-SHA256.
func NewSealer(keyMaterial []byte) (*Sealer, error) {
	if len(keyMaterial) == 0 {
		return nil, ErrNoMasterKey
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, keyMaterial, nil, []byte(sealInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive sealing key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{aead: gcm}, nil
}

// LoadSealer reads master key material from path, or from the XDAUTH_MASTER_KEY
// environment variable when path is empty.
func LoadSealer(path string) (*Sealer, error) {
	var keyMaterial []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read master key file: %w", err)
		}
		keyMaterial = data
	} else {
		keyMaterial = []byte(os.Getenv("XDAUTH_MASTER_KEY"))
	}
	return NewSealer(keyMaterial)
}

// Seal encrypts and authenticates plaintext with a random nonce.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open verifies and decrypts data produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("%w: sealed data too short", ErrCipher)
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCipher, err)
	}
	return plaintext, nil
}
