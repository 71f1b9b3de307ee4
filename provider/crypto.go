package provider

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/hkdf"
)

const (
	keySize = 32 // AES-256
	// minKeyMaterial is the shortest key file accepted.
	minKeyMaterial = 16
)

// storeAAD binds ciphertext to the local store format.
var storeAAD = []byte("envline-local-store-v1")

// sealer encrypts store documents with AES-GCM and a random nonce per write.
type sealer struct {
	aead cipher.AEAD
}

func newSealer(material []byte) (*sealer, error) {
	key, err := deriveKey(material)
	if err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &sealer{aead: aead}, nil
}

// seal returns nonce || ciphertext.
func (s *sealer) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, storeAAD), nil
}

func (s *sealer) open(sealed []byte) ([]byte, error) {
	size := s.aead.NonceSize()
	if len(sealed) < size {
		return nil, errors.New("ciphertext too short")
	}
	return s.aead.Open(nil, sealed[:size], sealed[size:], storeAAD)
}

// deriveKey stretches key material of any length into an AES-256 key with
// HKDF-SHA256. The info string scopes the key to the local store.
func deriveKey(material []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, material, nil, storeAAD)
	key := make([]byte, keySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// loadKeyMaterial reads the key from the configured environment variable
// or, failing that, from a private key file.
func loadKeyMaterial(cfg *EncryptionConfig) ([]byte, error) {
	if cfg.KeyEnv != "" {
		if v := os.Getenv(cfg.KeyEnv); v != "" {
			return []byte(v), nil
		}
		return nil, fmt.Errorf("key env var %s is empty or not set", cfg.KeyEnv)
	}
	if cfg.KeyFile == "" {
		return nil, errors.New("no key source provided; set encryption.key_env or encryption.key_file")
	}

	info, err := os.Stat(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("stat key file: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return nil, fmt.Errorf("key file %s is too permissive (%#o); run: chmod 600 %s", cfg.KeyFile, perm, cfg.KeyFile)
	}
	data, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	if len(data) < minKeyMaterial {
		return nil, fmt.Errorf("key file %s is too short (%d bytes); use at least %d bytes of random data", cfg.KeyFile, len(data), minKeyMaterial)
	}
	return data, nil
}

// GenerateKeyFile writes 32 random bytes to path with owner-only
// permissions, creating the parent directory if needed.
func GenerateKeyFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("key file %s already exists", path)
	}
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("generate random key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}
