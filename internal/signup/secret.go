package signup

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealInfo = "careconnect signup password v1"

var errSealed = errors.New("signup: sealed password unreadable")

// Sealer encrypts the password kept in a signup session, so the session
// store only ever holds ciphertext. Instances sharing a secret can open
// each other's sessions.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives its key from secret. An empty secret gets a random key
// that only this process can use.
func NewSealer(secret string) (*Sealer, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	var src io.Reader = rand.Reader
	if secret != "" {
		src = hkdf.New(sha256.New, []byte(secret), nil, []byte(sealInfo))
	}
	if _, err := io.ReadFull(src, key); err != nil {
		return nil, fmt.Errorf("signup: derive seal key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal returns nonce and ciphertext as one URL-safe string. The session ID
// is bound as additional data so a sealed value cannot move between
// sessions.
func (s *Sealer) Seal(sessionID, plain string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := s.aead.Seal(nonce, nonce, []byte(plain), []byte(sessionID))
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *Sealer) Open(sessionID, sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < s.aead.NonceSize() {
		return "", errSealed
	}
	nonce, box := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, box, []byte(sessionID))
	if err != nil {
		return "", errSealed
	}
	return string(plain), nil
}
