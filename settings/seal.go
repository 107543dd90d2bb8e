package settings

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const sealPrefix = "sb1:"

// sealer encrypts the stored credential at rest. A nil sealer stores plaintext.
type sealer struct {
	key [32]byte
}

func newSealer(secret string) *sealer {
	if secret == "" {
		return nil
	}
	return &sealer{key: sha256.Sum256([]byte(secret))}
}

func (s *sealer) seal(plain string) (string, error) {
	if s == nil {
		return plain, nil
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return sealPrefix + base64.StdEncoding.EncodeToString(box), nil
}

func (s *sealer) open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealPrefix) {
		// written before a secret was configured
		return stored, nil
	}
	if s == nil {
		return "", errors.New("credential is sealed but no secret is configured")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed credential: %w", err)
	}
	if len(raw) < 24+secretbox.Overhead {
		return "", errors.New("sealed credential too short")
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &s.key)
	if !ok {
		return "", errors.New("failed to open sealed credential: wrong secret?")
	}
	return string(plain), nil
}
