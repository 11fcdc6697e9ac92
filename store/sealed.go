package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const sealedPrefix = "sealed:v1:"

// ErrSealed is returned when a sealed value cannot be opened with the
// configured secret
var ErrSealed = errors.New("sealed value cannot be opened")

// SealedKV encrypts selected keys before they reach the underlying store
type SealedKV struct {
	next   KV
	key    [32]byte
	sealed map[string]bool
}

var _ KV = (*SealedKV)(nil)

// NewSealedKV derives a secretbox key from secret and seals the given keys
func NewSealedKV(next KV, secret string, keys ...string) (*SealedKV, error) {
	if secret == "" {
		return nil, errors.New("credential secret is empty")
	}

	s := &SealedKV{next: next, sealed: make(map[string]bool, len(keys))}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("social-dashboard credential store"))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	for _, k := range keys {
		s.sealed[k] = true
	}
	return s, nil
}

func (s *SealedKV) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	value, ok, err := s.next.Get(ctx, namespace, key)
	if err != nil || !ok || !s.sealed[key] {
		return value, ok, err
	}

	// values written before sealing was configured are returned as stored
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, true, nil
	}

	opened, err := s.open(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", false, fmt.Errorf("key %s: %w", key, err)
	}
	return opened, true, nil
}

func (s *SealedKV) Set(ctx context.Context, namespace, key, value string) error {
	if !s.sealed[key] || value == "" {
		return s.next.Set(ctx, namespace, key, value)
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(value), &nonce, &s.key)
	return s.next.Set(ctx, namespace, key, sealedPrefix+base64.RawURLEncoding.EncodeToString(box))
}

func (s *SealedKV) Delete(ctx context.Context, namespace string, keys ...string) error {
	return s.next.Delete(ctx, namespace, keys...)
}

func (s *SealedKV) open(encoded string) (string, error) {
	box, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(box) < 24 {
		return "", ErrSealed
	}

	var nonce [24]byte
	copy(nonce[:], box[:24])
	opened, ok := secretbox.Open(nil, box[24:], &nonce, &s.key)
	if !ok {
		return "", ErrSealed
	}
	return string(opened), nil
}
