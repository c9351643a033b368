// Package apikey authenticates operators calling the recommender's admin
// routes: index rebuild, cache invalidation and internship import. Raw
// keys are generated with crypto/rand and only their SHA-256 digests are
// kept, either in configuration or in PostgreSQL.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidKey = errors.New("invalid api key")
	ErrExpiredKey = errors.New("api key expired")
)

// KeyInfo holds metadata about a validated API key.
type KeyInfo struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// Validator checks a raw key and returns its metadata, ErrInvalidKey or
// ErrExpiredKey.
type Validator interface {
	Validate(ctx context.Context, rawKey string) (*KeyInfo, error)
}

// Static accepts a fixed set of keys, typically from admin.apiKeys.
type Static struct {
	hashes []string
	infos  []KeyInfo
}

func NewStatic(rawKeys []string) *Static {
	s := &Static{}
	for i, raw := range rawKeys {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		hash := HashKey(raw)
		s.hashes = append(s.hashes, hash)
		s.infos = append(s.infos, KeyInfo{
			ID:       hash[:12],
			Name:     fmt.Sprintf("config-%d", i+1),
			IsActive: true,
		})
	}
	return s
}

// Len returns the number of configured keys.
func (s *Static) Len() int { return len(s.hashes) }

func (s *Static) Validate(_ context.Context, rawKey string) (*KeyInfo, error) {
	hash := HashKey(rawKey)
	for i, h := range s.hashes {
		if subtle.ConstantTimeCompare([]byte(h), []byte(hash)) == 1 {
			info := s.infos[i]
			return &info, nil
		}
	}
	return nil, ErrInvalidKey
}

// Chain tries each validator in order. An invalid key falls through to the
// next validator; any other error stops the chain.
type Chain []Validator

func (c Chain) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	for _, v := range c {
		info, err := v.Validate(ctx, rawKey)
		if errors.Is(err, ErrInvalidKey) {
			continue
		}
		return info, err
	}
	return nil, ErrInvalidKey
}

// HashKey returns the SHA-256 hex digest of a raw API key.
func HashKey(raw string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(raw)))
}

// GenerateKey returns a random 32-byte hex-encoded key.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
