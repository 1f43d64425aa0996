// Package auth authenticates API clients by key.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no active key matches a hash.
var ErrKeyNotFound = errors.New("api key not found")

// Scope names an operation a key is allowed to perform.
type Scope = string

const (
	// ScopePlaceOrder allows submitting orders.
	ScopePlaceOrder Scope = "place_order"
	// ScopeReadOrder allows fetching stored orders.
	ScopeReadOrder Scope = "read_order"
)

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
	Active  bool
}

// HasScope reports whether the key grants s.
func (k *APIKeyInfo) HasScope(s Scope) bool {
	return slices.Contains(k.Scopes, s)
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// Writer stores API keys.
type Writer interface {
	Upsert(ctx context.Context, key APIKeyInfo) error
}

// HashKey returns the hex HMAC-SHA256 of key under pepper. Only hashes are
// stored.
func HashKey(pepper []byte, key string) string {
	return hex.EncodeToString(Sum(pepper, key))
}

// Sum returns the raw HMAC-SHA256 of key under pepper.
func Sum(pepper []byte, key string) []byte {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return mac.Sum(nil)
}
