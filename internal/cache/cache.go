// Package cache holds listing and model responses keyed by the semantic query
// that produced them. A cold cache never changes results, only their cost.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

const (
	ListingTTL = 72 * time.Hour
	ModelTTL   = time.Hour
)

var ErrInvalidKey = errors.New("invalid cache key")

// Store is implemented by the in-process and Redis backends.
type Store interface {
	// Get reports a miss with ok=false. Errors mean the backend itself failed.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the entry. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Fingerprint derives a stable key from query parts. Parts are trimmed and
// lower-cased, so "Go Developer" and " go developer" share an entry.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0x1f})
		}
		h.Write([]byte(strings.ToLower(strings.TrimSpace(p))))
	}
	return hex.EncodeToString(h.Sum(nil))
}
