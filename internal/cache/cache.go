// Package cache stores verification results keyed by normalized citation.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ppiankov/casecite/internal/model"
)

// Cache is a byte-oriented key/value store with per-entry TTL
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives the cache key for a normalized citation looked up in source.
// Citations are compared case-insensitively with whitespace collapsed.
func Key(source, citation string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(citation), " "))
	hash := sha256.Sum256([]byte(norm))
	return "casecite:v1:" + source + ":" + hex.EncodeToString(hash[:])
}

// New builds the cache described by cfg. A disabled cache is a no-op;
// with a disk directory the memory layer is backed by files.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return Nop{}
	}
	if cfg.DiskDir == "" {
		return NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)
	}
	return NewLayeredCache(cfg.MemoryTTL, cfg.DiskDir, cfg.DiskTTL)
}

// Nop never stores anything
type Nop struct{}

func (Nop) Get(string) ([]byte, bool)               { return nil, false }
func (Nop) Set(string, []byte, time.Duration) error { return nil }
func (Nop) Delete(string) error                     { return nil }
func (Nop) Clear() error                            { return nil }
