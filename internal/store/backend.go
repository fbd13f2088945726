// Package store provides the durable per-user document storage.
//
// Every document is stored whole under a single key. There is no partial
// update and no version check: concurrent writers for the same key race and
// the last Put wins.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/capitalize-ai/chat-sync/internal/config"
)

// ErrNotFound is returned by a Backend when a key has never been written.
var ErrNotFound = errors.New("document not found")

// Backend is a key/value store of encoded documents.
type Backend interface {
	// Get returns the stored bytes for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Open builds the backend selected by cfg.StoreBackend, wrapped in a
// read-through cache when cfg.DocumentCacheTTL is positive.
func Open(cfg *config.Config) (Backend, error) {
	var (
		b   Backend
		err error
	)

	switch cfg.StoreBackend {
	case config.BackendFile, "":
		b, err = NewFileBackend(cfg.DataDir)
	case config.BackendSQLite:
		b, err = NewSQLiteBackend(cfg.SQLitePath)
	case config.BackendRedis:
		b, err = NewRedisBackend(cfg.RedisURL, "chatsync:")
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.DocumentCacheTTL > 0 {
		b = NewCachedBackend(b, cfg.DocumentCacheTTL, 2*cfg.DocumentCacheTTL)
	}
	return b, nil
}

func documentKey(userID string) string {
	return "user_" + userID
}

func filesKey(userID string) string {
	return "files_" + userID
}

func nowMicro() int64 {
	return time.Now().UnixMicro()
}
