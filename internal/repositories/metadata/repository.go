// Package metadata is a small key/value store for vault settings such as the
// dead-man's switch configuration.
package metadata

import (
	"context"
)

// Repository stores raw values by key. Get returns (nil, nil) for a missing
// key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
