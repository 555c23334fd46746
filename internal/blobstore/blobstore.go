// Package blobstore keeps sealed file contents outside the record store.
// Blobs are opaque: callers encrypt before Write and decrypt after Read.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Store is the filesystem collaborator for encrypted blobs.
//
// Read returns common.ErrorNotFound for a missing blob and Delete of a
// missing blob succeeds. Failures of the backend are wrapped with
// common.Storage.
type Store interface {
	Write(ctx context.Context, name string, data []byte) error
	Read(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
}

var ErrInvalidName = errors.New("invalid blob name")

var validName = regexp.MustCompile(`^[0-9a-f]{8,128}$`)

// checkName accepts the lowercase hex identifiers the vault generates, which
// also rules out path traversal.
func checkName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Options selects and configures a backend.
type Options struct {
	Backend string // "fs" or "s3"
	Dir     string
	S3      S3Config
}

// Open builds the Store named by o.Backend.
func Open(ctx context.Context, o Options) (Store, error) {
	switch o.Backend {
	case "", "fs":
		return NewFSStore(o.Dir)
	case "s3":
		return NewS3Store(ctx, o.S3)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", o.Backend)
	}
}
