// Package store persists the ledger as a complete snapshot. Every backend
// overwrites the whole document on Save and treats an absent document as an
// empty ledger on Load.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rustyeddy/scalper/ledger"
)

// ErrCorrupt means a snapshot exists but cannot be decoded. Callers must not
// fall back to an empty ledger, since that would discard history.
var ErrCorrupt = errors.New("corrupt ledger snapshot")

type Store interface {
	Load(ctx context.Context) (*ledger.GlobalState, error)
	Save(ctx context.Context, g *ledger.GlobalState) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Type string // file, sqlite, redis, s3
	Path string

	Redis RedisOptions
	S3    S3Options
}

// Open constructs the backend named by opts.Type.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Type {
	case "", "file":
		return NewFile(opts.Path), nil
	case "sqlite":
		return NewSQLite(opts.Path)
	case "redis":
		return NewRedis(ctx, opts.Redis)
	case "s3":
		return NewS3(ctx, opts.S3)
	default:
		return nil, fmt.Errorf("store: unknown type %q", opts.Type)
	}
}
