package domain

import "context"

// Database defines lifecycle operations for the underlying record store.
// Each implementation (MongoDB, SQLite) owns its own schema or index
// setup, so the store backend can be swapped without touching services.
type Database interface {
	Migrate(ctx context.Context) error
	Close() error
}
