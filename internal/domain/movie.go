package domain

import (
	"context"
	"time"
)

// Movie is a catalog entry. Image holds either an external URL or a
// reference to a blob managed by a BlobStore.
type Movie struct {
	ID        string
	Title     string
	Image     string
	Link      string
	CreatedBy string
	CreatedAt time.Time
}

// MovieUpdate carries a partial update. A nil field is left unchanged;
// a non-nil field replaces the stored value.
type MovieUpdate struct {
	Title     *string
	Image     *string
	Link      *string
	CreatedBy *string
}

// Empty reports whether the update touches no fields.
func (u MovieUpdate) Empty() bool {
	return u.Title == nil && u.Image == nil && u.Link == nil && u.CreatedBy == nil
}

// MovieRepository persists movies. Every method is a single-record write
// or read; UpdateByID and DeleteByID return ErrNotFound for unknown IDs.
type MovieRepository interface {
	Create(ctx context.Context, movie *Movie) error
	List(ctx context.Context) ([]Movie, error)
	GetByID(ctx context.Context, id string) (*Movie, error)
	// UpdateByID applies upd and returns the record as stored afterwards.
	UpdateByID(ctx context.Context, id string, upd MovieUpdate) (*Movie, error)
	// DeleteByID removes the record and returns it so callers can clean up
	// anything it referenced.
	DeleteByID(ctx context.Context, id string) (*Movie, error)
}
