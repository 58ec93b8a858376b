package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/msomdec/movie-catalog/internal/domain"
)

// DefaultMaxImageSize is the upload limit used when none is configured.
const DefaultMaxImageSize = 10 * 1024 * 1024 // 10MB

// ImageUpload is an image file received from a client.
type ImageUpload struct {
	Filename string
	Data     []byte
}

// NewMovie is the input to Create. Upload takes precedence over ImageURL.
type NewMovie struct {
	Title     string
	Link      string
	CreatedBy string
	ImageURL  string
	Upload    *ImageUpload
}

// MovieChanges is the input to Update. Nil fields are left unchanged.
type MovieChanges struct {
	Title     *string
	Link      *string
	CreatedBy *string
	ImageURL  *string
	Upload    *ImageUpload
}

// MovieServiceOptions tunes validation.
type MovieServiceOptions struct {
	RequireImage bool
	MaxImageSize int64
}

// MovieService keeps movie records and their uploaded images consistent
// across create, update and delete.
type MovieService struct {
	movies       domain.MovieRepository
	blobs        domain.BlobStore
	requireImage bool
	maxImageSize int64
	recorder     LifecycleRecorder
}

// LifecycleRecorder observes lifecycle outcomes, typically for metrics.
type LifecycleRecorder interface {
	Operation(op string, err error)
	CleanupFailed(reason string)
}

type nopRecorder struct{}

func (nopRecorder) Operation(string, error) {}
func (nopRecorder) CleanupFailed(string)    {}

// NewMovieService creates a new MovieService.
func NewMovieService(movies domain.MovieRepository, blobs domain.BlobStore, opts MovieServiceOptions) *MovieService {
	if opts.MaxImageSize <= 0 {
		opts.MaxImageSize = DefaultMaxImageSize
	}
	return &MovieService{
		movies:       movies,
		blobs:        blobs,
		requireImage: opts.RequireImage,
		maxImageSize: opts.MaxImageSize,
		recorder:     nopRecorder{},
	}
}

// WithRecorder attaches a LifecycleRecorder and returns the service.
func (s *MovieService) WithRecorder(r LifecycleRecorder) *MovieService {
	if r != nil {
		s.recorder = r
	}
	return s
}

// List returns every movie in insertion order.
func (s *MovieService) List(ctx context.Context) ([]domain.Movie, error) {
	movies, err := s.movies.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	return movies, nil
}

// Get returns a single movie.
func (s *MovieService) Get(ctx context.Context, id string) (*domain.Movie, error) {
	return s.movies.GetByID(ctx, id)
}

// Create validates the input, stores the uploaded image if any, then
// persists the record. If the record cannot be written the freshly stored
// image is removed again.
func (s *MovieService) Create(ctx context.Context, in NewMovie) (movie *domain.Movie, err error) {
	defer func() { s.recorder.Operation("create", err) }()

	movie = &domain.Movie{
		Title:     strings.TrimSpace(in.Title),
		Link:      strings.TrimSpace(in.Link),
		CreatedBy: strings.TrimSpace(in.CreatedBy),
		Image:     strings.TrimSpace(in.ImageURL),
	}
	if err := validateRequired(movie.Title, movie.Link, movie.CreatedBy); err != nil {
		return nil, err
	}
	if in.Upload == nil {
		if movie.Image == "" && s.requireImage {
			return nil, fmt.Errorf("%w: image is required", domain.ErrInvalidInput)
		}
		if err := s.checkExternal(movie.Image); err != nil {
			return nil, err
		}
	}

	var stored string
	if in.Upload != nil {
		stored, err = s.storeImage(ctx, in.Upload)
		if err != nil {
			return nil, err
		}
		movie.Image = stored
	}

	if err := s.movies.Create(ctx, movie); err != nil {
		s.discard(ctx, stored, "create failed")
		return nil, fmt.Errorf("create movie: %w", err)
	}
	return movie, nil
}

// Update applies the present fields of ch to the movie with the given ID.
// A new upload or image URL replaces the image reference; the previously
// referenced blob is kept.
func (s *MovieService) Update(ctx context.Context, id string, ch MovieChanges) (movie *domain.Movie, err error) {
	defer func() { s.recorder.Operation("update", err) }()

	upd := domain.MovieUpdate{
		Title:     trimmed(ch.Title),
		Link:      trimmed(ch.Link),
		CreatedBy: trimmed(ch.CreatedBy),
	}
	for _, f := range []struct {
		name  string
		value *string
	}{{"title", upd.Title}, {"link", upd.Link}, {"createdBy", upd.CreatedBy}} {
		if f.value != nil && *f.value == "" {
			return nil, fmt.Errorf("%w: %s must not be empty", domain.ErrInvalidInput, f.name)
		}
	}
	if url := trimmed(ch.ImageURL); ch.Upload == nil && url != nil && *url != "" {
		if err := s.checkExternal(*url); err != nil {
			return nil, err
		}
		upd.Image = url
	}

	var stored string
	if ch.Upload != nil {
		stored, err = s.storeImage(ctx, ch.Upload)
		if err != nil {
			return nil, err
		}
		upd.Image = &stored
	}

	var previous string
	if upd.Image != nil {
		if old, gerr := s.movies.GetByID(ctx, id); gerr == nil {
			previous = old.Image
		}
	}

	movie, err = s.movies.UpdateByID(ctx, id, upd)
	if err != nil {
		s.discard(ctx, stored, "update failed")
		return nil, fmt.Errorf("update movie %s: %w", id, err)
	}
	if previous != "" && previous != movie.Image {
		slog.Debug("movie image replaced", "id", id, "superseded", previous, "image", movie.Image)
	}
	return movie, nil
}

// Delete removes the movie, then its managed image. The record is gone once
// the store confirms; a failed image removal is only logged.
func (s *MovieService) Delete(ctx context.Context, id string) (err error) {
	defer func() { s.recorder.Operation("delete", err) }()

	removed, err := s.movies.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete movie %s: %w", id, err)
	}

	if removed.Image != "" && s.blobs.Manages(removed.Image) {
		if err := s.blobs.Delete(ctx, removed.Image); err != nil {
			slog.Warn("image cleanup after delete failed", "id", id, "image", removed.Image, "error", err)
			s.recorder.CleanupFailed("delete")
		}
	}
	return nil
}

func (s *MovieService) storeImage(ctx context.Context, up *ImageUpload) (string, error) {
	if len(up.Data) == 0 {
		return "", fmt.Errorf("%w: image file is empty", domain.ErrInvalidInput)
	}
	if int64(len(up.Data)) > s.maxImageSize {
		return "", fmt.Errorf("%w: image exceeds %d byte limit", domain.ErrInvalidInput, s.maxImageSize)
	}
	// Detect content type from file bytes (more reliable than multipart header).
	if ct := http.DetectContentType(up.Data); !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("%w: file is not an image (%s)", domain.ErrInvalidInput, ct)
	}

	ref, err := s.blobs.Store(ctx, up.Filename, bytes.NewReader(up.Data))
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUpload, err)
	}
	return ref, nil
}

// checkExternal rejects client-supplied image strings that look like refs
// issued by the blob store. Only Store hands those out.
func (s *MovieService) checkExternal(ref string) error {
	if ref != "" && s.blobs.Manages(ref) {
		return fmt.Errorf("%w: image %q is a reserved upload path; send the file instead", domain.ErrInvalidInput, ref)
	}
	return nil
}

// discard removes a blob that was stored for an operation that then failed.
func (s *MovieService) discard(ctx context.Context, ref, reason string) {
	if ref == "" {
		return
	}
	// Best-effort cleanup of the stored file; the request context may
	// already be done, so detach from its cancellation.
	if err := s.blobs.Delete(context.WithoutCancel(ctx), ref); err != nil {
		slog.Warn("orphaned image cleanup failed", "image", ref, "reason", reason, "error", err)
		s.recorder.CleanupFailed("compensate")
	}
}

func validateRequired(title, link, createdBy string) error {
	switch {
	case title == "":
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	case link == "":
		return fmt.Errorf("%w: link is required", domain.ErrInvalidInput)
	case createdBy == "":
		return fmt.Errorf("%w: createdBy is required", domain.ErrInvalidInput)
	}
	return nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
