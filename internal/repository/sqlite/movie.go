package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/msomdec/movie-catalog/internal/domain"
)

const movieColumns = "id, title, image, link, created_by, created_at"

// MovieRepository implements domain.MovieRepository using SQLite.
type MovieRepository struct {
	db *sql.DB
}

// NewMovieRepository creates a new SQLite-backed MovieRepository.
func NewMovieRepository(db *DB) *MovieRepository {
	return &MovieRepository{db: db.SqlDB}
}

func (r *MovieRepository) Create(ctx context.Context, movie *domain.Movie) error {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO movies (id, title, image, link, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, movie.Title, movie.Image, movie.Link, movie.CreatedBy, now,
	)
	if err != nil {
		return fmt.Errorf("insert movie: %w", err)
	}

	movie.ID = id
	movie.CreatedAt = now
	return nil
}

func (r *MovieRepository) List(ctx context.Context) ([]domain.Movie, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+movieColumns+" FROM movies ORDER BY created_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	defer rows.Close()

	movies := []domain.Movie{}
	for rows.Next() {
		var m domain.Movie
		if err := rows.Scan(&m.ID, &m.Title, &m.Image, &m.Link, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		movies = append(movies, m)
	}
	return movies, rows.Err()
}

func (r *MovieRepository) GetByID(ctx context.Context, id string) (*domain.Movie, error) {
	return getMovie(ctx, r.db, id)
}

// UpdateByID sets the present fields and reads the row back inside one
// transaction.
func (r *MovieRepository) UpdateByID(ctx context.Context, id string, upd domain.MovieUpdate) (*domain.Movie, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if !upd.Empty() {
		var (
			sets []string
			args []any
		)
		add := func(column string, v *string) {
			if v != nil {
				sets = append(sets, column+" = ?")
				args = append(args, *v)
			}
		}
		add("title", upd.Title)
		add("image", upd.Image)
		add("link", upd.Link)
		add("created_by", upd.CreatedBy)
		args = append(args, id)

		result, err := tx.ExecContext(ctx,
			"UPDATE movies SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return nil, fmt.Errorf("update movie: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return nil, domain.ErrNotFound
		}
	}

	movie, err := getMovie(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return movie, nil
}

// DeleteByID removes the row and returns what it held.
func (r *MovieRepository) DeleteByID(ctx context.Context, id string) (*domain.Movie, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	movie, err := getMovie(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM movies WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("delete movie: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}
	return movie, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getMovie(ctx context.Context, q queryRower, id string) (*domain.Movie, error) {
	m := &domain.Movie{}
	err := q.QueryRowContext(ctx,
		"SELECT "+movieColumns+" FROM movies WHERE id = ?", id,
	).Scan(&m.ID, &m.Title, &m.Image, &m.Link, &m.CreatedBy, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get movie: %w", err)
	}
	return m, nil
}
