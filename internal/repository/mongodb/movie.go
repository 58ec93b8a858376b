package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/msomdec/movie-catalog/internal/domain"
)

// movieDocument is the stored form of a movie.
type movieDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Image     string             `bson:"image"`
	Link      string             `bson:"link"`
	CreatedBy string             `bson:"createdBy"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d *movieDocument) toDomain() *domain.Movie {
	return &domain.Movie{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Image:     d.Image,
		Link:      d.Link,
		CreatedBy: d.CreatedBy,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

// MovieRepository implements domain.MovieRepository on a MongoDB collection.
type MovieRepository struct {
	coll *mongo.Collection
}

func newMovieRepository(coll *mongo.Collection) *MovieRepository {
	return &MovieRepository{coll: coll}
}

func (r *MovieRepository) Create(ctx context.Context, movie *domain.Movie) error {
	doc := movieDocument{
		ID:        primitive.NewObjectID(),
		Title:     movie.Title,
		Image:     movie.Image,
		Link:      movie.Link,
		CreatedBy: movie.CreatedBy,
		// BSON dates carry millisecond precision.
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert movie: %w", err)
	}

	movie.ID = doc.ID.Hex()
	movie.CreatedAt = doc.CreatedAt
	return nil
}

func (r *MovieRepository) List(ctx context.Context) ([]domain.Movie, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	defer cursor.Close(ctx)

	movies := []domain.Movie{}
	for cursor.Next(ctx) {
		var doc movieDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode movie: %w", err)
		}
		movies = append(movies, *doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return movies, nil
}

func (r *MovieRepository) GetByID(ctx context.Context, id string) (*domain.Movie, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	var doc movieDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, notFoundOr(err, "get movie")
	}
	return doc.toDomain(), nil
}

// UpdateByID applies a $set of the present fields and returns the document
// as it looks after the write. An empty update degrades to a lookup.
func (r *MovieRepository) UpdateByID(ctx context.Context, id string, upd domain.MovieUpdate) (*domain.Movie, error) {
	if upd.Empty() {
		return r.GetByID(ctx, id)
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	set := bson.D{}
	add := func(field string, v *string) {
		if v != nil {
			set = append(set, bson.E{Key: field, Value: *v})
		}
	}
	add("title", upd.Title)
	add("image", upd.Image)
	add("link", upd.Link)
	add("createdBy", upd.CreatedBy)

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc movieDocument
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.D{{Key: "$set", Value: set}}, opts).Decode(&doc)
	if err != nil {
		return nil, notFoundOr(err, "update movie")
	}
	return doc.toDomain(), nil
}

func (r *MovieRepository) DeleteByID(ctx context.Context, id string) (*domain.Movie, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	var doc movieDocument
	if err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, notFoundOr(err, "delete movie")
	}
	return doc.toDomain(), nil
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
