package handler

import (
	"time"

	"github.com/msomdec/movie-catalog/internal/domain"
)

// MovieDTO is the JSON representation of a movie.
type MovieDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Image     string `json:"image"`
	Link      string `json:"link"`
	CreatedBy string `json:"createdBy"`
	CreatedAt string `json:"createdAt"`
}

func toMovieDTO(m *domain.Movie) MovieDTO {
	return MovieDTO{
		ID:        m.ID,
		Title:     m.Title,
		Image:     m.Image,
		Link:      m.Link,
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

func toMovieDTOs(movies []domain.Movie) []MovieDTO {
	dtos := make([]MovieDTO, len(movies))
	for i := range movies {
		dtos[i] = toMovieDTO(&movies[i])
	}
	return dtos
}

// movieResult is returned by create and update.
type movieResult struct {
	Success bool     `json:"success"`
	Movie   MovieDTO `json:"movie"`
}

type messageResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
