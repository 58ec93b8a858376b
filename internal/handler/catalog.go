package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/msomdec/movie-catalog/internal/domain"
	"github.com/msomdec/movie-catalog/internal/service"
	"github.com/msomdec/movie-catalog/internal/view"
)

// CatalogHandler serves the HTML catalog page.
type CatalogHandler struct {
	movies *service.MovieService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(movies *service.MovieService) *CatalogHandler {
	return &CatalogHandler{movies: movies}
}

// HandlePage renders the catalog.
// GET /
func (h *CatalogHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	movies, err := h.movies.List(r.Context())
	if err != nil {
		slog.Error("list movies for catalog", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := view.CatalogPage(movies).Render(r.Context(), w); err != nil {
		slog.Error("render catalog", "error", err)
	}
}

// HandleDelete deletes a movie and responds with SSE to re-render the list.
// DELETE /catalog/movies/{id}
func (h *CatalogHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.movies.Delete(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		slog.Error("delete movie from catalog", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	movies, err := h.movies.List(r.Context())
	if err != nil {
		slog.Error("list movies after delete", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	sse := datastar.NewSSE(w, r)
	if err := sse.PatchElementTempl(
		view.MovieList(movies),
		datastar.WithSelectorID(view.MovieListID),
		datastar.WithModeInner(),
	); err != nil {
		slog.Error("patch catalog list", "error", err)
	}
}
