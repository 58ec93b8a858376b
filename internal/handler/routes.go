package handler

import (
	"net/http"

	"github.com/msomdec/movie-catalog/internal/blob"
	"github.com/msomdec/movie-catalog/internal/service"
)

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, movies *service.MovieService, blobs *blob.Local, maxUpload int64) {
	mh := NewMovieHandler(movies, maxUpload)
	ch := NewCatalogHandler(movies)

	mux.HandleFunc("GET /healthz", HandleHealthz)
	mux.Handle("GET /metrics", MetricsHandler())

	// JSON API.
	mux.HandleFunc("GET /movies", mh.HandleList)
	mux.HandleFunc("POST /movies", mh.HandleCreate)
	mux.HandleFunc("GET /movies/{id}", mh.HandleGet)
	mux.HandleFunc("PUT /movies/{id}", mh.HandleUpdate)
	mux.HandleFunc("DELETE /movies/{id}", mh.HandleDelete)

	// Stored images.
	mux.HandleFunc("GET "+blobs.Prefix()+"/{name}", HandleUploads(blobs))

	// Catalog page.
	mux.HandleFunc("GET /{$}", ch.HandlePage)
	mux.HandleFunc("DELETE /catalog/movies/{id}", ch.HandleDelete)
}
