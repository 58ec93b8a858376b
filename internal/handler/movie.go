package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/msomdec/movie-catalog/internal/domain"
	"github.com/msomdec/movie-catalog/internal/service"
)

// formOverhead is the allowance for non-file multipart parts on top of the
// image size limit.
const formOverhead = 1 << 20

// MovieHandler serves the /movies JSON API.
type MovieHandler struct {
	movies    *service.MovieService
	maxUpload int64
}

// NewMovieHandler creates a new MovieHandler. maxUpload bounds the image
// part of a request; the whole body may exceed it by formOverhead.
func NewMovieHandler(movies *service.MovieService, maxUpload int64) *MovieHandler {
	if maxUpload <= 0 {
		maxUpload = service.DefaultMaxImageSize
	}
	return &MovieHandler{movies: movies, maxUpload: maxUpload}
}

// HandleList returns every movie.
// GET /movies
func (h *MovieHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	movies, err := h.movies.List(r.Context())
	if err != nil {
		writeServerError(w, r, "Failed to fetch movies", err)
		return
	}
	writeJSON(w, http.StatusOK, toMovieDTOs(movies))
}

// HandleGet returns a single movie.
// GET /movies/{id}
func (h *MovieHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	movie, err := h.movies.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Movie not found")
			return
		}
		writeServerError(w, r, "Failed to fetch movie", err)
		return
	}
	writeJSON(w, http.StatusOK, toMovieDTO(movie))
}

// HandleCreate adds a movie from a JSON, urlencoded or multipart body.
// POST /movies
func (h *MovieHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	fields, err := h.readMovieFields(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	movie, err := h.movies.Create(r.Context(), service.NewMovie{
		Title:     deref(fields.Title),
		Link:      deref(fields.Link),
		CreatedBy: deref(fields.CreatedBy),
		ImageURL:  deref(fields.Image),
		Upload:    fields.Upload,
	})
	if err != nil {
		h.writeLifecycleError(w, r, "Failed to add movie", err)
		return
	}
	writeJSON(w, http.StatusOK, movieResult{Success: true, Movie: toMovieDTO(movie)})
}

// HandleUpdate replaces the fields present in the body.
// PUT /movies/{id}
func (h *MovieHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	fields, err := h.readMovieFields(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	movie, err := h.movies.Update(r.Context(), r.PathValue("id"), service.MovieChanges{
		Title:     fields.Title,
		Link:      fields.Link,
		CreatedBy: fields.CreatedBy,
		ImageURL:  fields.Image,
		Upload:    fields.Upload,
	})
	if err != nil {
		h.writeLifecycleError(w, r, "Failed to update movie", err)
		return
	}
	writeJSON(w, http.StatusOK, movieResult{Success: true, Movie: toMovieDTO(movie)})
}

// HandleDelete removes a movie and its uploaded image.
// DELETE /movies/{id}
func (h *MovieHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.movies.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeLifecycleError(w, r, "Failed to delete movie", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResult{Success: true, Message: "Movie deleted successfully"})
}

func (h *MovieHandler) writeLifecycleError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Movie not found")
	case errors.Is(err, domain.ErrUpload):
		writeServerError(w, r, "Failed to upload image", err)
	default:
		writeServerError(w, r, message, err)
	}
}

// movieFields holds the submitted fields. A nil pointer means the field
// was absent (or JSON null).
type movieFields struct {
	Title     *string              `json:"title"`
	Link      *string              `json:"link"`
	CreatedBy *string              `json:"createdBy"`
	Image     *string              `json:"image"`
	Upload    *service.ImageUpload `json:"-"`
}

func (h *MovieHandler) readMovieFields(w http.ResponseWriter, r *http.Request) (movieFields, error) {
	var fields movieFields
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+formOverhead)

	mediaType := "application/json"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return fields, fmt.Errorf("invalid content type: %w", err)
		}
		mediaType = mt
	}

	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil && !errors.Is(err, io.EOF) {
			return fields, fmt.Errorf("invalid JSON body: %w", err)
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return fields, fmt.Errorf("invalid form body: %w", err)
		}
		fields.fromValues(r.PostForm)
	case "multipart/form-data":
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			return fields, fmt.Errorf("invalid multipart body: %w", err)
		}
		fields.fromValues(r.MultipartForm.Value)
		upload, err := readUpload(r)
		if err != nil {
			return fields, err
		}
		fields.Upload = upload
	default:
		return fields, fmt.Errorf("unsupported content type %q", mediaType)
	}
	return fields, nil
}

func (f *movieFields) fromValues(v url.Values) {
	f.Title = formValue(v, "title")
	f.Link = formValue(v, "link")
	f.CreatedBy = formValue(v, "createdBy")
	f.Image = formValue(v, "image")
}

// readUpload returns the "image" file part, or nil when none was sent.
func readUpload(r *http.Request) (*service.ImageUpload, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid image part: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read image part: %w", err)
	}
	return &service.ImageUpload{Filename: header.Filename, Data: data}, nil
}

func formValue(v url.Values, key string) *string {
	vals, ok := v[key]
	if !ok || len(vals) == 0 {
		return nil
	}
	return &vals[0]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
