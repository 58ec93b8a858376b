package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/msomdec/movie-catalog/internal/blob"
	"github.com/msomdec/movie-catalog/internal/handler"
	"github.com/msomdec/movie-catalog/internal/repository/sqlite"
	"github.com/msomdec/movie-catalog/internal/service"
)

var jpegBytes = append([]byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), make([]byte, 128)...)

type testApp struct {
	srv   *httptest.Server
	blobs *blob.Local
	svc   *service.MovieService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWithPrefix(t, "/uploads")
}

func newTestAppWithPrefix(t *testing.T, uploadPrefix string) *testApp {
	t.Helper()
	dir := t.TempDir()

	db, err := sqlite.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	blobs, err := blob.NewLocal(filepath.Join(dir, "uploads"), uploadPrefix)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	svc := service.NewMovieService(db.Movies(), blobs, service.MovieServiceOptions{RequireImage: true}).
		WithRecorder(handler.MetricsRecorder{})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, svc, blobs, service.DefaultMaxImageSize)

	srv := httptest.NewServer(handler.Wrap(mux))
	t.Cleanup(srv.Close)

	return &testApp{srv: srv, blobs: blobs, svc: svc}
}

// multipartBody builds a multipart form with the given fields and an
// optional image file part.
func multipartBody(t *testing.T, fields map[string]string, filename string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write(file); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func doRequest(t *testing.T, method, url, contentType string, body *bytes.Buffer) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequest(method, url, nil)
	} else {
		req, err = http.NewRequest(method, url, body)
	}
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

type movieJSON struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Image     string `json:"image"`
	Link      string `json:"link"`
	CreatedBy string `json:"createdBy"`
	CreatedAt string `json:"createdAt"`
}

type movieResponse struct {
	Success bool      `json:"success"`
	Movie   movieJSON `json:"movie"`
	Message string    `json:"message"`
	Error   string    `json:"error"`
}

func createMovie(t *testing.T, app *testApp, title string) movieJSON {
	t.Helper()
	body, ct := multipartBody(t, map[string]string{
		"title": title, "link": "https://example.com/" + title, "createdBy": "u1",
	}, "poster.jpg", jpegBytes)

	resp := doRequest(t, http.MethodPost, app.srv.URL+"/movies", ct, body)
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		t.Fatalf("create %q: expected 200, got %d", title, resp.StatusCode)
	}
	var out movieResponse
	decodeJSON(t, resp, &out)
	return out.Movie
}
