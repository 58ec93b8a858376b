package handler_test

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestIntegration_UploadListServeDelete(t *testing.T) {
	app := newTestApp(t)

	// 1. Create with a multipart upload.
	created := createMovie(t, app, "Dune")
	if !regexp.MustCompile(`^/uploads/\d+-poster\.jpg$`).MatchString(created.Image) {
		t.Fatalf("unexpected image ref %q", created.Image)
	}
	if created.Title != "Dune" || created.CreatedBy != "u1" || created.Link != "https://example.com/Dune" {
		t.Fatalf("submitted fields not echoed: %+v", created)
	}
	if _, err := time.Parse(time.RFC3339, created.CreatedAt); err != nil {
		t.Fatalf("createdAt %q is not RFC 3339: %v", created.CreatedAt, err)
	}

	// 2. The list contains it.
	resp := doRequest(t, http.MethodGet, app.srv.URL+"/movies", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var listed []movieJSON
	decodeJSON(t, resp, &listed)
	if len(listed) != 1 || listed[0].ID != created.ID || listed[0].Image != created.Image {
		t.Fatalf("unexpected list %+v", listed)
	}

	// 3. The image is served with the uploaded bytes.
	resp = doRequest(t, http.MethodGet, app.srv.URL+created.Image, "", nil)
	got, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("serve image: expected 200, got %d", resp.StatusCode)
	}
	if !bytes.Equal(got, jpegBytes) {
		t.Fatal("served image bytes differ from upload")
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %q", ct)
	}

	// 4. Delete removes record and file.
	p, err := app.blobs.Path(created.Image)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	resp = doRequest(t, http.MethodDelete, app.srv.URL+"/movies/"+created.ID, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}
	var deleted movieResponse
	decodeJSON(t, resp, &deleted)
	if !deleted.Success || deleted.Message != "Movie deleted successfully" {
		t.Fatalf("unexpected delete body %+v", deleted)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("expected image file removed, stat err = %v", err)
	}

	resp = doRequest(t, http.MethodGet, app.srv.URL+created.Image, "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("serve deleted image: expected 404, got %d", resp.StatusCode)
	}

	// 5. Deleting again is a 404.
	resp = doRequest(t, http.MethodDelete, app.srv.URL+"/movies/"+created.ID, "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestCreate_JSONWithImageURL(t *testing.T) {
	app := newTestApp(t)

	body := bytes.NewBufferString(`{"title":"Arrival","link":"https://example.com/a","createdBy":"u2","image":"https://img.example.com/a.jpg"}`)
	resp := doRequest(t, http.MethodPost, app.srv.URL+"/movies", "application/json", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out movieResponse
	decodeJSON(t, resp, &out)
	if !out.Success || out.Movie.Image != "https://img.example.com/a.jpg" {
		t.Fatalf("unexpected body %+v", out)
	}
}

func TestCreate_URLEncoded(t *testing.T) {
	app := newTestApp(t)

	form := url.Values{
		"title":     {"Heat"},
		"link":      {"https://example.com/heat"},
		"createdBy": {"u3"},
		"image":     {"https://img.example.com/heat.jpg"},
	}
	resp := doRequest(t, http.MethodPost, app.srv.URL+"/movies",
		"application/x-www-form-urlencoded", bytes.NewBufferString(form.Encode()))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out movieResponse
	decodeJSON(t, resp, &out)
	if out.Movie.Title != "Heat" {
		t.Fatalf("unexpected body %+v", out)
	}
}

func TestCreate_MissingTitle(t *testing.T) {
	app := newTestApp(t)

	body, ct := multipartBody(t, map[string]string{"link": "https://x", "createdBy": "u1"}, "poster.jpg", jpegBytes)
	resp := doRequest(t, http.MethodPost, app.srv.URL+"/movies", ct, body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var out movieResponse
	decodeJSON(t, resp, &out)
	if !strings.Contains(out.Message, "title") {
		t.Fatalf("expected message about title, got %q", out.Message)
	}

	resp = doRequest(t, http.MethodGet, app.srv.URL+"/movies", "", nil)
	var listed []movieJSON
	decodeJSON(t, resp, &listed)
	if len(listed) != 0 {
		t.Fatalf("expected no records, got %d", len(listed))
	}

	entries, _ := os.ReadDir(app.blobs.Dir())
	if len(entries) != 0 {
		t.Fatalf("expected no stored images, got %d", len(entries))
	}
}

func TestCreate_NonImageUpload(t *testing.T) {
	app := newTestApp(t)

	body, ct := multipartBody(t, map[string]string{"title": "X", "link": "https://x", "createdBy": "u1"},
		"notes.txt", []byte("just some text"))
	resp := doRequest(t, http.MethodPost, app.srv.URL+"/movies", ct, body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreate_MalformedJSON(t *testing.T) {
	app := newTestApp(t)

	resp := doRequest(t, http.MethodPost, app.srv.URL+"/movies", "application/json", bytes.NewBufferString(`{"title":`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGet(t *testing.T) {
	app := newTestApp(t)
	created := createMovie(t, app, "Dune")

	resp := doRequest(t, http.MethodGet, app.srv.URL+"/movies/"+created.ID, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got movieJSON
	decodeJSON(t, resp, &got)
	if got != created {
		t.Fatalf("got %+v, want %+v", got, created)
	}

	resp = doRequest(t, http.MethodGet, app.srv.URL+"/movies/does-not-exist", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUpdate_PreservesImage(t *testing.T) {
	app := newTestApp(t)
	created := createMovie(t, app, "Dune")

	resp := doRequest(t, http.MethodPut, app.srv.URL+"/movies/"+created.ID, "application/json",
		bytes.NewBufferString(`{"title":"Dune: Part One","image":null}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out movieResponse
	decodeJSON(t, resp, &out)

	want := created
	want.Title = "Dune: Part One"
	if out.Movie != want {
		t.Fatalf("got %+v, want %+v", out.Movie, want)
	}
}

func TestUpdate_NewUpload(t *testing.T) {
	app := newTestApp(t)
	created := createMovie(t, app, "Dune")

	body, ct := multipartBody(t, nil, "new-poster.jpg", jpegBytes)
	resp := doRequest(t, http.MethodPut, app.srv.URL+"/movies/"+created.ID, ct, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out movieResponse
	decodeJSON(t, resp, &out)
	if !regexp.MustCompile(`^/uploads/\d+-new-poster\.jpg$`).MatchString(out.Movie.Image) {
		t.Fatalf("unexpected image ref %q", out.Movie.Image)
	}
	if out.Movie.Title != created.Title {
		t.Fatalf("title changed unexpectedly to %q", out.Movie.Title)
	}
}

func TestUpdate_UnknownID(t *testing.T) {
	app := newTestApp(t)

	body, ct := multipartBody(t, map[string]string{"title": "X"}, "poster.jpg", jpegBytes)
	resp := doRequest(t, http.MethodPut, app.srv.URL+"/movies/missing", ct, body)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var out movieResponse
	decodeJSON(t, resp, &out)
	if out.Message != "Movie not found" {
		t.Fatalf("unexpected message %q", out.Message)
	}

	entries, _ := os.ReadDir(app.blobs.Dir())
	if len(entries) != 0 {
		t.Fatalf("expected no leaked images, got %d", len(entries))
	}
}

func TestUpdate_EmptyRequiredField(t *testing.T) {
	app := newTestApp(t)
	created := createMovie(t, app, "Dune")

	resp := doRequest(t, http.MethodPut, app.srv.URL+"/movies/"+created.ID, "application/json",
		bytes.NewBufferString(`{"title":""}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreate_ManagedImageRefRejected(t *testing.T) {
	app := newTestApp(t)
	created := createMovie(t, app, "Dune")

	for _, ref := range []string{created.Image, "/uploads/does-not-exist.jpg"} {
		body := bytes.NewBufferString(`{"title":"Copy","link":"https://x","createdBy":"u2","image":"` + ref + `"}`)
		resp := doRequest(t, http.MethodPost, app.srv.URL+"/movies", "application/json", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("image %q: expected 400, got %d", ref, resp.StatusCode)
		}
		var out movieResponse
		decodeJSON(t, resp, &out)
		if !strings.Contains(out.Message, "reserved upload path") {
			t.Fatalf("unexpected message %q", out.Message)
		}
	}

	resp := doRequest(t, http.MethodGet, app.srv.URL+created.Image, "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("original image: expected 200, got %d", resp.StatusCode)
	}
}

func TestUpdate_ManagedImageRefRejected(t *testing.T) {
	app := newTestApp(t)
	first := createMovie(t, app, "Dune")
	second := createMovie(t, app, "Arrival")

	resp := doRequest(t, http.MethodPut, app.srv.URL+"/movies/"+second.ID, "application/json",
		bytes.NewBufferString(`{"image":"`+first.Image+`"}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodDelete, app.srv.URL+"/movies/"+second.ID, "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, app.srv.URL+first.Image, "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("image of remaining movie: expected 200, got %d", resp.StatusCode)
	}
}

func TestUploads_NoListingOrTempFiles(t *testing.T) {
	app := newTestApp(t)

	if err := os.WriteFile(app.blobs.Dir()+"/.upload-123", []byte("partial"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	for _, p := range []string{"/uploads/", "/uploads/.upload-123", "/uploads/missing.jpg"} {
		resp := doRequest(t, http.MethodGet, app.srv.URL+p, "", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s: expected 404, got %d", p, resp.StatusCode)
		}
	}
}
