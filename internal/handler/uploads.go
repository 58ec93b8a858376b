package handler

import (
	"net/http"
	"os"
	"strings"

	"github.com/msomdec/movie-catalog/internal/blob"
)

// HandleUploads serves stored images read-only. Directories and temp files
// are never exposed.
// GET <prefix>/{name}
func HandleUploads(blobs *blob.Local) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if name == "" || strings.HasPrefix(name, ".") {
			http.NotFound(w, r)
			return
		}
		p, err := blobs.Path(blobs.Prefix() + "/" + name)
		if err != nil {
			http.NotFound(w, r)
			return
		}

		f, err := os.Open(p)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || !info.Mode().IsRegular() {
			http.NotFound(w, r)
			return
		}

		// Stored names are never reused, so the bytes behind a name are immutable.
		w.Header().Set("Cache-Control", "public, max-age=86400")
		http.ServeContent(w, r, name, info.ModTime(), f)
	}
}
