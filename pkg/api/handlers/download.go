package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/go-chi/chi/v5"
)

// filenamePattern accepts plain basenames with a short extension. Anything
// else (path separators, dots, traversal) is rejected before touching disk.
var filenamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z]{2,4}$`)

// DownloadHandler serves optimized artifacts still present on local disk.
// This is a legacy path: with an object-store sink the download URL points
// at the CDN, not here.
type DownloadHandler struct {
	dir string
}

// NewDownloadHandler creates a download handler rooted at dir.
func NewDownloadHandler(dir string) *DownloadHandler {
	return &DownloadHandler{dir: dir}
}

// Download handles GET /image-optimization/download/{filename}.
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if !filenamePattern.MatchString(name) {
		BadRequest(w, "invalid filename")
		return
	}

	path := filepath.Join(h.dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		NotFound(w, "file not found")
		return
	}

	http.ServeFile(w, r, path)
}
