package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/marmos91/imgforge/pkg/notify"
	"github.com/marmos91/imgforge/pkg/optimize"
	"github.com/marmos91/imgforge/pkg/transform"
)

const (
	// DefaultWidth is applied when the optimize request carries no width.
	DefaultWidth = 800

	// multipartMemory bounds how much of a multipart body is held in
	// memory before spilling to disk.
	multipartMemory = 32 << 20

	// formOverhead is headroom on top of the file size limit for the
	// multipart framing and the callbacks field.
	formOverhead = 1 << 20
)

var errFileTooLarge = errors.New("uploaded file exceeds the size limit")

// UploadConfig bounds multipart uploads.
type UploadConfig struct {
	// MaxFileSize is the single-upload byte limit. Default: 50MiB.
	MaxFileSize int64

	// BatchMaxFileSize is the per-file byte limit inside a batch.
	// Default: 10MiB.
	BatchMaxFileSize int64

	// DefaultQuality is used when the request carries no quality.
	DefaultQuality int

	// TempDir receives uploaded files until the pipeline consumes them.
	TempDir string
}

func (c UploadConfig) withDefaults() UploadConfig {
	if c.MaxFileSize == 0 {
		c.MaxFileSize = 50 << 20
	}
	if c.BatchMaxFileSize == 0 {
		c.BatchMaxFileSize = 10 << 20
	}
	if c.DefaultQuality == 0 {
		c.DefaultQuality = transform.DefaultQuality
	}
	if c.TempDir == "" {
		c.TempDir = filepath.Join(os.TempDir(), "imgforge")
	}
	return c
}

// OptimizeHandler handles the asynchronous optimization endpoints.
type OptimizeHandler struct {
	orch *optimize.Orchestrator
	cfg  UploadConfig
}

// NewOptimizeHandler creates the optimize handler.
func NewOptimizeHandler(orch *optimize.Orchestrator, cfg UploadConfig) *OptimizeHandler {
	return &OptimizeHandler{orch: orch, cfg: cfg.withDefaults()}
}

// Optimize handles POST /image-optimization/optimize.
//
// The multipart form carries the upload under "image" and an optional
// "callbacks" field with a JSON callback list. Width, height, quality and
// format arrive as query parameters. The response is returned before any
// optimization work starts.
func (h *OptimizeHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxFileSize+formOverhead)

	if err := parseMultipart(w, r); err != nil {
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		BadRequest(w, "image file is required")
		return
	}
	file.Close()

	opts, err := h.parseOptions(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	callbacks, err := notify.ParseCallbacks(r.FormValue("callbacks"))
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	upload, err := h.saveUpload(header, h.cfg.MaxFileSize)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	resp, err := h.orch.AcceptSingle(r.Context(), upload, callbacks, opts)
	if err != nil {
		os.Remove(upload.TempPath)
		writeAcceptError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// BatchOptimize handles POST /image-optimization/batch-optimize.
//
// Uploads arrive under "files"; query parameters and callbacks work as in
// Optimize and apply to every file.
func (h *OptimizeHandler) BatchOptimize(w http.ResponseWriter, r *http.Request) {
	limit := h.cfg.BatchMaxFileSize*int64(optimize.MaxBatchFiles) + formOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := parseMultipart(w, r); err != nil {
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		BadRequest(w, "at least one file is required")
		return
	}
	if len(headers) > optimize.MaxBatchFiles {
		BadRequest(w, fmt.Sprintf("at most %d files per batch", optimize.MaxBatchFiles))
		return
	}

	opts, err := h.parseOptions(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	callbacks, err := notify.ParseCallbacks(r.FormValue("callbacks"))
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	uploads := make([]optimize.Upload, 0, len(headers))
	for _, header := range headers {
		upload, err := h.saveUpload(header, h.cfg.BatchMaxFileSize)
		if err != nil {
			removeUploads(uploads)
			writeUploadError(w, err)
			return
		}
		uploads = append(uploads, upload)
	}

	resp, err := h.orch.AcceptBatch(r.Context(), uploads, callbacks, opts)
	if err != nil {
		removeUploads(uploads)
		writeAcceptError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseOptions reads width, height, quality, format and blurRadius from the
// query string. Width defaults to DefaultWidth, quality to the configured
// default, format to jpeg. Range validation is the orchestrator's job.
func (h *OptimizeHandler) parseOptions(r *http.Request) (transform.Options, error) {
	width, err := queryInt(r, "width", DefaultWidth)
	if err != nil {
		return transform.Options{}, err
	}
	height, err := queryInt(r, "height", 0)
	if err != nil {
		return transform.Options{}, err
	}
	quality, err := queryInt(r, "quality", h.cfg.DefaultQuality)
	if err != nil {
		return transform.Options{}, err
	}
	blurRadius, err := queryInt(r, "blurRadius", 0)
	if err != nil {
		return transform.Options{}, err
	}

	rawFormat := r.URL.Query().Get("format")
	if rawFormat == "" {
		rawFormat = string(transform.FormatJPEG)
	}
	format, err := transform.ParseFormat(rawFormat)
	if err != nil {
		return transform.Options{}, err
	}

	return transform.Options{
		Width:      width,
		Height:     height,
		Quality:    quality,
		Format:     format,
		BlurRadius: blurRadius,
	}, nil
}

// saveUpload spools one multipart file to the temp directory.
func (h *OptimizeHandler) saveUpload(header *multipart.FileHeader, limit int64) (optimize.Upload, error) {
	if header.Size > limit {
		return optimize.Upload{}, fmt.Errorf("%w: %q is %d bytes (limit %d)",
			errFileTooLarge, header.Filename, header.Size, limit)
	}

	src, err := header.Open()
	if err != nil {
		return optimize.Upload{}, fmt.Errorf("cannot open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(h.cfg.TempDir, 0o755); err != nil {
		return optimize.Upload{}, fmt.Errorf("cannot create temp dir: %w", err)
	}

	dst, err := os.CreateTemp(h.cfg.TempDir, "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return optimize.Upload{}, fmt.Errorf("cannot create temp file: %w", err)
	}

	n, err := io.Copy(dst, io.LimitReader(src, limit+1))
	dst.Close()
	if err != nil {
		os.Remove(dst.Name())
		return optimize.Upload{}, fmt.Errorf("cannot spool upload: %w", err)
	}
	if n > limit {
		os.Remove(dst.Name())
		return optimize.Upload{}, fmt.Errorf("%w: %q (limit %d)",
			errFileTooLarge, header.Filename, limit)
	}

	return optimize.Upload{
		TempPath:     dst.Name(),
		OriginalName: header.Filename,
		Size:         n,
	}, nil
}

// parseMultipart parses the multipart form and writes the error response
// itself on failure. A body that trips MaxBytesReader surfaces as 413, the
// same status an over-limit file gets, instead of a generic 400.
func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	err := r.ParseMultipartForm(multipartMemory)
	if err == nil {
		return nil
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeJSON(w, http.StatusRequestEntityTooLarge,
			errorResponse("request body exceeds the size limit"))
		return err
	}
	BadRequest(w, "invalid multipart form")
	return err
}

func removeUploads(uploads []optimize.Upload) {
	for _, u := range uploads {
		os.Remove(u.TempPath)
	}
}

func writeUploadError(w http.ResponseWriter, err error) {
	if errors.Is(err, errFileTooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse(err.Error()))
		return
	}
	InternalServerError(w, err.Error())
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", name)
	}
	return v, nil
}
