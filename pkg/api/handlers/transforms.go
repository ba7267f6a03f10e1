package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/marmos91/imgforge/internal/logger"
	"github.com/marmos91/imgforge/pkg/transform"
)

// TransformHandler handles the synchronous transformation endpoints:
// blur-placeholder, convert, thumbnail, watermark and metadata. These run
// inline on the request because their cost is bounded by the tiny outputs they
// produce or because the caller needs the result immediately.
type TransformHandler struct {
	cfg UploadConfig
}

// NewTransformHandler creates the synchronous transform handler.
func NewTransformHandler(cfg UploadConfig) *TransformHandler {
	return &TransformHandler{cfg: cfg.withDefaults()}
}

// placeholderResponse carries the inlined placeholder bytes plus size stats.
type placeholderResponse struct {
	Message         string `json:"message"`
	Data            string `json:"data"`
	MimeType        string `json:"mimeType"`
	OriginalSize    int    `json:"originalSize"`
	PlaceholderSize int    `json:"placeholderSize"`
}

// BlurPlaceholder handles POST /image-optimization/blur-placeholder.
//
// Query parameters: width in [10,256], height optional, blurRadius in
// [1,50], quality in [1,50], mobileOptimized (default true). The response
// body carries the placeholder jpeg base64-encoded.
func (h *TransformHandler) BlurPlaceholder(w http.ResponseWriter, r *http.Request) {
	data, err := h.readUpload(w, r)
	if err != nil {
		return
	}

	opts := transform.DefaultPlaceholderOptions()

	width, err := queryInt(r, "width", 0)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	if width != 0 {
		if width < 10 || width > 256 {
			BadRequest(w, "width must be between 10 and 256")
			return
		}
		opts.Width = width
	}

	height, err := queryInt(r, "height", 0)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	opts.Height = height

	blurRadius, err := queryInt(r, "blurRadius", 0)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	if blurRadius != 0 {
		if blurRadius < 1 || blurRadius > 50 {
			BadRequest(w, "blurRadius must be between 1 and 50")
			return
		}
		opts.BlurRadius = blurRadius
	}

	quality, err := queryInt(r, "quality", 0)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	if quality != 0 {
		if quality < 1 || quality > 50 {
			BadRequest(w, "quality must be between 1 and 50")
			return
		}
		opts.Quality = quality
	}

	opts.MobileOptimized, err = queryBool(r, "mobileOptimized", true)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	placeholder, err := transform.BlurPlaceholder(data, opts)
	if err != nil {
		writeTransformError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, placeholderResponse{
		Message:         "Blur placeholder generated",
		Data:            base64.StdEncoding.EncodeToString(placeholder),
		MimeType:        transform.MimeType(transform.FormatJPEG),
		OriginalSize:    len(data),
		PlaceholderSize: len(placeholder),
	})
}

// Convert handles POST /image-optimization/convert.
//
// The upload is re-encoded into the target format at elevated quality and
// returned as the response body.
func (h *TransformHandler) Convert(w http.ResponseWriter, r *http.Request) {
	data, err := h.readUpload(w, r)
	if err != nil {
		return
	}

	rawFormat := r.URL.Query().Get("format")
	if rawFormat == "" {
		rawFormat = string(transform.FormatJPEG)
	}
	format, err := transform.ParseFormat(rawFormat)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	out, err := transform.Convert(data, format)
	if err != nil {
		writeTransformError(w, err)
		return
	}

	if format == transform.FormatAuto {
		// Auto picks the smallest candidate; the body is still the winner's
		// bytes, so report a generic type.
		writeImage(w, out, "application/octet-stream")
		return
	}
	writeImage(w, out, transform.MimeType(format))
}

// Thumbnail handles POST /image-optimization/thumbnail.
//
// With both width and height the source is cropped to cover the box; with
// width alone it is fitted inside it. The jpeg result is the response body.
func (h *TransformHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	data, err := h.readUpload(w, r)
	if err != nil {
		return
	}

	width, err := queryInt(r, "width", 0)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	if width < 1 || width > transform.MaxDimension {
		BadRequest(w, fmt.Sprintf("width must be between 1 and %d", transform.MaxDimension))
		return
	}

	height, err := queryInt(r, "height", 0)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	if height < 0 || height > transform.MaxDimension {
		BadRequest(w, fmt.Sprintf("height must be between 1 and %d", transform.MaxDimension))
		return
	}

	out, err := transform.Thumbnail(data, width, height)
	if err != nil {
		writeTransformError(w, err)
		return
	}

	writeImage(w, out, transform.MimeType(transform.FormatJPEG))
}

// Watermark handles POST /image-optimization/watermark.
//
// Query parameters: text (required), fontSize, bold, opacity in (0,1].
// The labelled jpeg is the response body.
func (h *TransformHandler) Watermark(w http.ResponseWriter, r *http.Request) {
	data, err := h.readUpload(w, r)
	if err != nil {
		return
	}

	text := r.URL.Query().Get("text")
	if text == "" {
		BadRequest(w, "text query parameter is required")
		return
	}

	opts := transform.WatermarkOptions{}

	fontSize, err := queryInt(r, "fontSize", 0)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	if fontSize < 0 || fontSize > 512 {
		BadRequest(w, "fontSize must be between 1 and 512")
		return
	}
	opts.FontSize = float64(fontSize)

	opts.Bold, err = queryBool(r, "bold", false)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	if raw := r.URL.Query().Get("opacity"); raw != "" {
		opacity, err := strconv.ParseFloat(raw, 64)
		if err != nil || opacity <= 0 || opacity > 1 {
			BadRequest(w, "opacity must be a number in (0, 1]")
			return
		}
		opts.Opacity = opacity
	}

	out, err := transform.Watermark(data, text, opts)
	if err != nil {
		writeTransformError(w, err)
		return
	}

	writeImage(w, out, transform.MimeType(transform.FormatJPEG))
}

// Metadata handles POST /image-optimization/metadata.
func (h *TransformHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	data, err := h.readUpload(w, r)
	if err != nil {
		return
	}

	meta, err := transform.ExtractMetadata(data)
	if err != nil {
		writeTransformError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, okResponse(meta))
}

// readUpload reads the "image" multipart file fully into memory. On failure
// the error response has already been written and the caller just returns.
func (h *TransformHandler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxFileSize+formOverhead)

	if err := parseMultipart(w, r); err != nil {
		return nil, err
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		BadRequest(w, "image file is required")
		return nil, err
	}
	defer file.Close()

	if header.Size > h.cfg.MaxFileSize {
		err := fmt.Errorf("%w: %q", errFileTooLarge, header.Filename)
		writeUploadError(w, err)
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(file, h.cfg.MaxFileSize+1))
	if err != nil {
		InternalServerError(w, "cannot read upload")
		return nil, err
	}
	if int64(len(data)) > h.cfg.MaxFileSize {
		err := fmt.Errorf("%w: %q", errFileTooLarge, header.Filename)
		writeUploadError(w, err)
		return nil, err
	}

	return data, nil
}

func writeTransformError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transform.ErrDecode),
		errors.Is(err, transform.ErrUnsupportedFormat):
		BadRequest(w, err.Error())
	default:
		logger.Error("transform failed", logger.KeyError, err)
		InternalServerError(w, "image transformation failed")
	}
}

func writeImage(w http.ResponseWriter, data []byte, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.Debug("client went away mid-response", logger.KeyError, err)
	}
}
