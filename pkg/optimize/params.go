package optimize

import (
	"strings"

	"github.com/marmos91/imgforge/pkg/notify"
	"github.com/marmos91/imgforge/pkg/transform"
)

// Upload is a handle to an on-disk temp upload produced by the HTTP layer.
type Upload struct {
	TempPath     string
	OriginalName string
	Size         int64
}

// Params is the controller-params context record for one accepted request.
// It holds everything the asynchronous arm needs after the HTTP response
// has been committed. NewFilePaths and Options are immutable once stored.
type Params struct {
	Files        []Upload
	Options      transform.Options
	Callbacks    []notify.Callback
	NewFilePaths []string
	Batch        bool
}

// Response is the synchronous body for a single optimization accept.
type Response struct {
	Message            string `json:"message"`
	OriginalSize       int64  `json:"originalSize"`
	Data               string `json:"data"`
	DownloadURL        string `json:"downloadUrl"`
	CallbacksScheduled int    `json:"callbacksScheduled"`
	OptimizationID     string `json:"optimizationId"`
}

// BatchAccepted is one per-file entry in a batch accept response.
type BatchAccepted struct {
	FileName    string `json:"fileName"`
	Data        string `json:"data"`
	DownloadURL string `json:"downloadUrl"`
}

// BatchResponse is the synchronous body for a batch accept.
type BatchResponse struct {
	Message            string          `json:"message"`
	Count              int             `json:"count"`
	CallbacksScheduled int             `json:"callbacksScheduled"`
	OptimizationID     string          `json:"optimizationId"`
	Results            []BatchAccepted `json:"results"`
}

// CompletionPayload is the webhook body for a single optimization.
type CompletionPayload struct {
	OptimizationID string `json:"optimizationId"`
	Status         string `json:"status"`
	DownloadURL    string `json:"downloadUrl,omitempty"`
	NewFilePath    string `json:"newFilePath,omitempty"`
	OriginalSize   int    `json:"originalSize,omitempty"`
	OptimizedSize  int    `json:"optimizedSize,omitempty"`
	Error          string `json:"error,omitempty"`
}

// BatchFileResult is one per-file outcome inside a batch completion.
type BatchFileResult struct {
	FileName      string `json:"fileName"`
	Success       bool   `json:"success"`
	NewFilePath   string `json:"newFilePath"`
	DownloadURL   string `json:"downloadUrl,omitempty"`
	OriginalSize  int    `json:"originalSize,omitempty"`
	OptimizedSize int    `json:"optimizedSize,omitempty"`
	Error         string `json:"error,omitempty"`
}

// BatchCompletionPayload is the single consolidated webhook body for a
// batch. Results preserve the upload order.
type BatchCompletionPayload struct {
	OptimizationID  string            `json:"optimizationId"`
	Status          string            `json:"status"`
	TotalFiles      int               `json:"totalFiles"`
	SuccessfulFiles int               `json:"successfulFiles"`
	Results         []BatchFileResult `json:"results"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPartial = "partial"
)

// joinURL glues the configured download base onto a minted key.
func joinURL(base, path string) string {
	if base == "" {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
