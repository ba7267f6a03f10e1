package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/imgforge/internal/logger"
	"github.com/marmos91/imgforge/pkg/api/handlers"
	"github.com/marmos91/imgforge/pkg/blob"
	"github.com/marmos91/imgforge/pkg/optimize"
	"github.com/marmos91/imgforge/pkg/sse"
	"github.com/marmos91/imgforge/pkg/ttlstore"
	"github.com/marmos91/imgforge/pkg/workerpool"
)

// Deps are the collaborators the HTTP surface exposes.
type Deps struct {
	Orchestrator *optimize.Orchestrator
	Broker       *sse.Broker
	Pool         *workerpool.Pool
	Contexts     *ttlstore.Store[any]
	Sink         blob.Sink

	// Uploads configures multipart limits and the temp directory.
	Uploads handlers.UploadConfig

	// DownloadDir backs the legacy local download endpoint.
	DownloadDir string
}

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// The middleware stack is request ID, real IP, request logging, panic
// recovery, and a per-route timeout on everything except the SSE stream.
//
// Routes:
//   - POST /image-optimization/optimize
//   - POST /image-optimization/batch-optimize
//   - POST /image-optimization/blur-placeholder
//   - POST /image-optimization/convert
//   - POST /image-optimization/thumbnail
//   - POST /image-optimization/metadata
//   - POST /image-optimization/watermark
//   - GET  /image-optimization/download/{filename}
//   - GET  /image-optimization/stats
//   - GET  /image-optimization-sse/subscribe/{id}
//   - GET  /health, GET /health/ready
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	optimizeHandler := handlers.NewOptimizeHandler(deps.Orchestrator, deps.Uploads)
	transformHandler := handlers.NewTransformHandler(deps.Uploads)
	downloadHandler := handlers.NewDownloadHandler(deps.DownloadDir)
	statsHandler := handlers.NewStatsHandler(deps.Pool, deps.Contexts, deps.Broker)
	sseHandler := handlers.NewSSEHandler(deps.Broker)
	healthHandler := handlers.NewHealthHandler(deps.Sink)

	r.Route("/image-optimization", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Post("/optimize", optimizeHandler.Optimize)
		r.Post("/batch-optimize", optimizeHandler.BatchOptimize)
		r.Post("/blur-placeholder", transformHandler.BlurPlaceholder)
		r.Post("/convert", transformHandler.Convert)
		r.Post("/thumbnail", transformHandler.Thumbnail)
		r.Post("/metadata", transformHandler.Metadata)
		r.Post("/watermark", transformHandler.Watermark)
		r.Get("/download/{filename}", downloadHandler.Download)
		r.Get("/stats", statsHandler.Stats)
	})

	// The SSE stream is long-lived and must not run under a timeout.
	r.Get("/image-optimization-sse/subscribe/{id}", sseHandler.Subscribe)

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusNotFound, ErrorResponse("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusMethodNotAllowed, ErrorResponse("method not allowed"))
	})

	return r
}

// requestLogger is a custom middleware that logs requests using the internal
// logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			logger.KeyRequestID, requestID,
			"method", r.Method,
			"path", r.URL.Path,
			logger.KeyClientIP, r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logger.Info("API request completed",
			logger.KeyRequestID, requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, float64(duration.Microseconds())/1000.0,
		)
	})
}
