// Package web serves the browser view: session actions over a small JSON
// API, state and render frames over SSE, and the embedded page.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/ritzau/community-explorer/pkg/canvas"
	"github.com/ritzau/community-explorer/pkg/logging"
	"github.com/ritzau/community-explorer/pkg/pubsub"
	"github.com/ritzau/community-explorer/pkg/session"
)

//go:embed static/*
var staticFiles embed.FS

// Session is the set of session operations exposed to the browser
type Session interface {
	Snapshot() session.Snapshot
	RefreshDatasets(ctx context.Context) error
	SelectGraph(ctx context.Context, graphID string) error
	SelectAlgorithm(id string) error
	RunAnalysis(ctx context.Context) error
	UploadFile(ctx context.Context, filename string, content io.Reader) error
}

// FrameSource provides the current scene for clients that connect late
type FrameSource interface {
	Frame() canvas.Frame
}

// RequestRecorder records served requests, e.g. for prometheus
type RequestRecorder interface {
	RecordHTTPRequest(method, route, status string, duration time.Duration)
}

// Options configures a Server
type Options struct {
	Session   Session
	Publisher pubsub.Publisher
	Frames    FrameSource     // optional
	Metrics   http.Handler    // optional, served at /metrics
	Recorder  RequestRecorder // optional
}

// Server represents the web server
type Server struct {
	router    *mux.Router
	session   Session
	publisher pubsub.Publisher
	frames    FrameSource
	recorder  RequestRecorder
	validate  *validator.Validate
}

// NewServer creates a new web server
func NewServer(opts Options) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		session:   opts.Session,
		publisher: opts.Publisher,
		frames:    opts.Frames,
		recorder:  opts.Recorder,
		validate:  validator.New(),
	}
	s.setupRoutes(opts.Metrics)
	return s
}

func (s *Server) setupRoutes(metrics http.Handler) {
	s.router.Use(s.recordRequests)

	// SSE subscription endpoint
	s.router.HandleFunc("/api/subscribe/{topic}", s.handleSubscribe).Methods("GET")

	s.router.HandleFunc("/api/state", s.handleState).Methods("GET")
	s.router.HandleFunc("/api/frame", s.handleFrame).Methods("GET")
	s.router.HandleFunc("/api/select", s.handleSelect).Methods("POST")
	s.router.HandleFunc("/api/algorithm", s.handleAlgorithm).Methods("POST")
	s.router.HandleFunc("/api/run", s.handleRun).Methods("POST")
	s.router.HandleFunc("/api/upload", s.handleUpload).Methods("POST")
	s.router.HandleFunc("/api/datasets/refresh", s.handleRefresh).Methods("POST")

	if metrics != nil {
		s.router.Handle("/metrics", metrics).Methods("GET")
	}

	// Serve static files
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		logging.Fatal("embedded static files missing", "error", err)
	}
	s.router.PathPrefix("/").Handler(http.FileServer(http.FS(staticFS)))
}

// Handler returns the router wrapped with request logging
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(s.router)
}

// Start serves on port until ctx is cancelled
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		logging.Info("stopping web server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("web server shutdown: %w", err)
		}
		return nil
	}
}

// recordRequests reports each matched route to the recorder
func (s *Server) recordRequests(next http.Handler) http.Handler {
	if s.recorder == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.recorder.RecordHTTPRequest(r.Method, route, fmt.Sprint(rec.status), time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher for SSE support
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
