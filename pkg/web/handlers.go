package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/ritzau/community-explorer/pkg/api"
	"github.com/ritzau/community-explorer/pkg/logging"
	"github.com/ritzau/community-explorer/pkg/model"
	"github.com/ritzau/community-explorer/pkg/pubsub"
	"github.com/ritzau/community-explorer/pkg/session"
)

const maxUploadBytes = 32 << 20

// Topics browsers may subscribe to
var streamTopics = map[string]bool{
	pubsub.TopicSessionState: true,
	pubsub.TopicRenderFrame:  true,
	pubsub.TopicHistory:      true,
}

type selectRequest struct {
	ID string `json:"id" validate:"required"`
}

type algorithmRequest struct {
	Algorithm string `json:"algorithm" validate:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	if !streamTopics[topic] {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown topic %q", topic))
		return
	}

	sub, err := s.publisher.Subscribe(r.Context(), topic)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer sub.Close()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Send initial comment to establish connection (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	flush(w)

	// Stream events
	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.DebugContext(r.Context(), "SSE write failed", "topic", topic, "error", err)
				return
			}
			flush(w)
		}
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if s.frames == nil {
		writeError(w, http.StatusNotFound, "no renderer attached")
		return
	}
	writeJSON(w, http.StatusOK, s.frames.Frame())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r, s.session.SelectGraph(actionContext(r), req.ID))
}

func (s *Server) handleAlgorithm(w http.ResponseWriter, r *http.Request) {
	var req algorithmRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r, s.session.SelectAlgorithm(req.Algorithm))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.session.RunAnalysis(actionContext(r)))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.session.RefreshDatasets(actionContext(r)))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file part")
		return
	}
	defer file.Close()

	s.respond(w, r, s.session.UploadFile(actionContext(r), header.Filename, file))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// respond writes the session snapshot, or maps err to a status code. The
// snapshot's status line already carries the user-facing outcome.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.session.Snapshot())
	case errors.Is(err, model.ErrUnknownAlgorithm):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNoGraphSelected),
		errors.Is(err, session.ErrAnalysisInProgress),
		errors.Is(err, session.ErrSuperseded):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logging.DebugContext(r.Context(), "session action failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, api.ErrorMessage(err))
	}
}

// actionContext keeps request values but not cancellation: closing the
// browser tab must not abort a backend call the session is waiting on
func actionContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode response", "status", status, "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
