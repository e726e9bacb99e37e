package web

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/ritzau/community-explorer/pkg/api"
	"github.com/ritzau/community-explorer/pkg/canvas"
	"github.com/ritzau/community-explorer/pkg/model"
	"github.com/ritzau/community-explorer/pkg/pubsub"
	"github.com/ritzau/community-explorer/pkg/session"
)

type fakeSession struct {
	mu        sync.Mutex
	snapshot  session.Snapshot
	selected  string
	algorithm string
	uploaded  string
	content   string
	runErr    error
	selectErr error
}

func (f *fakeSession) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *fakeSession) RefreshDatasets(ctx context.Context) error { return nil }

func (f *fakeSession) SelectGraph(ctx context.Context, graphID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = graphID
	f.snapshot.SelectedGraph = graphID
	return f.selectErr
}

func (f *fakeSession) SelectAlgorithm(id string) error {
	if _, err := model.ParseAlgorithm(id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.algorithm = id
	return nil
}

func (f *fakeSession) RunAnalysis(ctx context.Context) error {
	return f.runErr
}

func (f *fakeSession) UploadFile(ctx context.Context, filename string, content io.Reader) error {
	body, _ := io.ReadAll(content)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = filename
	f.content = string(body)
	return nil
}

type fakeFrames struct{}

func (fakeFrames) Frame() canvas.Frame {
	return canvas.Frame{Nodes: []canvas.Node{{ID: "1", Label: "1", Color: "#888"}}}
}

type fakeRecorder struct {
	mu     sync.Mutex
	routes []string
}

func (r *fakeRecorder) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, method+" "+route+" "+status)
}

func newTestServer(t *testing.T, sess *fakeSession) (*httptest.Server, *pubsub.SSEPublisher, *fakeRecorder) {
	t.Helper()
	publisher := pubsub.NewSessionPublisher()
	recorder := &fakeRecorder{}
	s := NewServer(Options{
		Session:   sess,
		Publisher: publisher,
		Frames:    fakeFrames{},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "# metrics\n")
		}),
		Recorder: recorder,
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		publisher.Close()
		srv.Close()
	})
	return srv, publisher, recorder
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var e errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	return e.Error
}

func TestHandleState(t *testing.T) {
	sess := &fakeSession{snapshot: session.Snapshot{State: "ready", Status: "Loaded karate."}}
	srv, _, _ := newTestServer(t, sess)

	resp, err := http.Get(srv.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("Expected request id header")
	}

	var snap session.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if snap.Status != "Loaded karate." {
		t.Errorf("Expected status 'Loaded karate.', got %q", snap.Status)
	}
}

func TestHandleSelect(t *testing.T) {
	sess := &fakeSession{}
	srv, _, _ := newTestServer(t, sess)

	resp := postJSON(t, srv.URL+"/api/select", `{"id":"karate"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if sess.selected != "karate" {
		t.Errorf("Expected karate to be selected, got %q", sess.selected)
	}

	resp = postJSON(t, srv.URL+"/api/select", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing id, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/select", `not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad JSON, got %d", resp.StatusCode)
	}
}

func TestHandleSelect_BackendFailure(t *testing.T) {
	sess := &fakeSession{selectErr: &api.RemoteError{Endpoint: "graph", Status: 404, Message: "Graph not found"}}
	srv, _, _ := newTestServer(t, sess)

	resp := postJSON(t, srv.URL+"/api/select", `{"id":"missing"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d", resp.StatusCode)
	}
	if msg := decodeError(t, resp); msg != "Graph not found" {
		t.Errorf("Expected remote message, got %q", msg)
	}
}

func TestHandleAlgorithm(t *testing.T) {
	sess := &fakeSession{}
	srv, _, _ := newTestServer(t, sess)

	resp := postJSON(t, srv.URL+"/api/algorithm", `{"algorithm":"modularity_exact"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if sess.algorithm != "modularity_exact" {
		t.Errorf("Expected modularity_exact, got %q", sess.algorithm)
	}

	resp = postJSON(t, srv.URL+"/api/algorithm", `{"algorithm":"kmeans"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown algorithm, got %d", resp.StatusCode)
	}
}

func TestHandleRun_Conflicts(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"ok", nil, http.StatusOK},
		{"no graph", session.ErrNoGraphSelected, http.StatusConflict},
		{"in progress", session.ErrAnalysisInProgress, http.StatusConflict},
		{"superseded", session.ErrSuperseded, http.StatusConflict},
		{"remote", errors.New("connection refused"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newTestServer(t, &fakeSession{runErr: tt.err})
			resp := postJSON(t, srv.URL+"/api/run", "")
			if resp.StatusCode != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, resp.StatusCode)
			}
		})
	}
}

func TestHandleUpload(t *testing.T) {
	sess := &fakeSession{}
	srv, _, _ := newTestServer(t, sess)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "custom.gml")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(part, "graph [ node [ id 1 ] ]")
	mw.Close()

	resp, err := http.Post(srv.URL+"/api/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if sess.uploaded != "custom.gml" || sess.content != "graph [ node [ id 1 ] ]" {
		t.Errorf("Unexpected upload: %q %q", sess.uploaded, sess.content)
	}
}

func TestHandleUpload_NoFile(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeSession{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("other", "x")
	mw.Close()

	resp, err := http.Post(srv.URL+"/api/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", resp.StatusCode)
	}
	if msg := decodeError(t, resp); msg != "No file part" {
		t.Errorf("Expected 'No file part', got %q", msg)
	}
}

func TestHandleSubscribe_ReplaysLatestState(t *testing.T) {
	srv, publisher, _ := newTestServer(t, &fakeSession{})

	if err := publisher.Publish(pubsub.TopicSessionState, "ready", map[string]string{"status": "Loaded karate."}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/subscribe/session_state", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected text/event-stream, got %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	var sawEvent bool
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("Stream ended before event: %v", err)
		}
		if line == "event: session_state\n" {
			sawEvent = true
			continue
		}
		if sawEvent && strings.HasPrefix(line, "data: ") {
			if !strings.Contains(line, "Loaded karate.") {
				t.Errorf("Unexpected data line: %s", line)
			}
			return
		}
	}
}

func TestHandleSubscribe_UnknownTopic(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeSession{})

	resp, err := http.Get(srv.URL + "/api/subscribe/workspace_status")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestHandleFrameMetricsAndStatic(t *testing.T) {
	srv, _, recorder := newTestServer(t, &fakeSession{})

	for path, want := range map[string]string{
		"/api/frame": `"color":"#888"`,
		"/metrics":   "# metrics",
		"/":          "Community Explorer",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, resp.StatusCode)
		}
		if !strings.Contains(string(body), want) {
			t.Errorf("GET %s: body missing %q", path, want)
		}
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	found := false
	for _, r := range recorder.routes {
		if r == "GET /api/frame 200" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected /api/frame to be recorded, got %v", recorder.routes)
	}
}
