package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"github.com/ritzau/community-explorer/pkg/logging"
	"github.com/ritzau/community-explorer/pkg/model"
)

var validate = validator.New()

// Options configures a Client
type Options struct {
	BaseURL   string        // e.g., "http://localhost:5000/api"
	HealthURL string        // e.g., "http://localhost:5000/health"
	Timeout   time.Duration // per request; 0 waits indefinitely
	HTTP      *http.Client  // optional, wrapped with the logging transport
	Observer  Observer      // optional
	Breaker   *gobreaker.Settings
}

// Client talks to the community detection backend over REST
type Client struct {
	baseURL   string
	healthURL string
	timeout   time.Duration
	http      *http.Client
	observer  Observer
	breaker   *gobreaker.CircuitBreaker
}

// DefaultBreakerSettings trips after five consecutive transport or 5xx failures
// and probes again after 15 seconds.
func DefaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
}

// NewClient creates a backend client
func NewClient(opts Options) *Client {
	httpClient := opts.HTTP
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	wrapped := *httpClient
	wrapped.Transport = logging.NewTransport(httpClient.Transport)

	settings := DefaultBreakerSettings()
	if opts.Breaker != nil {
		settings = *opts.Breaker
	}
	// Client-side rejections (4xx) say nothing about backend health
	settings.IsSuccessful = func(err error) bool {
		var remote *RemoteError
		if errors.As(err, &remote) {
			return remote.Status < http.StatusInternalServerError
		}
		return err == nil
	}

	healthURL := opts.HealthURL
	if healthURL == "" {
		healthURL = strings.TrimSuffix(strings.TrimRight(opts.BaseURL, "/"), "/api") + "/health"
	}

	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		healthURL: healthURL,
		timeout:   opts.Timeout,
		http:      &wrapped,
		observer:  opts.Observer,
		breaker:   gobreaker.NewCircuitBreaker(settings),
	}
}

// Health probes the backend's health endpoint
func (c *Client) Health(ctx context.Context) error {
	var resp healthResponse
	if err := c.do(ctx, "health", http.MethodGet, c.healthURL, nil, "", &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("health: unexpected status %q", resp.Status)
	}
	return nil
}

// ListDatasets fetches the available datasets
func (c *Client) ListDatasets(ctx context.Context) ([]model.Dataset, error) {
	var resp datasetsResponse
	if err := c.do(ctx, "datasets", http.MethodGet, c.baseURL+"/datasets", nil, "", &resp); err != nil {
		return nil, err
	}
	if resp.Datasets == nil {
		resp.Datasets = []model.Dataset{}
	}
	return resp.Datasets, nil
}

// FetchGraph fetches the element set of one dataset
func (c *Client) FetchGraph(ctx context.Context, graphID string) (model.GraphElements, error) {
	if graphID == "" {
		return nil, fmt.Errorf("graph: empty graph id")
	}
	var resp graphResponse
	endpoint := c.baseURL + "/graph/" + url.PathEscape(graphID)
	if err := c.do(ctx, "graph", http.MethodGet, endpoint, nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Elements, nil
}

// Upload posts a graph file as multipart field "file" and returns the new dataset id
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("upload: reading %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	var resp uploadResponse
	if err := c.do(ctx, "upload", http.MethodPost, c.baseURL+"/upload", body.Bytes(), mw.FormDataContentType(), &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("upload: response carried no dataset id")
	}
	return resp.ID, nil
}

// Analyze runs a detection algorithm against a dataset
func (c *Client) Analyze(ctx context.Context, graphID string, algorithm model.Algorithm) (*AnalyzeResult, error) {
	req := analyzeRequest{GraphID: graphID, Algorithm: algorithm}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("analyze: invalid request: %w", err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	var resp AnalyzeResult
	if err := c.do(ctx, "analyze", http.MethodPost, c.baseURL+"/analyze", payload, "application/json", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Metrics asks the backend to score an assignment
func (c *Client) Metrics(ctx context.Context, graphID string, communities model.CommunityAssignment) (*MetricsResult, error) {
	req := metricsRequest{GraphID: graphID, Communities: communities}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("metrics: invalid request: %w", err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	var resp MetricsResult
	if err := c.do(ctx, "metrics", http.MethodPost, c.baseURL+"/metrics", payload, "application/json", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do executes one call through the circuit breaker and decodes the JSON body into out
func (c *Client) do(ctx context.Context, name, method, endpoint string, body []byte, contentType string, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, name, method, endpoint, body, contentType, out)
	})
	err = breakerError(name, err)

	if c.observer != nil {
		c.observer.ObserveBackendCall(name, outcome(err), time.Since(start).Seconds())
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, name, method, endpoint string, body []byte, contentType string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", name, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remote := &RemoteError{Endpoint: name, Status: resp.StatusCode}
		var payload errorResponse
		// A body that is not JSON simply leaves Message empty
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)); readErr == nil {
			if json.Unmarshal(data, &payload) == nil {
				remote.Message = payload.Error
			}
		}
		return remote
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", name, err)
	}
	return nil
}

func outcome(err error) string {
	var remote *RemoteError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &remote):
		return "remote_error"
	case errors.Is(err, ErrBackendUnavailable):
		return "rejected"
	default:
		return "transport_error"
	}
}

var _ Backend = (*Client)(nil)
