package api

import (
	"context"
	"io"
	"sync"

	"github.com/ritzau/community-explorer/pkg/model"
)

// MockBackend is a Backend for tests. Each call is delegated to the matching
// function field; a nil field returns a zero value and no error.
type MockBackend struct {
	HealthFn       func(ctx context.Context) error
	ListDatasetsFn func(ctx context.Context) ([]model.Dataset, error)
	FetchGraphFn   func(ctx context.Context, graphID string) (model.GraphElements, error)
	UploadFn       func(ctx context.Context, filename string, content io.Reader) (string, error)
	AnalyzeFn      func(ctx context.Context, graphID string, algorithm model.Algorithm) (*AnalyzeResult, error)
	MetricsFn      func(ctx context.Context, graphID string, communities model.CommunityAssignment) (*MetricsResult, error)

	mu    sync.Mutex
	calls []string
}

// Calls returns the endpoint names invoked so far, in order
func (m *MockBackend) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockBackend) record(name string) {
	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()
}

func (m *MockBackend) Health(ctx context.Context) error {
	m.record("health")
	if m.HealthFn == nil {
		return nil
	}
	return m.HealthFn(ctx)
}

func (m *MockBackend) ListDatasets(ctx context.Context) ([]model.Dataset, error) {
	m.record("datasets")
	if m.ListDatasetsFn == nil {
		return []model.Dataset{}, nil
	}
	return m.ListDatasetsFn(ctx)
}

func (m *MockBackend) FetchGraph(ctx context.Context, graphID string) (model.GraphElements, error) {
	m.record("graph")
	if m.FetchGraphFn == nil {
		return model.GraphElements{}, nil
	}
	return m.FetchGraphFn(ctx, graphID)
}

func (m *MockBackend) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	m.record("upload")
	if m.UploadFn == nil {
		return filename, nil
	}
	return m.UploadFn(ctx, filename, content)
}

func (m *MockBackend) Analyze(ctx context.Context, graphID string, algorithm model.Algorithm) (*AnalyzeResult, error) {
	m.record("analyze")
	if m.AnalyzeFn == nil {
		return &AnalyzeResult{Status: "completed", Algorithm: string(algorithm)}, nil
	}
	return m.AnalyzeFn(ctx, graphID, algorithm)
}

func (m *MockBackend) Metrics(ctx context.Context, graphID string, communities model.CommunityAssignment) (*MetricsResult, error) {
	m.record("metrics")
	if m.MetricsFn == nil {
		return &MetricsResult{NumCommunities: communities.DistinctCount()}, nil
	}
	return m.MetricsFn(ctx, graphID, communities)
}

var _ Backend = (*MockBackend)(nil)
