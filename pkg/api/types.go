package api

import (
	"context"
	"io"

	"github.com/ritzau/community-explorer/pkg/model"
)

// Backend is the contract of the remote analysis service
type Backend interface {
	Health(ctx context.Context) error
	ListDatasets(ctx context.Context) ([]model.Dataset, error)
	FetchGraph(ctx context.Context, graphID string) (model.GraphElements, error)
	Upload(ctx context.Context, filename string, content io.Reader) (string, error)
	Analyze(ctx context.Context, graphID string, algorithm model.Algorithm) (*AnalyzeResult, error)
	Metrics(ctx context.Context, graphID string, communities model.CommunityAssignment) (*MetricsResult, error)
}

// Observer receives one callback per backend call, e.g. for metrics
type Observer interface {
	ObserveBackendCall(endpoint, outcome string, seconds float64)
}

type datasetsResponse struct {
	Datasets []model.Dataset `json:"datasets"`
}

type graphResponse struct {
	Elements model.GraphElements `json:"elements"`
}

type uploadResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type analyzeRequest struct {
	GraphID   string          `json:"graph_id" validate:"required"`
	Algorithm model.Algorithm `json:"algorithm" validate:"required,oneof=label_propagation modularity_exact clique_percolation louvain_baseline"`
}

// AnalyzeResult is the body of a successful /analyze call
type AnalyzeResult struct {
	JobID     string                    `json:"job_id"`
	Status    string                    `json:"status"`
	Algorithm string                    `json:"algorithm"`
	Results   model.CommunityAssignment `json:"results"`
}

type metricsRequest struct {
	GraphID     string                    `json:"graph_id" validate:"required"`
	Communities model.CommunityAssignment `json:"communities" validate:"required,min=1"`
}

// MetricsResult is the body of a successful /metrics call
type MetricsResult struct {
	Modularity     float64 `json:"modularity"`
	NumCommunities int     `json:"num_communities"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string `json:"status"`
}
