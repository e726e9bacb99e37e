package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/ritzau/community-explorer/pkg/api"
	"github.com/ritzau/community-explorer/pkg/model"
)

type recordingObserver struct {
	outcomes []string
}

func (o *recordingObserver) ObserveAnalysis(algorithm, outcome string, seconds float64) {
	o.outcomes = append(o.outcomes, algorithm+":"+outcome)
}

func TestRun_InProgressDuringCall(t *testing.T) {
	var runner *AnalysisRunner
	var sawInProgress bool

	backend := &api.MockBackend{
		AnalyzeFn: func(ctx context.Context, graphID string, algorithm model.Algorithm) (*api.AnalyzeResult, error) {
			sawInProgress = runner.InProgress()
			return &api.AnalyzeResult{Results: model.CommunityAssignment{
				{Node: "1", Community: model.IntCommunityID(1)},
			}}, nil
		},
	}
	runner = NewAnalysisRunner(backend, nil)

	if runner.InProgress() {
		t.Fatal("runner should be idle before the call")
	}
	got, err := runner.Run(context.Background(), "karate", model.AlgorithmLabelPropagation)
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if !sawInProgress {
		t.Error("InProgress() should be true while the backend call runs")
	}
	if runner.InProgress() {
		t.Error("InProgress() should be false after success")
	}
	if len(got) != 1 {
		t.Errorf("expected 1 entry, got %d", len(got))
	}
}

func TestRun_FailureReleasesInProgress(t *testing.T) {
	obs := &recordingObserver{}
	backend := &api.MockBackend{
		AnalyzeFn: func(ctx context.Context, graphID string, algorithm model.Algorithm) (*api.AnalyzeResult, error) {
			return nil, &api.RemoteError{Endpoint: "analyze", Status: 500, Message: "solver timeout"}
		},
	}
	runner := NewAnalysisRunner(backend, obs)

	_, err := runner.Run(context.Background(), "karate", model.AlgorithmModularityExact)
	if err == nil {
		t.Fatal("expected error")
	}
	if runner.InProgress() {
		t.Error("InProgress() should be false after failure")
	}
	if got := Message(err); got != "solver timeout" {
		t.Errorf("Message() = %q, want %q", got, "solver timeout")
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != "modularity_exact:error" {
		t.Errorf("unexpected observations: %v", obs.outcomes)
	}
}

func TestRun_EmptyResults(t *testing.T) {
	backend := &api.MockBackend{
		AnalyzeFn: func(ctx context.Context, graphID string, algorithm model.Algorithm) (*api.AnalyzeResult, error) {
			return &api.AnalyzeResult{Status: "completed", Results: nil}, nil
		},
	}
	runner := NewAnalysisRunner(backend, nil)

	got, err := runner.Run(context.Background(), "karate", model.AlgorithmCliquePercolation)
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil assignment, got %v", got)
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"remote with message", &api.RemoteError{Status: 500, Message: "solver timeout"}, "solver timeout"},
		{"remote without message", &api.RemoteError{Status: 503}, "Request failed with status code 503"},
		{"transport", errors.New("connection refused"), "connection refused"},
		{"nil", nil, GenericFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.err); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}
