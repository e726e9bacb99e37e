package analysis

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ritzau/community-explorer/pkg/api"
	"github.com/ritzau/community-explorer/pkg/logging"
	"github.com/ritzau/community-explorer/pkg/model"
)

// GenericFailure is shown when a failure carries no usable message
const GenericFailure = "analysis failed"

// RunObserver is notified of every completed run
type RunObserver interface {
	ObserveAnalysis(algorithm, outcome string, seconds float64)
}

// AnalysisRunner invokes a remote detection algorithm and tracks whether a call is in flight
type AnalysisRunner struct {
	backend  api.Backend
	observer RunObserver
	inFlight atomic.Int32
}

// NewAnalysisRunner creates a new analysis runner. observer may be nil.
func NewAnalysisRunner(backend api.Backend, observer RunObserver) *AnalysisRunner {
	return &AnalysisRunner{
		backend:  backend,
		observer: observer,
	}
}

// InProgress reports whether a run is currently waiting on the backend
func (ar *AnalysisRunner) InProgress() bool {
	return ar.inFlight.Load() > 0
}

// Run executes one detection call. The in-progress flag is held for exactly
// the duration of the call, on success and failure alike. A nil assignment
// with a nil error means the backend returned no results.
func (ar *AnalysisRunner) Run(ctx context.Context, graphID string, algorithm model.Algorithm) (model.CommunityAssignment, error) {
	ar.inFlight.Add(1)
	defer ar.inFlight.Add(-1)

	start := time.Now()
	logging.InfoContext(ctx, "analysis started", "graphID", graphID, "algorithm", string(algorithm))

	res, err := ar.backend.Analyze(ctx, graphID, algorithm)
	elapsed := time.Since(start)

	if err != nil {
		ar.observe(algorithm, "error", elapsed)
		logging.WarnContext(ctx, "analysis failed", "graphID", graphID, "algorithm", string(algorithm), "error", err)
		return nil, fmt.Errorf("running %s on %s: %w", algorithm, graphID, err)
	}

	if len(res.Results) == 0 {
		ar.observe(algorithm, "empty", elapsed)
		logging.InfoContext(ctx, "analysis returned no communities", "graphID", graphID, "algorithm", string(algorithm), "jobID", res.JobID)
		return nil, nil
	}

	ar.observe(algorithm, "ok", elapsed)
	logging.InfoContext(ctx, "analysis complete",
		"graphID", graphID,
		"algorithm", string(algorithm),
		"jobID", res.JobID,
		"entries", len(res.Results),
		"communities", res.Results.DistinctCount(),
		"durationMs", elapsed.Milliseconds(),
	)
	return res.Results, nil
}

func (ar *AnalysisRunner) observe(algorithm model.Algorithm, outcome string, elapsed time.Duration) {
	if ar.observer != nil {
		ar.observer.ObserveAnalysis(string(algorithm), outcome, elapsed.Seconds())
	}
}

// Message maps a run failure to the user-facing text: the server's error
// message if present, otherwise the failure description.
func Message(err error) string {
	if msg := api.ErrorMessage(err); msg != "" {
		return msg
	}
	return GenericFailure
}
