// Package metrics requests partition quality scores from the backend and
// folds them into the run history.
package metrics

import (
	"context"
	"fmt"
	"sync"

	"github.com/ritzau/community-explorer/pkg/api"
	"github.com/ritzau/community-explorer/pkg/history"
	"github.com/ritzau/community-explorer/pkg/logging"
	"github.com/ritzau/community-explorer/pkg/model"
)

// Computer is the client-side proxy for the backend's /metrics endpoint
type Computer struct {
	backend  api.Backend
	ledger   *history.Ledger
	onRecord func(model.RunRecord)
	wg       sync.WaitGroup
}

// NewComputer creates a metrics computer writing into ledger.
// onRecord, if set, is called after each record is added.
func NewComputer(backend api.Backend, ledger *history.Ledger, onRecord func(model.RunRecord)) *Computer {
	return &Computer{
		backend:  backend,
		ledger:   ledger,
		onRecord: onRecord,
	}
}

// Compute scores an assignment and appends the run to the ledger.
// algorithm is the one active when the analysis was started.
func (c *Computer) Compute(ctx context.Context, graphID string, algorithm model.Algorithm, assignment model.CommunityAssignment) (model.RunRecord, error) {
	res, err := c.backend.Metrics(ctx, graphID, assignment)
	if err != nil {
		return model.RunRecord{}, fmt.Errorf("computing metrics for %s: %w", graphID, err)
	}

	record := model.RunRecord{
		Algorithm:      algorithm,
		Modularity:     res.Modularity,
		NumCommunities: res.NumCommunities,
	}
	c.ledger.Add(record)

	logging.DebugContext(ctx, "run recorded",
		"graphID", graphID,
		"algorithm", string(algorithm),
		"modularity", record.Modularity,
		"communities", record.NumCommunities,
	)

	if c.onRecord != nil {
		c.onRecord(record)
	}
	return record, nil
}

// Spawn runs Compute in the background and returns immediately.
// The call outlives ctx's cancellation but keeps its values (request id).
// Failures are logged and otherwise dropped.
func (c *Computer) Spawn(ctx context.Context, graphID string, algorithm model.Algorithm, assignment model.CommunityAssignment) {
	detached := context.WithoutCancel(ctx)
	snapshot := assignment.Clone()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.Compute(detached, graphID, algorithm, snapshot); err != nil {
			logging.WarnContext(detached, "metrics failed", "graphID", graphID, "algorithm", string(algorithm), "error", err)
		}
	}()
}

// Wait blocks until all spawned computations have finished
func (c *Computer) Wait() {
	c.wg.Wait()
}
