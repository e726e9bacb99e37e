package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/community-explorer/pkg/api"
	"github.com/ritzau/community-explorer/pkg/history"
	"github.com/ritzau/community-explorer/pkg/model"
)

var assignment = model.CommunityAssignment{
	{Node: "1", Community: model.IntCommunityID(1)},
	{Node: "2", Community: model.IntCommunityID(1)},
	{Node: "3", Community: model.IntCommunityID(2)},
}

func TestCompute_AppendsTaggedRecord(t *testing.T) {
	backend := &api.MockBackend{
		MetricsFn: func(ctx context.Context, graphID string, c model.CommunityAssignment) (*api.MetricsResult, error) {
			return &api.MetricsResult{Modularity: 0.42, NumCommunities: 2}, nil
		},
	}
	ledger := history.NewLedger()
	var notified []model.RunRecord
	c := NewComputer(backend, ledger, func(r model.RunRecord) { notified = append(notified, r) })

	record, err := c.Compute(context.Background(), "karate", model.AlgorithmLabelPropagation, assignment)
	require.NoError(t, err)

	want := model.RunRecord{Algorithm: model.AlgorithmLabelPropagation, Modularity: 0.42, NumCommunities: 2}
	assert.Equal(t, want, record)
	assert.Equal(t, []model.RunRecord{want}, ledger.Records())
	assert.Equal(t, []model.RunRecord{want}, notified)
}

func TestCompute_FailureLeavesLedgerUntouched(t *testing.T) {
	backend := &api.MockBackend{
		MetricsFn: func(ctx context.Context, graphID string, c model.CommunityAssignment) (*api.MetricsResult, error) {
			return nil, &api.RemoteError{Endpoint: "metrics", Status: 400, Message: "Missing data"}
		},
	}
	ledger := history.NewLedger()
	c := NewComputer(backend, ledger, nil)

	_, err := c.Compute(context.Background(), "karate", model.AlgorithmLouvainBaseline, assignment)
	var remote *api.RemoteError
	assert.True(t, errors.As(err, &remote))
	assert.Equal(t, 0, ledger.Len())
}

func TestSpawn_SurvivesCancelledContext(t *testing.T) {
	release := make(chan struct{})
	backend := &api.MockBackend{
		MetricsFn: func(ctx context.Context, graphID string, c model.CommunityAssignment) (*api.MetricsResult, error) {
			<-release
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return &api.MetricsResult{Modularity: 0.1, NumCommunities: 2}, nil
		},
	}
	ledger := history.NewLedger()
	c := NewComputer(backend, ledger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	c.Spawn(ctx, "karate", model.AlgorithmCliquePercolation, assignment)
	cancel()
	close(release)

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("spawned computation did not finish")
	}

	require.Equal(t, 1, ledger.Len())
	assert.Equal(t, model.AlgorithmCliquePercolation, ledger.Records()[0].Algorithm)
}
