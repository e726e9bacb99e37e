// Package session owns the client session: dataset listing, graph loading,
// analysis runs and the status line, and sequences them against the backend.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ritzau/community-explorer/pkg/analysis"
	"github.com/ritzau/community-explorer/pkg/api"
	"github.com/ritzau/community-explorer/pkg/graphstore"
	"github.com/ritzau/community-explorer/pkg/history"
	"github.com/ritzau/community-explorer/pkg/logging"
	"github.com/ritzau/community-explorer/pkg/metrics"
	"github.com/ritzau/community-explorer/pkg/model"
	"github.com/ritzau/community-explorer/pkg/pubsub"
	"github.com/ritzau/community-explorer/pkg/viz"
)

var (
	// ErrNoGraphSelected is returned by RunAnalysis before any graph is loaded
	ErrNoGraphSelected = errors.New("no graph selected")
	// ErrAnalysisInProgress is returned by RunAnalysis while a run is in flight
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	// ErrSuperseded is returned when a response arrives for a graph that is no longer current
	ErrSuperseded = errors.New("superseded by a newer graph selection")
)

// StateObserver is notified of every published state
type StateObserver interface {
	ObserveState(states []string, current string)
}

// Options configures an Orchestrator
type Options struct {
	Backend   api.Backend
	Renderer  viz.Renderer
	Publisher pubsub.Publisher     // optional; events are dropped when nil
	Observer  StateObserver        // optional
	Runs      analysis.RunObserver // optional
	Algorithm model.Algorithm      // initial algorithm; DefaultAlgorithm when empty
}

// Orchestrator is the only writer of session state. Every mutation happens
// under mu; backend calls are made without holding it.
type Orchestrator struct {
	backend   api.Backend
	store     *graphstore.Store
	runner    *analysis.AnalysisRunner
	computer  *metrics.Computer
	ledger    *history.Ledger
	sync      *viz.Sync
	publisher pubsub.Publisher
	observer  StateObserver

	mu           sync.Mutex
	selected     string
	algorithm    model.Algorithm
	assignment   model.CommunityAssignment
	loading      bool
	status       string
	failed       bool   // last analysis failed
	pendingLoads int    // graph fetches in flight
	generation   uint64 // bumped when a load starts and when a graph is installed
	installs     uint64 // bumped only when a graph is installed
}

// New creates an orchestrator in the Idle state
func New(opts Options) *Orchestrator {
	publisher := opts.Publisher
	if publisher == nil {
		publisher = pubsub.Discard
	}
	algorithm := opts.Algorithm
	if algorithm == "" {
		algorithm = model.DefaultAlgorithm
	}

	o := &Orchestrator{
		backend:   opts.Backend,
		store:     graphstore.NewStore(),
		runner:    analysis.NewAnalysisRunner(opts.Backend, opts.Runs),
		ledger:    history.NewLedger(),
		sync:      viz.NewSync(opts.Renderer),
		publisher: publisher,
		observer:  opts.Observer,
		algorithm: algorithm,
	}
	o.computer = metrics.NewComputer(opts.Backend, o.ledger, o.recordAdded)
	return o
}

// RefreshDatasets replaces the dataset list. When no graph is selected yet
// the first dataset is selected.
func (o *Orchestrator) RefreshDatasets(ctx context.Context) error {
	datasets, err := o.backend.ListDatasets(ctx)

	o.mu.Lock()
	if err != nil {
		o.status = "Error loading datasets: " + api.ErrorMessage(err)
		o.publishLocked()
		o.mu.Unlock()
		logging.ErrorContext(ctx, "failed to list datasets", "error", err)
		return fmt.Errorf("listing datasets: %w", err)
	}

	o.store.SetDatasets(datasets)
	autoSelect := o.selected == "" && o.pendingLoads == 0 && len(datasets) > 0
	if o.selected != "" && !o.store.HasDataset(o.selected) {
		logging.WarnContext(ctx, "selected graph is no longer listed", "graphID", o.selected)
	}
	o.publishLocked()
	o.mu.Unlock()

	logging.DebugContext(ctx, "datasets refreshed", "count", len(datasets))

	if autoSelect {
		return o.SelectGraph(ctx, datasets[0].ID)
	}
	return nil
}

// SelectGraph fetches a graph and makes it current. The previous
// assignment is cleared before the new graph becomes visible to analyses.
// If another selection starts before this one returns, this response is
// discarded and ErrSuperseded is returned.
func (o *Orchestrator) SelectGraph(ctx context.Context, graphID string) error {
	o.mu.Lock()
	o.generation++
	gen := o.generation
	o.pendingLoads++
	o.publishLocked()
	o.mu.Unlock()

	logging.InfoContext(ctx, "loading graph", "graphID", graphID, "generation", gen)
	elements, err := o.backend.FetchGraph(ctx, graphID)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.pendingLoads--

	if gen != o.generation {
		logging.DebugContext(ctx, "discarding superseded graph response", "graphID", graphID, "generation", gen)
		o.publishLocked()
		return ErrSuperseded
	}

	if err != nil {
		o.status = fmt.Sprintf("Error loading graph %s: %s", graphID, api.ErrorMessage(err))
		o.publishLocked()
		logging.ErrorContext(ctx, "failed to load graph", "graphID", graphID, "error", err)
		return fmt.Errorf("loading graph %s: %w", graphID, err)
	}

	nodeDescriptors, edgeDescriptors := elements.Counts()
	summary := o.store.SetGraph(graphID, elements)
	// Analyses started against the previous graph must not color this one
	o.generation++
	o.installs++
	o.selected = graphID
	o.assignment = nil
	o.failed = false
	o.status = fmt.Sprintf("Loaded %s.", graphID)

	o.sync.Apply(o.store.Elements(), nil)
	o.publishLocked()

	logging.InfoContext(ctx, "graph loaded",
		"graphID", graphID,
		"nodes", summary.Nodes,
		"edges", summary.Edges,
		"nodeDescriptors", nodeDescriptors,
		"edgeDescriptors", edgeDescriptors,
		"skipped", summary.Skipped,
	)
	return nil
}

// SelectAlgorithm sets the algorithm used by the next run
func (o *Orchestrator) SelectAlgorithm(id string) error {
	algorithm, err := model.ParseAlgorithm(id)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.algorithm = algorithm
	o.publishLocked()
	return nil
}

// RunAnalysis runs the selected algorithm on the selected graph and
// applies the result. The graph and algorithm are captured when the run
// starts. On success metrics are requested in the background after the
// status has been published.
func (o *Orchestrator) RunAnalysis(ctx context.Context) error {
	o.mu.Lock()
	if o.selected == "" {
		o.mu.Unlock()
		return ErrNoGraphSelected
	}
	if o.loading {
		o.mu.Unlock()
		return ErrAnalysisInProgress
	}

	graphID, algorithm, installed := o.selected, o.algorithm, o.installs
	o.loading = true
	o.status = fmt.Sprintf("Running %s analysis...", algorithm.DisplayName())
	o.publishLocked()
	o.mu.Unlock()

	assignment, err := o.runner.Run(ctx, graphID, algorithm)

	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.publishLocked()
	o.loading = false

	// Loads that fail or are superseded never install, so they leave this run alone
	if installed != o.installs || graphID != o.store.GraphID() {
		logging.DebugContext(ctx, "discarding analysis of a replaced graph", "graphID", graphID, "installs", installed)
		return ErrSuperseded
	}

	if err != nil {
		o.failed = true
		o.status = "Error: " + analysis.Message(err)
		return err
	}

	o.failed = false
	if len(assignment) == 0 {
		o.status = fmt.Sprintf("Analysis complete. No communities found using %s.", algorithm)
		return nil
	}

	o.assignment = assignment
	o.status = fmt.Sprintf("Analysis complete. Found %d communities using %s.", assignment.DistinctCount(), algorithm)
	o.sync.Apply(o.store.Elements(), assignment)

	// The status must be visible before any metrics result
	o.publishLocked()
	o.computer.Spawn(ctx, graphID, algorithm, assignment)
	return nil
}

// UploadFile sends a graph file to the backend and refreshes the dataset
// list. The selected graph is left alone.
func (o *Orchestrator) UploadFile(ctx context.Context, filename string, content io.Reader) error {
	graphID, err := o.backend.Upload(ctx, filename, content)
	if err != nil {
		o.mu.Lock()
		o.status = "Upload failed"
		o.publishLocked()
		o.mu.Unlock()
		logging.ErrorContext(ctx, "upload failed", "file", filename, "error", err)
		return fmt.Errorf("uploading %s: %w", filename, err)
	}

	o.mu.Lock()
	o.status = "File uploaded: " + graphID
	o.publishLocked()
	o.mu.Unlock()

	logging.InfoContext(ctx, "file uploaded", "file", filename, "graphID", graphID)
	return o.RefreshDatasets(ctx)
}

// Snapshot returns a copy of the session state
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// History returns the run history, newest first
func (o *Orchestrator) History() []model.RunRecord {
	return o.ledger.Records()
}

// Analyzing reports whether a detection call is in flight
func (o *Orchestrator) Analyzing() bool {
	return o.runner.InProgress()
}

// Wait blocks until background metrics requests have finished
func (o *Orchestrator) Wait() {
	o.computer.Wait()
}

func (o *Orchestrator) recordAdded(record model.RunRecord) {
	entries := historyEntries(o.ledger.Records())
	if err := o.publisher.Publish(pubsub.TopicHistory, "record", entries); err != nil {
		logging.Debug("history not published", "error", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.publishLocked()
}

func (o *Orchestrator) stateLocked() State {
	switch {
	case o.pendingLoads > 0:
		return LoadingGraph
	case o.loading:
		return Analyzing
	case o.selected == "":
		return Idle
	case o.failed:
		return AnalysisFailed
	default:
		return Ready
	}
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	assignment := o.assignment.Clone()
	if assignment == nil {
		assignment = model.CommunityAssignment{}
	}

	return Snapshot{
		State:          o.stateLocked().String(),
		SelectedGraph:  o.selected,
		Algorithm:      o.algorithm,
		Algorithms:     algorithmOptions(),
		Datasets:       o.store.Datasets(),
		Graph:          o.store.Index().Summary(),
		Elements:       o.store.Elements(),
		Assignment:     assignment,
		CommunitySizes: o.assignment.Sizes(),
		Loading:        o.loading,
		Status:         o.status,
		History:        historyEntries(o.ledger.Records()),
		Generation:     o.generation,
	}
}

func (o *Orchestrator) publishLocked() {
	snap := o.snapshotLocked()
	if o.observer != nil {
		o.observer.ObserveState(StateNames(), snap.State)
	}
	if err := o.publisher.Publish(pubsub.TopicSessionState, snap.State, snap); err != nil {
		logging.Debug("session state not published", "error", err)
	}
}
