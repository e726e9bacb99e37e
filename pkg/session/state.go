package session

import (
	"github.com/ritzau/community-explorer/pkg/graphstore"
	"github.com/ritzau/community-explorer/pkg/history"
	"github.com/ritzau/community-explorer/pkg/model"
)

// State is the orchestrator's coarse phase
type State int

const (
	Idle State = iota
	LoadingGraph
	Ready
	Analyzing
	AnalysisFailed
)

var stateNames = [...]string{
	Idle:           "idle",
	LoadingGraph:   "loading_graph",
	Ready:          "ready",
	Analyzing:      "analyzing",
	AnalysisFailed: "analysis_failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// StateNames lists every state name
func StateNames() []string {
	return stateNames[:]
}

// AlgorithmOption is one entry of the algorithm menu
type AlgorithmOption struct {
	ID   model.Algorithm `json:"id"`
	Name string          `json:"name"`
}

// HistoryEntry is a run record with its comparison bar width
type HistoryEntry struct {
	model.RunRecord
	Score float64 `json:"score"`
}

// Snapshot is a copy of the session state handed to views
type Snapshot struct {
	State          string                    `json:"state"`
	SelectedGraph  string                    `json:"selectedGraph"`
	Algorithm      model.Algorithm           `json:"algorithm"`
	Algorithms     []AlgorithmOption         `json:"algorithms"`
	Datasets       []model.Dataset           `json:"datasets"`
	Graph          graphstore.Summary        `json:"graph"`
	Elements       model.GraphElements       `json:"-"` // views receive the scene on the render_frame topic
	Assignment     model.CommunityAssignment `json:"assignment"`
	CommunitySizes []model.CommunitySize     `json:"communitySizes"`
	Loading        bool                      `json:"loading"`
	Status         string                    `json:"status"`
	History        []HistoryEntry            `json:"history"`
	Generation     uint64                    `json:"generation"`
}

func algorithmOptions() []AlgorithmOption {
	algs := model.Algorithms()
	opts := make([]AlgorithmOption, len(algs))
	for i, a := range algs {
		opts[i] = AlgorithmOption{ID: a, Name: a.DisplayName()}
	}
	return opts
}

func historyEntries(records []model.RunRecord) []HistoryEntry {
	entries := make([]HistoryEntry, len(records))
	for i, r := range records {
		entries[i] = HistoryEntry{RunRecord: r, Score: history.Score(r)}
	}
	return entries
}
