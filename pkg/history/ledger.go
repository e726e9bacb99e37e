// Package history keeps the bounded, newest-first record of analysis runs
// used for cross-run comparison.
package history

import (
	"math"
	"sync"

	"github.com/ritzau/community-explorer/pkg/model"
)

// Capacity is the number of runs retained
const Capacity = 5

// Ledger is an append-only record of the most recent runs, newest first.
// It lives for one session; there is no clear operation.
type Ledger struct {
	mu      sync.RWMutex
	records []model.RunRecord
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{records: make([]model.RunRecord, 0, Capacity)}
}

// Add prepends a record and evicts the oldest ones beyond Capacity
func (l *Ledger) Add(record model.RunRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := make([]model.RunRecord, 0, Capacity)
	next = append(next, record)
	next = append(next, l.records...)
	if len(next) > Capacity {
		next = next[:Capacity]
	}
	l.records = next
}

// Records returns a copy of the retained records, newest first
func (l *Ledger) Records() []model.RunRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.RunRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of retained records
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Score is the comparison bar width in percent: modularity scaled to
// 0..100 with a 2% floor so that zero and negative scores stay visible.
func Score(record model.RunRecord) float64 {
	width := record.Modularity * 100
	if math.IsNaN(width) {
		return 2
	}
	return math.Min(100, math.Max(2, width))
}
