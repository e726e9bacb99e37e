// Package watcher uploads graph files dropped into an inbox directory.
package watcher

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/community-explorer/pkg/logging"
)

// batchWindow groups the burst of events a single file write produces
const batchWindow = 100 * time.Millisecond

// ChangeType represents the kind of graph file that changed
type ChangeType int

const (
	ChangeTypeGML ChangeType = iota
	ChangeTypeCSV
)

func (t ChangeType) String() string {
	switch t {
	case ChangeTypeGML:
		return "gml"
	case ChangeTypeCSV:
		return "csv"
	}
	return "unknown"
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// FileWatcher watches an inbox directory for new or rewritten graph files
type FileWatcher struct {
	watcher *fsnotify.Watcher
	inbox   string
	events  chan ChangeEvent
}

// NewFileWatcher creates a watcher for inbox. The directory must exist.
func NewFileWatcher(inbox string) (*FileWatcher, error) {
	info, err := os.Stat(inbox)
	if err != nil {
		return nil, fmt.Errorf("inbox %s: %w", inbox, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("inbox %s is not a directory", inbox)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		inbox:   inbox,
		events:  make(chan ChangeEvent, 100),
	}, nil
}

// Start begins watching. Events stop and the channel is closed when ctx is done.
func (fw *FileWatcher) Start(ctx context.Context) error {
	if err := fw.watcher.Add(fw.inbox); err != nil {
		fw.watcher.Close()
		return fmt.Errorf("failed to watch inbox: %w", err)
	}

	logging.Info("watching inbox", "path", fw.inbox)
	go fw.processEvents(ctx)
	return nil
}

// processEvents batches relevant events by file type
func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)
	defer fw.watcher.Close()

	pending := make(map[ChangeType][]string)

	flushTimer := time.NewTimer(batchWindow)
	flushTimer.Stop()

	flush := func() {
		for _, t := range []ChangeType{ChangeTypeGML, ChangeTypeCSV} {
			if len(pending[t]) == 0 {
				continue
			}
			select {
			case fw.events <- ChangeEvent{Type: t, Paths: pending[t], Timestamp: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
		pending = make(map[ChangeType][]string)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			t, ok := ClassifyPath(event.Name)
			if !ok {
				logging.Trace("ignoring inbox event", "path", event.Name, "op", event.Op.String())
				continue
			}
			pending[t] = append(pending[t], event.Name)
			flushTimer.Reset(batchWindow)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}
