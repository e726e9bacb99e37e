package watcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ritzau/community-explorer/pkg/logging"
)

// Uploader sends one graph file to the backend
type Uploader interface {
	UploadFile(ctx context.Context, filename string, content io.Reader) error
}

// ClassifyPath reports whether path is an uploadable graph file.
// Hidden files and editor temporaries are ignored.
func ClassifyPath(path string) (ChangeType, bool) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return 0, false
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".gml":
		return ChangeTypeGML, true
	case ".csv":
		return ChangeTypeCSV, true
	}
	return 0, false
}

// PlanUploads returns the paths of event that still exist as non-empty regular files
func PlanUploads(event ChangeEvent) []string {
	var plan []string
	for _, p := range event.Paths {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
			logging.Debug("skipping inbox file", "path", p)
			continue
		}
		plan = append(plan, p)
	}
	return plan
}

// Forward uploads every planned file of every event until events is closed
// or ctx is done. Upload failures are logged; the session reports them.
func Forward(ctx context.Context, events <-chan ChangeEvent, uploader Uploader) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			for _, path := range PlanUploads(event) {
				if err := uploadPath(ctx, uploader, path); err != nil {
					logging.Warn("inbox upload failed", "path", path, "error", err)
				}
			}
		}
	}
}

func uploadPath(ctx context.Context, uploader Uploader, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	logging.Info("uploading inbox file", "path", path)
	return uploader.UploadFile(ctx, filepath.Base(path), f)
}
