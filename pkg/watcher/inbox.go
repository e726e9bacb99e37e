package watcher

import (
	"context"
	"time"
)

// Run watches inbox and uploads graph files through uploader until ctx is done
func Run(ctx context.Context, inbox string, uploader Uploader, quietPeriod, maxWait time.Duration) error {
	fw, err := NewFileWatcher(inbox)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}

	debouncer := NewDebouncer(fw.Events(), quietPeriod, maxWait)
	debouncer.Start(ctx)

	Forward(ctx, debouncer.Output(), uploader)
	return nil
}
