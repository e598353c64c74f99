package watcher

import "context"

// Watcher monitors a drop folder for new recordings
type Watcher interface {
	Start(ctx context.Context) error
	Stop() error
}

// EventHandler is called once per video file after it stops changing
type EventHandler func(ctx context.Context, filePath string) error
