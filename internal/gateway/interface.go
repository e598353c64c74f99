// Package gateway exposes the job registry over HTTP: starting jobs, streaming
// their events as Server-Sent Events, polling, cancelling and downloads, plus
// blocking variants for clients that cannot follow a stream.
package gateway

import (
	"context"
	"net/http"

	"github.com/nguyentantai21042004/meeting-summary/internal/job"
)

// Registry is the job surface served by the gateway
type Registry interface {
	Start(ctx context.Context, req job.Request) (string, error)
	Wait(ctx context.Context, id string) (job.Snapshot, error)
	Summarize(ctx context.Context, req job.SummaryRequest) (string, error)
	Cancel(id string) error
	Subscribe(ctx context.Context, id string) (<-chan job.Event, error)
	Poll(ctx context.Context, id string) (job.Snapshot, error)
	List() []job.Snapshot
	Artifact(ctx context.Context, id, name string) (string, error)
}

// Server serves the HTTP API
type Server interface {
	Handler() http.Handler
	// Run listens until ctx ends, then shuts down gracefully
	Run(ctx context.Context) error
}
