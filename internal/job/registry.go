package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nguyentantai21042004/meeting-summary/internal/logger"
	"github.com/nguyentantai21042004/meeting-summary/internal/stage"
	"github.com/nguyentantai21042004/meeting-summary/internal/store"
)

// Stages bundles the external adapters a job calls in order
type Stages struct {
	Extractor   stage.Extractor
	Transcriber stage.Transcriber
	Summarizer  stage.Summarizer
}

// Exporter writes downloadable artifacts for a finished job into dir
type Exporter interface {
	Export(ctx context.Context, dir, name, transcript, summary string) (map[string]string, error)
}

// Options tunes a Registry. Zero values get defaults.
type Options struct {
	// MaxConcurrent bounds jobs in the Running state; the rest wait as Pending
	MaxConcurrent int
	// ChunkFanout bounds concurrent summarize calls within one job
	ChunkFanout int
	// Retention is how long a terminal job stays in memory
	Retention time.Duration
	// SweepInterval is how often terminal jobs past Retention are evicted
	SweepInterval time.Duration
	// WorkDir holds one directory per job, named by job id, for every file the
	// job writes
	WorkDir string
	// Store keeps terminal snapshots after eviction
	Store store.Store
	// Exporter is optional
	Exporter Exporter
	// DownloadURL builds the client-facing link for an artifact
	DownloadURL func(jobID, artifact string) string
}

// Registry owns every job in the process. Its lock guards only the id -> job
// map; event content is guarded per job.
type Registry struct {
	stages  Stages
	opts    Options
	logger  logger.Logger
	limiter *semaphore

	mu   sync.RWMutex
	jobs map[string]*Job

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a Registry and starts its retention janitor
func NewRegistry(stages Stages, opts Options, log logger.Logger) *Registry {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 2
	}
	if opts.ChunkFanout <= 0 {
		opts.ChunkFanout = 2
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.WorkDir == "" {
		opts.WorkDir = filepath.Join(os.TempDir(), "meeting-summary")
	}
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	if opts.DownloadURL == nil {
		opts.DownloadURL = func(jobID, artifact string) string {
			return fmt.Sprintf("/api/download/%s/%s", jobID, artifact)
		}
	}

	r := &Registry{
		stages:  stages,
		opts:    opts,
		logger:  log,
		limiter: newSemaphore(opts.MaxConcurrent),
		jobs:    make(map[string]*Job),
		stop:    make(chan struct{}),
	}

	go r.janitor()
	return r
}

// Start validates req, registers a Pending job and runs it in the background.
// It returns as soon as the job is registered.
func (r *Registry) Start(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.VideoPath) == "" {
		return "", fmt.Errorf("%w: video path is required", ErrInvalidRequest)
	}
	if !stage.IsVideoFile(req.VideoPath) {
		return "", fmt.Errorf("%w: unsupported video type %q", ErrInvalidRequest, filepath.Ext(req.VideoPath))
	}
	if req.ContextLength < 0 {
		return "", fmt.Errorf("%w: context length must be >= 0", ErrInvalidRequest)
	}

	j := newJob(uuid.NewString(), req, time.Now())

	// Shutdown closes stop under mu, so no Add can race its Wait
	r.mu.Lock()
	select {
	case <-r.stop:
		r.mu.Unlock()
		return "", ErrShutdown
	default:
	}
	r.jobs[j.id] = j
	r.wg.Add(1)
	r.mu.Unlock()

	go r.execute(j)

	r.logger.Info(ctx, "Job %s queued for %s (context length %d)", j.id, req.VideoPath, req.ContextLength)
	return j.id, nil
}

// Summarize runs only the summarize stage, chunked the same way a job is, on
// a transcript supplied by the caller. It waits for a run slot like a job and
// stops early when ctx ends. Nothing is registered or persisted.
func (r *Registry) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	text := strings.TrimSpace(req.Transcript)
	if text == "" {
		return "", fmt.Errorf("%w: transcript is required", ErrInvalidRequest)
	}
	if req.ContextLength < 0 {
		return "", fmt.Errorf("%w: context length must be >= 0", ErrInvalidRequest)
	}

	if err := r.limiter.acquire(ctx, nil); err != nil {
		return "", err
	}
	defer r.limiter.release()

	j := newJob(uuid.NewString(), Request{
		SummaryModel:  req.SummaryModel,
		ContextLength: req.ContextLength,
		ExtraPrompt:   req.ExtraPrompt,
	}, time.Now())
	ctx = logger.WithFields(ctx, map[string]interface{}{"summary_id": j.id})
	r.logger.Info(ctx, "Summarizing %d characters of supplied transcript", utf8.RuneCountInString(text))

	return r.summarize(ctx, j, text)
}

// Cancel asks a job to stop before its next stage. A call already running is
// left to finish.
func (r *Registry) Cancel(id string) error {
	j, ok := r.lookup(id)
	if !ok {
		return ErrJobNotFound
	}
	if j.Snapshot().Status.Terminal() {
		return ErrJobFinished
	}
	j.requestCancel()
	r.logger.Info(context.Background(), "Job %s cancellation requested", id)
	return nil
}

// Get returns the in-memory job with the given id
func (r *Registry) Get(id string) (*Job, error) {
	j, ok := r.lookup(id)
	if !ok {
		return nil, ErrJobNotFound
	}
	return j, nil
}

// List returns snapshots of all in-memory jobs, oldest first
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	out := make([]Snapshot, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.Snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out
}

// Poll returns the current state of a job. Evicted jobs are read back from
// the store.
func (r *Registry) Poll(ctx context.Context, id string) (Snapshot, error) {
	if j, ok := r.lookup(id); ok {
		return j.Snapshot(), nil
	}

	rec, err := r.load(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return rec.Snapshot, nil
}

// Artifact returns the file behind a download name of a finished job
func (r *Registry) Artifact(ctx context.Context, id, name string) (string, error) {
	if j, ok := r.lookup(id); ok {
		path, found := j.artifact(name)
		if !found {
			return "", ErrArtifactNotFound
		}
		return path, nil
	}

	rec, err := r.load(ctx, id)
	if err != nil {
		return "", err
	}
	path, found := rec.Files[name]
	if !found {
		return "", ErrArtifactNotFound
	}
	return path, nil
}

// Subscribe streams a job's events: everything recorded so far, then new
// events as they are appended. The channel closes after the done event or
// when ctx ends; leaving early has no effect on the job.
func (r *Registry) Subscribe(ctx context.Context, id string) (<-chan Event, error) {
	j, ok := r.lookup(id)
	if !ok {
		return nil, ErrJobNotFound
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)

		next := 0
		for {
			evs, changed := j.since(next)
			if len(evs) == 0 {
				select {
				case <-changed:
					continue
				case <-ctx.Done():
					return
				}
			}

			for _, ev := range evs {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
				next++
				if ev.Kind() == KindDone {
					return
				}
			}
		}
	}()
	return out, nil
}

// Wait blocks until the job is terminal or ctx ends
func (r *Registry) Wait(ctx context.Context, id string) (Snapshot, error) {
	j, ok := r.lookup(id)
	if !ok {
		return r.Poll(ctx, id)
	}

	for {
		_, changed := j.since(0)
		snap := j.Snapshot()
		if snap.Status.Terminal() {
			return snap, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// Sweep evicts terminal jobs that finished more than Retention before now
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, j := range r.jobs {
		finishedAt, terminal := j.terminalSince()
		if terminal && now.Sub(finishedAt) > r.opts.Retention {
			delete(r.jobs, id)
			evicted++
		}
	}
	return evicted
}

// Shutdown stops the janitor and waits for running jobs to terminate
func (r *Registry) Shutdown(ctx context.Context) error {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		close(r.stop)
		r.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) janitor() {
	ticker := time.NewTicker(r.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				r.logger.Debug(context.Background(), "Evicted %d finished jobs", n)
			}
		}
	}
}

func (r *Registry) lookup(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}

// record is what the store keeps for a terminal job
type record struct {
	Snapshot Snapshot          `json:"snapshot"`
	Files    map[string]string `json:"files,omitempty"`
}

func (r *Registry) persist(ctx context.Context, j *Job) {
	j.mu.Lock()
	files := j.files
	j.mu.Unlock()

	data, err := json.Marshal(record{Snapshot: j.Snapshot(), Files: files})
	if err != nil {
		r.logger.Error(ctx, "Failed to encode snapshot for job %s: %v", j.id, err)
		return
	}
	if err := r.opts.Store.Save(ctx, j.id, data); err != nil {
		r.logger.Error(ctx, "Failed to persist job %s: %v", j.id, err)
	}
}

func (r *Registry) load(ctx context.Context, id string) (record, error) {
	data, err := r.opts.Store.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return record{}, ErrJobNotFound
	}
	if err != nil {
		return record{}, fmt.Errorf("load job %s: %w", id, err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return record{}, fmt.Errorf("decode job %s: %w", id, err)
	}
	return rec, nil
}
