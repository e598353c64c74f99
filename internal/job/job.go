package job

import (
	"sync"
	"sync/atomic"
	"time"
)

// Job is one orchestrated run. Only the goroutine executing the job appends
// events or changes status; mu guards reads against that single writer.
type Job struct {
	id        string
	request   Request
	createdAt time.Time

	mu         sync.Mutex
	status     Status
	events     []Event
	result     *Result
	failure    *Failure
	files      map[string]string
	finishedAt time.Time
	changed    chan struct{}

	cancelled  atomic.Bool
	cancelOnce sync.Once
	cancelCh   chan struct{}
}

func newJob(id string, req Request, now time.Time) *Job {
	return &Job{
		id:        id,
		request:   req,
		createdAt: now,
		status:    StatusPending,
		changed:   make(chan struct{}),
		cancelCh:  make(chan struct{}),
	}
}

func (j *Job) ID() string { return j.id }

// append records an event and wakes every waiter
func (j *Job) append(ev Event) Event {
	j.mu.Lock()
	defer j.mu.Unlock()

	ev.seq = int64(len(j.events) + 1)
	j.events = append(j.events, ev)
	j.notifyLocked()
	return ev
}

func (j *Job) notifyLocked() {
	close(j.changed)
	j.changed = make(chan struct{})
}

func (j *Job) setRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusRunning
	j.notifyLocked()
}

// finish moves the job to its terminal state and appends the done event.
// It is a no-op once the job is terminal.
func (j *Job) finish(result *Result, failure *Failure, files map[string]string, now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.Terminal() {
		return false
	}

	if failure != nil {
		j.status = StatusFailed
		j.failure = failure
	} else {
		j.status = StatusDone
		j.result = result
		j.files = files
	}
	j.finishedAt = now

	ev := doneEvent(j.result, j.failure)
	ev.seq = int64(len(j.events) + 1)
	j.events = append(j.events, ev)
	j.notifyLocked()
	return true
}

// since returns events after the first n and a channel closed on the next change
func (j *Job) since(n int) ([]Event, <-chan struct{}) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []Event
	if n < len(j.events) {
		out = append(out, j.events[n:]...)
	}
	return out, j.changed
}

// Events returns a copy of the log recorded so far
func (j *Job) Events() []Event {
	evs, _ := j.since(0)
	return evs
}

func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	snap := Snapshot{
		ID:        j.id,
		Status:    j.status,
		Request:   j.request,
		CreatedAt: j.createdAt,
		Events:    len(j.events),
		Result:    j.result,
		Error:     j.failure,
	}
	if !j.finishedAt.IsZero() {
		at := j.finishedAt
		snap.FinishedAt = &at
	}
	return snap
}

func (j *Job) artifact(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	path, ok := j.files[name]
	return path, ok
}

func (j *Job) terminalSince() (time.Time, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.finishedAt, j.status.Terminal()
}

func (j *Job) requestCancel() {
	j.cancelOnce.Do(func() {
		j.cancelled.Store(true)
		close(j.cancelCh)
	})
}

func (j *Job) cancelRequested() bool {
	return j.cancelled.Load()
}
