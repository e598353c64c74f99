package job

import "time"

// Status is a job's lifecycle state. Done and Failed are terminal.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further transition can leave s
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Request is the immutable input of one job
type Request struct {
	VideoPath     string `json:"video"`
	WhisperModel  string `json:"whisper_model,omitempty"`
	Language      string `json:"language,omitempty"`
	SummaryModel  string `json:"ollama_model,omitempty"`
	ContextLength int    `json:"context_length"`
	ExtraPrompt   string `json:"extra_prompt,omitempty"`

	// RemoveSource deletes VideoPath once the job terminates (uploaded files)
	RemoveSource bool `json:"-"`
}

// SummaryRequest asks for a summary of a transcript that already exists
type SummaryRequest struct {
	Transcript    string `json:"transcript"`
	SummaryModel  string `json:"ollama_model,omitempty"`
	ContextLength int    `json:"context_length"`
	ExtraPrompt   string `json:"extra_prompt,omitempty"`
}

// Result is the outcome of a job that reached Done
type Result struct {
	AudioID    string            `json:"audio_id"`
	Transcript string            `json:"transcript"`
	Summary    string            `json:"summary"`
	Downloads  map[string]string `json:"downloads,omitempty"`
}

// Reason classifies why a job failed
type Reason string

const (
	ReasonExtractionFailed    Reason = "ExtractionFailed"
	ReasonTranscriptionFailed Reason = "TranscriptionFailed"
	ReasonSummarizationFailed Reason = "SummarizationFailed"
	ReasonCancelled           Reason = "Cancelled"
)

// Failure is the outcome of a job that reached Failed
type Failure struct {
	Stage   Reason `json:"stage"`
	Message string `json:"message"`
}

// Snapshot is a point-in-time, read-only view of a job
type Snapshot struct {
	ID         string     `json:"id"`
	Status     Status     `json:"status"`
	Request    Request    `json:"request"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Events     int        `json:"events"`
	Result     *Result    `json:"result,omitempty"`
	Error      *Failure   `json:"error,omitempty"`
}
