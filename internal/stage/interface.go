// Package stage holds the external tools a meeting job is built from:
// audio extraction, speech-to-text and LLM summarization.
package stage

import "context"

// Extractor pulls the audio track out of a video file into outputDir and
// returns the audio path
type Extractor interface {
	ExtractAudio(ctx context.Context, videoPath, outputDir string) (string, error)
}

// TranscribeOptions selects the whisper model and language hint for one call
type TranscribeOptions struct {
	Model    string
	Language string
}

// Transcript is the text produced by a Transcriber plus the files it wrote
type Transcript struct {
	Text     string
	TextPath string
	SRTPath  string
}

// Transcriber converts an audio file to text
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOptions) (Transcript, error)
}

// SummarizeOptions selects the LLM and any instructions appended to the prompt
type SummarizeOptions struct {
	Model       string
	ExtraPrompt string
}

// Summarizer turns transcript text into a Markdown summary
type Summarizer interface {
	Summarize(ctx context.Context, text string, opts SummarizeOptions) (string, error)
}
