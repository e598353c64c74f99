package export

import "context"

// Artifact names produced by the exporter
const (
	SummaryMarkdown = "summary_md"
	SummaryDocx     = "summary_docx"
	TranscriptDocx  = "transcript_docx"
)

// Exporter writes the finished summary and transcript as downloadable files
type Exporter interface {
	// Export writes into dir and returns artifact name -> file path for every file written
	Export(ctx context.Context, dir, name, transcript, summary string) (map[string]string, error)
}
