package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Export writes <name>.summary.md, <name>.summary.docx and <name>.transcript.docx
// into dir. A docx failure is logged and skipped; the markdown file is required.
func (e *implExporter) Export(ctx context.Context, dir, name, transcript, summary string) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	files := make(map[string]string, 3)

	mdPath := filepath.Join(dir, name+".summary.md")
	if err := os.WriteFile(mdPath, []byte(summary), 0644); err != nil {
		return nil, fmt.Errorf("write summary markdown: %w", err)
	}
	files[SummaryMarkdown] = mdPath

	summaryDocx := filepath.Join(dir, name+".summary.docx")
	if err := markdownToDocx(name, summary, summaryDocx); err != nil {
		e.logger.Warn(ctx, "Failed to write %s: %v", summaryDocx, err)
	} else {
		files[SummaryDocx] = summaryDocx
	}

	transcriptDocx := filepath.Join(dir, name+".transcript.docx")
	if err := transcriptToDocx(name, transcript, transcriptDocx); err != nil {
		e.logger.Warn(ctx, "Failed to write %s: %v", transcriptDocx, err)
	} else {
		files[TranscriptDocx] = transcriptDocx
	}

	e.logger.Debug(ctx, "Exported %d artifacts for %s", len(files), name)
	return files, nil
}
