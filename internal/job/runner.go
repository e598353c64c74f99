package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/nguyentantai21042004/meeting-summary/internal/chunk"
	"github.com/nguyentantai21042004/meeting-summary/internal/logger"
	"github.com/nguyentantai21042004/meeting-summary/internal/stage"
)

var tracer = otel.Tracer("github.com/nguyentantai21042004/meeting-summary/internal/job")

// execute drives one job from Pending to a terminal state. It is the only
// writer of the job's events.
func (r *Registry) execute(j *Job) {
	defer r.wg.Done()

	ctx := logger.WithFields(context.Background(), map[string]interface{}{"job_id": j.id})
	ctx, span := tracer.Start(ctx, "job.execute", trace.WithAttributes(
		attribute.String("job.id", j.id),
		attribute.String("job.video", j.request.VideoPath),
		attribute.Int("job.context_length", j.request.ContextLength),
	))
	defer span.End()

	startTime := time.Now()
	result, files, err := r.runLimited(ctx, j)
	if err != nil {
		var se *StageError
		if !errors.As(err, &se) {
			se = stageError(ReasonSummarizationFailed, err)
		}
		j.append(textEvent(KindError, failureText(se)))
		j.finish(nil, se.Failure(), nil, time.Now())

		span.RecordError(err)
		span.SetStatus(codes.Error, string(se.Reason))
		r.logger.Error(ctx, "Job %s failed after %s: %v", j.id, time.Since(startTime), err)
	} else {
		j.finish(result, nil, files, time.Now())
		r.logger.Info(ctx, "Job %s completed in %s", j.id, time.Since(startTime))
	}

	r.persist(ctx, j)
	r.removeSource(ctx, j)
}

func (r *Registry) runLimited(ctx context.Context, j *Job) (*Result, map[string]string, error) {
	if err := r.limiter.acquire(ctx, j.cancelCh); err != nil {
		return nil, nil, cancelledError()
	}
	defer r.limiter.release()

	if j.cancelRequested() {
		return nil, nil, cancelledError()
	}
	j.setRunning()
	r.logger.Info(ctx, "Job %s running", j.id)

	return r.run(ctx, j)
}

func (r *Registry) run(ctx context.Context, j *Job) (*Result, map[string]string, error) {
	req := j.request

	// Step 1: extract audio
	if j.cancelRequested() {
		return nil, nil, cancelledError()
	}
	j.append(textEvent(KindStep, "Extracting audio..."))
	audioPath, err := r.extract(ctx, req.VideoPath, r.jobDir(j))
	if err != nil {
		return nil, nil, stageError(ReasonExtractionFailed, err)
	}
	j.append(textEvent(KindOK, fmt.Sprintf("Audio ready: %s", filepath.Base(audioPath))))

	// Step 2: transcribe
	if j.cancelRequested() {
		return nil, nil, cancelledError()
	}
	model := req.WhisperModel
	if model == "" {
		model = "default"
	}
	j.append(textEvent(KindStep, fmt.Sprintf("Transcribing with Whisper model %s...", model)))
	transcript, err := r.transcribe(ctx, audioPath, stage.TranscribeOptions{Model: req.WhisperModel, Language: req.Language})
	if err != nil {
		return nil, nil, stageError(ReasonTranscriptionFailed, err)
	}
	j.append(textEvent(KindOK, fmt.Sprintf("Transcription completed (%d characters)", utf8.RuneCountInString(transcript.Text))))

	// Step 3: summarize, chunked when the transcript exceeds the budget
	if j.cancelRequested() {
		return nil, nil, cancelledError()
	}
	summary, err := r.summarize(ctx, j, transcript.Text)
	if err != nil {
		return nil, nil, err
	}

	files := map[string]string{"audio": audioPath}
	if transcript.TextPath != "" {
		files["transcript"] = transcript.TextPath
	}
	if transcript.SRTPath != "" {
		files["srt"] = transcript.SRTPath
	}

	if r.opts.Exporter != nil {
		exported, err := r.opts.Exporter.Export(ctx, r.jobDir(j), fileStem(req.VideoPath), transcript.Text, summary)
		if err != nil {
			r.logger.Warn(ctx, "Failed to export artifacts for job %s: %v", j.id, err)
		}
		for name, path := range exported {
			files[name] = path
		}
	}

	downloads := make(map[string]string, len(files))
	for name := range files {
		downloads[name] = r.opts.DownloadURL(j.id, name)
	}

	return &Result{
		AudioID:    fileStem(audioPath),
		Transcript: transcript.Text,
		Summary:    summary,
		Downloads:  downloads,
	}, files, nil
}

// jobDir is where every file of one job is written. Videos sharing a base
// name never share artifacts.
func (r *Registry) jobDir(j *Job) string {
	return filepath.Join(r.opts.WorkDir, j.id)
}

func (r *Registry) extract(ctx context.Context, videoPath, dir string) (string, error) {
	ctx, span := tracer.Start(ctx, "stage.extract")
	defer span.End()

	audioPath, err := r.stages.Extractor.ExtractAudio(ctx, videoPath, dir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
	}
	return audioPath, err
}

func (r *Registry) transcribe(ctx context.Context, audioPath string, opts stage.TranscribeOptions) (stage.Transcript, error) {
	ctx, span := tracer.Start(ctx, "stage.transcribe")
	defer span.End()

	transcript, err := r.stages.Transcriber.Transcribe(ctx, audioPath, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transcription failed")
	}
	return transcript, err
}

// summarize runs the single call or the chunk sub-pipeline and returns the
// merged document
func (r *Registry) summarize(ctx context.Context, j *Job, text string) (string, error) {
	ctx, span := tracer.Start(ctx, "stage.summarize")
	defer span.End()

	req := j.request
	opts := stage.SummarizeOptions{Model: req.SummaryModel, ExtraPrompt: req.ExtraPrompt}
	model := req.SummaryModel
	if model == "" {
		model = "default model"
	}

	chunks := chunk.Plan(text, req.ContextLength)
	span.SetAttributes(attribute.Int("summary.chunks", len(chunks)))

	var summaries []chunk.Summary
	if len(chunks) <= 1 {
		j.append(textEvent(KindStep, fmt.Sprintf("Summarizing with %s...", model)))
		out, err := r.stages.Summarizer.Summarize(ctx, text, opts)
		if err != nil {
			span.RecordError(err)
			return "", stageError(ReasonSummarizationFailed, err)
		}
		summaries = []chunk.Summary{{Ordinal: 1, Text: out}}
	} else {
		j.append(textEvent(KindStep, fmt.Sprintf("Summarizing %d chunks with %s...", len(chunks), model)))
		j.append(textEvent(KindInfo, fmt.Sprintf("Transcript split into %d chunks of at most %d characters", len(chunks), req.ContextLength)))

		var err error
		summaries, err = r.summarizeChunks(ctx, j, text, chunks, opts)
		if err != nil {
			span.RecordError(err)
			return "", err
		}
	}

	merged, err := chunk.Merge(summaries)
	if err != nil {
		r.logger.Error(ctx, "Job %s produced an inconsistent chunk set: %v", j.id, err)
		return "", &StageError{Reason: ReasonSummarizationFailed, Message: "summary assembly failed", Err: err}
	}

	if len(chunks) <= 1 {
		j.append(textEvent(KindOK, fmt.Sprintf("Summary generated (%d characters)", utf8.RuneCountInString(merged))))
	} else {
		j.append(textEvent(KindOK, fmt.Sprintf("Summary generated from %d chunks (%d characters)", len(chunks), utf8.RuneCountInString(merged))))
	}
	return merged, nil
}

// summarizeChunks fans chunk summaries out to at most ChunkFanout concurrent
// calls. Progress events are appended here, in ordinal order, whatever the
// completion order.
func (r *Registry) summarizeChunks(ctx context.Context, j *Job, text string, chunks []chunk.Chunk, opts stage.SummarizeOptions) ([]chunk.Summary, error) {
	n := len(chunks)
	texts := chunk.Texts(text, chunks)

	completed := make(chan chunk.Summary, n)
	waitErr := make(chan error, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.ChunkFanout)

	go func() {
		for i, c := range chunks {
			if j.cancelRequested() || gctx.Err() != nil {
				break
			}
			i, c := i, c
			g.Go(func() error {
				// g.Go may have waited for a slot while a cancel arrived
				if j.cancelRequested() {
					return nil
				}
				out, err := r.stages.Summarizer.Summarize(gctx, texts[i], opts)
				if err != nil {
					return fmt.Errorf("chunk %d/%d: %w", c.Ordinal, n, err)
				}
				completed <- chunk.Summary{Ordinal: c.Ordinal, Text: out}
				return nil
			})
		}
		waitErr <- g.Wait()
		close(completed)
	}()

	pending := make(map[int]string, n)
	summaries := make([]chunk.Summary, 0, n)
	next := 1
	for s := range completed {
		pending[s.Ordinal] = s.Text
		for {
			out, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			summaries = append(summaries, chunk.Summary{Ordinal: next, Text: out})
			j.append(textEvent(KindInfo, fmt.Sprintf("Chunk %d/%d summarized", next, n)))
			next++
		}
	}

	if err := <-waitErr; err != nil {
		return nil, stageError(ReasonSummarizationFailed, err)
	}
	if len(summaries) < n && j.cancelRequested() {
		return nil, cancelledError()
	}
	return summaries, nil
}

func (r *Registry) removeSource(ctx context.Context, j *Job) {
	if !j.request.RemoveSource {
		return
	}
	if err := os.Remove(j.request.VideoPath); err != nil && !os.IsNotExist(err) {
		r.logger.Warn(ctx, "Failed to remove source %s: %v", j.request.VideoPath, err)
	}
}

func cancelledError() *StageError {
	return &StageError{Reason: ReasonCancelled, Message: "job cancelled by request", Err: errCancelled}
}

func failureText(se *StageError) string {
	switch se.Reason {
	case ReasonExtractionFailed:
		return "Audio extraction failed: " + se.Message
	case ReasonTranscriptionFailed:
		return "Transcription failed: " + se.Message
	case ReasonSummarizationFailed:
		return "Summarization failed: " + se.Message
	case ReasonCancelled:
		return "Cancelled: " + se.Message
	default:
		return se.Error()
	}
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
