package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nguyentantai21042004/meeting-summary/internal/job"
)

func newRunCommand(configFile *string) *cobra.Command {
	var (
		contextLength int
		whisperModel  string
		summaryModel  string
		language      string
		extraPrompt   string
		jsonOutput    bool
	)

	cmd := &cobra.Command{
		Use:   "run <video>",
		Short: "Summarize one recording and print its progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configFile)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				a.shutdown(shutdownCtx)
			}()

			req := a.request(args[0])
			flags := cmd.Flags()
			if flags.Changed("context-length") {
				req.ContextLength = contextLength
			}
			if whisperModel != "" {
				req.WhisperModel = whisperModel
			}
			if summaryModel != "" {
				req.SummaryModel = summaryModel
			}
			if language != "" {
				req.Language = language
			}
			if extraPrompt != "" {
				req.ExtraPrompt = extraPrompt
			}

			id, err := a.registry.Start(ctx, req)
			if err != nil {
				return err
			}

			// Events keep flowing after an interrupt until the job observes the cancel
			events, err := a.registry.Subscribe(context.Background(), id)
			if err != nil {
				return err
			}
			go func() {
				<-ctx.Done()
				if err := a.registry.Cancel(id); err == nil {
					a.logger.Info(context.Background(), "Cancelling job %s after the current stage", id)
				}
			}()

			var last job.Event
			for ev := range events {
				if err := printEvent(cmd.OutOrStdout(), ev, jsonOutput); err != nil {
					return err
				}
				last = ev
			}

			if f := last.Failure(); f != nil {
				return fmt.Errorf("job %s failed: %s: %s", id, f.Stage, f.Message)
			}
			if !jsonOutput {
				printArtifacts(context.Background(), cmd.OutOrStdout(), a, id, last.Result())
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&contextLength, "context-length", 0, "max characters per summarize call, 0 disables chunking")
	flags.StringVar(&whisperModel, "whisper-model", "", "whisper model name or path")
	flags.StringVar(&summaryModel, "model", "", "summary model")
	flags.StringVar(&language, "language", "", "transcription language hint, auto to detect")
	flags.StringVar(&extraPrompt, "extra-prompt", "", "extra instructions for the summary")
	flags.BoolVar(&jsonOutput, "json", false, "print events as JSON lines")
	return cmd
}

func printEvent(w io.Writer, ev job.Event, asJSON bool) error {
	if asJSON {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	switch ev.Kind() {
	case job.KindDone:
		if f := ev.Failure(); f != nil {
			_, err := fmt.Fprintf(w, "[done] failed (%s): %s\n", f.Stage, f.Message)
			return err
		}
		_, err := fmt.Fprintf(w, "[done] summary:\n\n%s\n\n", ev.Result().Summary)
		return err
	default:
		_, err := fmt.Fprintf(w, "[%s] %s\n", ev.Kind(), ev.Text())
		return err
	}
}

func printArtifacts(ctx context.Context, w io.Writer, a *app, id string, result *job.Result) {
	if result == nil {
		return
	}
	names := make([]string, 0, len(result.Downloads))
	for name := range result.Downloads {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path, err := a.registry.Artifact(ctx, id, name)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "  %s: %s\n", name, path)
	}
}
