package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nguyentantai21042004/meeting-summary/internal/gateway"
	"github.com/nguyentantai21042004/meeting-summary/internal/watcher"
)

func newServeCommand(configFile *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and, if enabled, watch the drop folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configFile)
			if err != nil {
				return err
			}
			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			srv := gateway.New(a.registry, gateway.Options{
				Addr:      a.cfg.Server.Addr,
				Mode:      a.cfg.Server.Mode,
				UploadDir: a.cfg.Paths.Uploads,
			}, a.logger)

			errChan := make(chan error, 2)
			go func() {
				errChan <- srv.Run(ctx)
			}()

			if a.cfg.Watch.Enabled {
				w, err := watcher.New(a.cfg.Watch.Dir, func(ctx context.Context, path string) error {
					id, err := a.registry.Start(ctx, a.request(path))
					if err != nil {
						return err
					}
					a.logger.Info(ctx, "Started job %s for %s", id, path)
					return nil
				}, a.logger, 0)
				if err != nil {
					stop()
					a.shutdown(context.Background())
					return err
				}
				defer w.Stop()

				go func() {
					if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
						errChan <- err
					}
				}()
			}

			a.logger.Info(ctx, "Meeting summary service is ready! Press Ctrl+C to stop")

			// Wait for shutdown signal or error
			var runErr error
			select {
			case <-ctx.Done():
				a.logger.Info(ctx, "Shutdown signal received")
			case runErr = <-errChan:
				a.logger.Error(ctx, "Service error: %v", runErr)
			}

			// Graceful shutdown
			a.logger.Info(ctx, "Shutting down gracefully...")
			stop()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			a.shutdown(shutdownCtx)

			a.logger.Info(shutdownCtx, "Meeting summary service stopped")
			return runErr
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}
