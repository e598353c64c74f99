package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nguyentantai21042004/meeting-summary/internal/logger"
)

type implServer struct {
	registry Registry
	opts     Options
	logger   logger.Logger
	engine   *gin.Engine
}

func (s *implServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.MaxMultipartMemory = 32 << 20

	r.GET("/healthz", s.healthz)

	api := r.Group("/api")
	{
		api.POST("/pipeline", s.runSync)
		api.POST("/summarize", s.summarize)

		pipeline := api.Group("/pipeline")
		pipeline.POST("/start", s.start)
		pipeline.GET("/events/:id", s.events)
		pipeline.GET("/result/:id", s.result)
		pipeline.POST("/cancel/:id", s.cancel)
		pipeline.GET("/jobs", s.list)

		api.GET("/download/:id/:artifact", s.download)
	}
	return r
}

func (s *implServer) Handler() http.Handler {
	return s.engine
}

func (s *implServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "HTTP server listening on %s", s.opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info(ctx, "Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *implServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug(c.Request.Context(), "%s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
