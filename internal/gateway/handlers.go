package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nguyentantai21042004/meeting-summary/internal/job"
	"github.com/nguyentantai21042004/meeting-summary/internal/stage"
)

type errorResponse struct {
	Error string `json:"error"`
}

type startResponse struct {
	JobID string `json:"job_id"`
}

func (s *implServer) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// start accepts either a JSON request naming a server-side video or a
// multipart upload in the "video" field
func (s *implServer) start(c *gin.Context) {
	id, ok := s.startJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusAccepted, startResponse{JobID: id})
}

// runSync starts a job like start, then holds the request until the job is
// terminal. A client that disconnects cancels the job.
func (s *implServer) runSync(c *gin.Context) {
	id, ok := s.startJob(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	snap, err := s.registry.Wait(ctx, id)
	if err != nil {
		if cerr := s.registry.Cancel(id); cerr == nil {
			s.logger.Info(ctx, "Client left, cancelling job %s", id)
		}
		return
	}

	status := http.StatusOK
	if snap.Status == job.StatusFailed {
		status = http.StatusBadGateway
	}
	c.JSON(status, snap)
}

// startJob parses the request, registers the job and reports whether it did.
// On failure the error response is already written.
func (s *implServer) startJob(c *gin.Context) (string, bool) {
	var (
		req job.Request
		err error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req, err = s.saveUpload(c)
	} else {
		err = c.ShouldBindJSON(&req)
		if err != nil {
			err = fmt.Errorf("%w: %v", job.ErrInvalidRequest, err)
		}
	}
	if err != nil {
		s.writeError(c, err)
		return "", false
	}

	id, err := s.registry.Start(c.Request.Context(), req)
	if err != nil {
		if req.RemoveSource {
			os.Remove(req.VideoPath)
		}
		s.writeError(c, err)
		return "", false
	}
	return id, true
}

// summarize turns a supplied transcript into a summary without creating a job
func (s *implServer) summarize(c *gin.Context) {
	var req job.SummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, fmt.Errorf("%w: %v", job.ErrInvalidRequest, err))
		return
	}

	summary, err := s.registry.Summarize(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

func (s *implServer) saveUpload(c *gin.Context) (job.Request, error) {
	file, err := c.FormFile("video")
	if err != nil {
		return job.Request{}, fmt.Errorf("%w: missing video file", job.ErrInvalidRequest)
	}
	if !stage.IsVideoFile(file.Filename) {
		return job.Request{}, fmt.Errorf("%w: unsupported video type %q", job.ErrInvalidRequest, filepath.Ext(file.Filename))
	}

	contextLength := 0
	if raw := strings.TrimSpace(c.PostForm("context_length")); raw != "" {
		contextLength, err = strconv.Atoi(raw)
		if err != nil {
			return job.Request{}, fmt.Errorf("%w: context_length must be an integer", job.ErrInvalidRequest)
		}
	}

	if err := os.MkdirAll(s.opts.UploadDir, 0755); err != nil {
		return job.Request{}, fmt.Errorf("create upload dir: %w", err)
	}
	dst := filepath.Join(s.opts.UploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(file.Filename)))
	if err := c.SaveUploadedFile(file, dst); err != nil {
		return job.Request{}, fmt.Errorf("save upload: %w", err)
	}
	s.logger.Info(c.Request.Context(), "Saved upload %s as %s", file.Filename, dst)

	return job.Request{
		VideoPath:     dst,
		WhisperModel:  c.PostForm("whisper_model"),
		Language:      c.PostForm("language"),
		SummaryModel:  c.PostForm("ollama_model"),
		ContextLength: contextLength,
		ExtraPrompt:   c.PostForm("extra_prompt"),
		RemoveSource:  true,
	}, nil
}

// events streams the job log as SSE. Each frame carries the event seq as its
// id so a client reconnecting with Last-Event-ID only receives newer events.
func (s *implServer) events(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	var lastSeen int64
	if raw := c.GetHeader("Last-Event-ID"); raw != "" {
		lastSeen, _ = strconv.ParseInt(raw, 10, 64)
	}

	ch, err := s.registry.Subscribe(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	s.logger.Info(ctx, "Event stream opened for job %s", id)
	keepAlive := time.NewTicker(s.opts.KeepAlive)
	defer keepAlive.Stop()

	gone := c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			if ev.Seq() <= lastSeen {
				return true
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error(ctx, "Failed to encode event %d of job %s: %v", ev.Seq(), id, err)
				return false
			}
			fmt.Fprintf(w, "id: %d\ndata: %s\n\n", ev.Seq(), data)
			return ev.Kind() != job.KindDone
		case <-keepAlive.C:
			io.WriteString(w, ": keep-alive\n\n")
			return true
		}
	})
	s.logger.Info(ctx, "Event stream closed for job %s (client gone: %v)", id, gone)
}

func (s *implServer) result(c *gin.Context) {
	snap, err := s.registry.Poll(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	status := http.StatusOK
	if snap.Status == job.StatusFailed {
		status = http.StatusBadGateway
	}
	c.JSON(status, snap)
}

func (s *implServer) cancel(c *gin.Context) {
	id := c.Param("id")
	if err := s.registry.Cancel(id); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": id, "cancelling": true})
}

func (s *implServer) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.registry.List()})
}

func (s *implServer) download(c *gin.Context) {
	path, err := s.registry.Artifact(c.Request.Context(), c.Param("id"), c.Param("artifact"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if _, err := os.Stat(path); err != nil {
		s.writeError(c, job.ErrArtifactNotFound)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

func (s *implServer) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, job.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, job.ErrJobNotFound), errors.Is(err, job.ErrArtifactNotFound):
		status = http.StatusNotFound
	case errors.Is(err, job.ErrJobFinished):
		status = http.StatusConflict
	case errors.Is(err, job.ErrShutdown):
		status = http.StatusServiceUnavailable
	case errors.As(err, new(*job.StageError)):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}
