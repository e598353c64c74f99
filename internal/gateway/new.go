package gateway

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nguyentantai21042004/meeting-summary/internal/logger"
)

// Options configures the HTTP server
type Options struct {
	Addr string
	// Mode is a gin mode: debug, release or test
	Mode string
	// UploadDir receives multipart video uploads
	UploadDir string
	// KeepAlive is the interval of SSE comment frames on idle streams
	KeepAlive time.Duration
}

// New creates a Server backed by reg
func New(reg Registry, opts Options, log logger.Logger) Server {
	if opts.Addr == "" {
		opts.Addr = ":8000"
	}
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 15 * time.Second
	}

	s := &implServer{
		registry: reg,
		opts:     opts,
		logger:   log,
	}
	s.engine = s.routes()
	return s
}
