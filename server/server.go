// Package server exposes the job store over JSON HTTP endpoints and pushes
// store changes to WebSocket clients.
package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/teranos/jobtrail/am"
	"github.com/teranos/jobtrail/capture"
	"github.com/teranos/jobtrail/errors"
	"github.com/teranos/jobtrail/jobs"
	"github.com/teranos/jobtrail/logger"
	"github.com/teranos/jobtrail/source"
	"github.com/teranos/jobtrail/stats"
)

// MaxClients bounds concurrent WebSocket connections
const MaxClients = 64

const defaultMaxUploadBytes = 5 << 20

// Capturer runs the capture pipeline for one input
type Capturer interface {
	Capture(ctx context.Context, in source.Input) (*capture.Result, error)
}

// JobServer serves the job store over HTTP
type JobServer struct {
	store          *jobs.Store
	capturer       Capturer
	captures       singleflight.Group
	stats          *stats.Aggregator
	limiter        *rate.Limiter
	bindAddress    string
	maxUploadBytes int64
	allowedOrigins []string
	logger         *zap.SugaredLogger
	mux            *http.ServeMux

	clients map[*Client]bool
	mu      sync.RWMutex

	httpServer *http.Server

	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	broadcastDrops atomic.Int64
	requestSeq     atomic.Int64
}

// NewJobServer creates a server over store and starts watching it for changes.
// Stop releases the watch and closes client connections.
func NewJobServer(store *jobs.Store, capturer Capturer, cfg am.ServerConfig) (*JobServer, error) {
	ctx, cancel := context.WithCancel(context.Background())

	s := &JobServer{
		store:          store,
		capturer:       capturer,
		stats:          stats.NewAggregator(store),
		limiter:        newCaptureLimiter(cfg.CapturesPerMinute),
		bindAddress:    cfg.BindAddress,
		maxUploadBytes: cfg.MaxUploadBytes,
		allowedOrigins: cfg.AllowedOrigins,
		logger:         logger.ComponentLogger("server"),
		mux:            http.NewServeMux(),
		clients:        make(map[*Client]bool),
		ctx:            ctx,
		cancel:         cancel,
	}
	if s.bindAddress == "" {
		s.bindAddress = am.DefaultBindAddress
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = defaultMaxUploadBytes
	}
	s.setupHTTPRoutes()

	if err := store.Watch(ctx, s.handleStoreChanged); err != nil {
		cancel()
		return nil, errors.Wrap(err, "failed to watch job store")
	}
	return s, nil
}

// Handler returns the routed HTTP handler
func (s *JobServer) Handler() http.Handler {
	return s.mux
}

// newCaptureLimiter allows perMinute captures a minute; zero or less means unlimited
func newCaptureLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
}
