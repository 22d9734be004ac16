package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/berfenger/solaxcloud2mqtt/internal/core/domain"
	"github.com/berfenger/solaxcloud2mqtt/internal/core/port"
	"github.com/berfenger/solaxcloud2mqtt/pkg/solax_cloud"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// SolaX Cloud allows 10 requests per minute across all devices of
	// a token
	DEFAULT_REFRESH_INTERVAL = 5 * time.Minute
	DEFAULT_FETCH_TIMEOUT    = 10 * time.Second

	fetchFlightKey = "fetch"
)

type SharedPollerConfig struct {
	Interval     time.Duration
	FetchTimeout time.Duration
}

func DefaultSharedPollerConfig() SharedPollerConfig {
	return SharedPollerConfig{
		Interval:     DEFAULT_REFRESH_INTERVAL,
		FetchTimeout: DEFAULT_FETCH_TIMEOUT,
	}
}

// SharedPoller caches the latest snapshot of one device and refreshes it on
// demand, at most once per interval. Concurrent callers share a single in
// flight fetch.
type SharedPoller struct {
	device  domain.SolaxDevice
	fetcher solax_cloud.Fetcher
	cfg     SharedPollerConfig
	now     func() time.Time
	logger  *zap.Logger

	flight singleflight.Group

	mu            sync.RWMutex
	snapshot      solax_cloud.Snapshot
	lastSuccessAt *time.Time
	lastError     error
}

type SharedPollerOption func(*SharedPoller)

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) SharedPollerOption {
	return func(p *SharedPoller) {
		p.now = now
	}
}

func NewSharedPoller(device domain.SolaxDevice, fetcher solax_cloud.Fetcher, cfg SharedPollerConfig, logger *zap.Logger, opts ...SharedPollerOption) *SharedPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = DEFAULT_REFRESH_INTERVAL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DEFAULT_FETCH_TIMEOUT
	}
	p := &SharedPoller{
		device:  device,
		fetcher: fetcher,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger.With(zap.String("device", device.Id)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *SharedPoller) Device() domain.SolaxDevice {
	return p.device
}

func (p *SharedPoller) Read(ctx context.Context, key string) float64 {
	p.EnsureFresh(ctx)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.snapshot.Value(key); ok {
		return v
	}
	return math.NaN()
}

// EnsureFresh fetches a new snapshot when there is none or when the last
// successful one is older than the interval. A caller whose ctx ends stops
// waiting, the fetch itself keeps running until its own timeout.
func (p *SharedPoller) EnsureFresh(ctx context.Context) {
	if p.State() == domain.PollStateFresh {
		return
	}
	fetchCtx := context.WithoutCancel(ctx)
	ch := p.flight.DoChan(fetchFlightKey, func() (any, error) {
		// a flight that completed while we were checking already refreshed
		if p.State() == domain.PollStateFresh {
			return nil, nil
		}
		p.refresh(fetchCtx)
		return nil, nil
	})
	select {
	case <-ch:
	case <-ctx.Done():
		p.logger.Debug("poller@ensureFresh stopped waiting", zap.Error(ctx.Err()))
	}
}

func (p *SharedPoller) refresh(ctx context.Context) {
	fetchId := uuid.NewString()
	logger := p.logger.With(zap.String("fetch_id", fetchId))

	ctx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	logger.Debug("poller@refresh fetching")
	start := time.Now()
	snapshot, err := p.fetcher.Fetch(ctx, p.device.Credentials)
	duration := time.Since(start)
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		// any failure empties the cache, readers get NaN until the next success
		p.snapshot = solax_cloud.Snapshot{}
		p.lastSuccessAt = nil
		p.lastError = err
		logger.Error("poller@refresh fetch failed",
			zap.String("kind", errorKind(err)),
			zap.Duration("duration", duration),
			zap.Error(err))
		return
	}

	p.snapshot = snapshot
	p.lastSuccessAt = &now
	p.lastError = nil
	logger.Info("poller@refresh retrieved new data from solax cloud",
		zap.String("name", p.device.Name),
		zap.Int("fields", snapshot.Len()),
		zap.Duration("duration", duration))
}

func (p *SharedPoller) Snapshot() solax_cloud.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

func (p *SharedPoller) State() domain.PollState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stateLocked()
}

func (p *SharedPoller) stateLocked() domain.PollState {
	if p.snapshot.IsEmpty() || p.lastSuccessAt == nil {
		return domain.PollStateEmpty
	}
	if p.now().Sub(*p.lastSuccessAt) >= p.cfg.Interval {
		return domain.PollStateStale
	}
	return domain.PollStateFresh
}

func (p *SharedPoller) LastSuccessAt() *time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSuccessAtLocked()
}

func (p *SharedPoller) lastSuccessAtLocked() *time.Time {
	if p.lastSuccessAt == nil {
		return nil
	}
	t := *p.lastSuccessAt
	return &t
}

// LastError is the diagnostic of the last failed fetch, nil after a success.
func (p *SharedPoller) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastError
}

// View captures the snapshot with its state and diagnostics under one lock,
// a concurrent refresh lands either fully before or fully after it.
func (p *SharedPoller) View() port.PollerView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return port.PollerView{
		Snapshot:      p.snapshot,
		State:         p.stateLocked(),
		LastSuccessAt: p.lastSuccessAtLocked(),
		LastError:     p.lastError,
	}
}

func errorKind(err error) string {
	var upErr *solax_cloud.UpstreamError
	var trErr *solax_cloud.TransportError
	switch {
	case errors.As(err, &upErr):
		return "upstream"
	case errors.As(err, &trErr):
		return "transport"
	default:
		return "unknown"
	}
}

// ensure interface compliance
var _ port.TelemetryPoller = (*SharedPoller)(nil)
