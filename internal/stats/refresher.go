// Package stats polls the remote aggregate progress endpoint. It is a pure
// read-side consumer: the pipeline syncs after every state-changing outcome
// and on provider change, the API serves throttled reads.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/opslatam/pistoleado/internal/log"
	"github.com/opslatam/pistoleado/internal/metrics"
	"github.com/opslatam/pistoleado/internal/shipment"
)

// ProgressReader is the read side of the remote protocol.
type ProgressReader interface {
	Progress(ctx context.Context, providerID string, date time.Time) (*shipment.Progress, error)
}

// Snapshot is one observed progress state. It carries no interpretation;
// completion transitions are detected by the pipeline comparing successive
// snapshots.
type Snapshot struct {
	Provider    string         `json:"provider"`
	Scanned     int            `json:"scanned"`
	Total       int            `json:"total"`
	ByContainer map[string]int `json:"by_container,omitempty"`
}

// Complete reports whether every expected shipment has been scanned. An
// empty batch (total zero) is never complete.
func (s *Snapshot) Complete() bool {
	return s != nil && s.Total > 0 && s.Scanned == s.Total
}

// Refresher polls progress and caches the latest snapshot.
type Refresher struct {
	reader  ProgressReader
	limiter *rate.Limiter
	now     func() time.Time
	logger  zerolog.Logger

	mu   sync.Mutex
	last *Snapshot
}

// NewRefresher creates a Refresher. Read-side polls are throttled to one per
// second with a small burst so the station UI cannot hammer the endpoint.
func NewRefresher(reader ProgressReader) *Refresher {
	return &Refresher{
		reader:  reader,
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
		now:     time.Now,
		logger:  log.WithComponent("stats"),
	}
}

// WithLimit replaces the poll throttle. Mainly for tests.
func (r *Refresher) WithLimit(l *rate.Limiter) *Refresher {
	r.limiter = l
	return r
}

// Refresh polls progress for provider, serving the cached snapshot when
// throttled. For reads only: mutation-driven updates must use Sync, which
// never serves stale data.
func (r *Refresher) Refresh(ctx context.Context, provider string) (*Snapshot, error) {
	if provider == "" {
		return nil, nil
	}
	if !r.limiter.Allow() {
		r.mu.Lock()
		cached := r.last
		r.mu.Unlock()
		if cached != nil && cached.Provider == provider {
			out := *cached
			return &out, nil
		}
		return nil, nil
	}
	return r.poll(ctx, provider)
}

// Sync polls progress for provider unconditionally. The pipeline calls this
// after every mutation: the poll following the final scan of a batch must
// observe the real count, a cached value would lose the completion.
func (r *Refresher) Sync(ctx context.Context, provider string) (*Snapshot, error) {
	if provider == "" {
		return nil, nil
	}
	return r.poll(ctx, provider)
}

func (r *Refresher) poll(ctx context.Context, provider string) (*Snapshot, error) {
	p, err := r.reader.Progress(ctx, provider, r.now())
	if err != nil {
		metrics.StatsRefreshFailures.Inc()
		r.logger.Warn().Err(err).Str(log.FieldProvider, provider).Msg("progress refresh failed")
		return nil, err
	}

	snap := &Snapshot{
		Provider:    provider,
		Scanned:     p.Scanned,
		Total:       p.Total,
		ByContainer: p.ByContainer,
	}

	r.mu.Lock()
	r.last = snap
	r.mu.Unlock()
	return snap, nil
}

// Last returns the most recent snapshot, if any.
func (r *Refresher) Last() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return nil
	}
	out := *r.last
	return &out
}
