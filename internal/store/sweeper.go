package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultSweepInterval is how often expired sessions are reclaimed.
const DefaultSweepInterval = time.Hour

// Sweepable is a store whose expired entries can be reclaimed.
type Sweepable interface {
	Sweep(now time.Time) int
	Len() int
}

// SweeperConfig configures a Sweeper.
type SweeperConfig struct {
	// Interval between sweeps. Defaults to DefaultSweepInterval if zero or negative.
	Interval time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Clock defaults to time.Now.
	Clock func() time.Time

	// Registerer, when set, receives the sweeper's metrics.
	Registerer prometheus.Registerer
}

// Sweeper periodically removes expired sessions in the background.
// A late or skipped cycle only delays reclamation; expiry itself is never
// decided by the sweeper.
type Sweeper struct {
	store    Sweepable
	interval time.Duration
	logger   *slog.Logger
	clock    func() time.Time

	swept prometheus.Counter

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper for store. Call Start to begin sweeping.
func NewSweeper(store Sweepable, cfg SweeperConfig) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	sw := &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger.With("component", "session_sweeper"),
		clock:    clock,
	}

	if cfg.Registerer != nil {
		sw.swept = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authcore_sessions_swept_total",
			Help: "Total number of expired sessions removed by the sweeper",
		})
		active := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "authcore_sessions_active",
			Help: "Number of sessions currently held, including expired ones not yet swept",
		}, func() float64 { return float64(store.Len()) })
		cfg.Registerer.MustRegister(sw.swept, active)
	}

	return sw
}

// Interval returns the configured sweep interval.
func (w *Sweeper) Interval() time.Duration {
	return w.interval
}

// RunOnce executes a single sweep and returns the number of removed sessions.
func (w *Sweeper) RunOnce(ctx context.Context) int {
	removed := w.store.Sweep(w.clock())
	remaining := w.store.Len()

	if w.swept != nil {
		w.swept.Add(float64(removed))
	}
	if removed > 0 {
		w.logger.InfoContext(ctx, "swept expired sessions", "removed", removed, "remaining", remaining)
	}
	return removed
}

// Start begins periodic sweeping. It returns an error if already started.
func (w *Sweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return errors.New("session sweeper already started")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.run(ctx)
	return nil
}

// Stop stops the sweeper and waits for the background goroutine to exit.
// A stopped sweeper can be started again.
func (w *Sweeper) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
	w.cancel = nil
}

func (w *Sweeper) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "session sweeper started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(context.WithoutCancel(ctx), "session sweeper stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}
