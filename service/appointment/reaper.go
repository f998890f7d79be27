package appointment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	ExpiredReason   = "Missed/Expired"
	reaperLeaseKey  = "scheduling:reaper"
	DefaultInterval = 5 * time.Minute
	DefaultGrace    = 15 * time.Minute
)

var ErrReaperRunning = errors.New("reaper already running")

type ReaperConfig struct {
	Interval time.Duration
	Grace    time.Duration
	Reason   string
}

// Reaper cancels pending and confirmed appointments once their start time
// plus the grace window has passed.
type Reaper struct {
	store         Store
	notifier      Notifier
	lease         Lease
	cfg           ReaperConfig
	log           zerolog.Logger
	now           func() time.Time
	notifyTimeout time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

type ReaperOption func(*Reaper)

func WithReaperNotifier(n Notifier) ReaperOption {
	return func(r *Reaper) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithReaperLease makes each pass conditional on holding the lease, so only
// one replica sweeps per interval.
func WithReaperLease(l Lease) ReaperOption {
	return func(r *Reaper) { r.lease = l }
}

func WithReaperLogger(l zerolog.Logger) ReaperOption {
	return func(r *Reaper) { r.log = l.With().Str("component", "reaper").Logger() }
}

func WithReaperClock(now func() time.Time) ReaperOption {
	return func(r *Reaper) { r.now = now }
}

func NewReaper(store Store, cfg ReaperConfig, opts ...ReaperOption) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Grace < 0 {
		cfg.Grace = DefaultGrace
	}
	if cfg.Reason == "" {
		cfg.Reason = ExpiredReason
	}
	r := &Reaper{
		store:         store,
		notifier:      nopNotifier{},
		cfg:           cfg,
		log:           zerolog.Nop(),
		now:           time.Now,
		notifyTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start runs a pass immediately and then every interval until Stop is called
// or ctx is done.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrReaperRunning
	}
	r.running = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	go r.loop(ctx, r.stop, r.done)
	r.log.Info().Dur("interval", r.cfg.Interval).Dur("grace", r.cfg.Grace).Msg("reaper started")
	return nil
}

func (r *Reaper) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.pass(ctx)
	for {
		select {
		case <-ticker.C:
			r.pass(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reaper) pass(ctx context.Context) {
	if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
		r.log.Error().Err(err).Msg("reaper pass failed")
		sentry.CaptureException(err)
	}
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stop)
	done := r.done
	r.mu.Unlock()

	<-done
	r.log.Info().Msg("reaper stopped")
}

// RunOnce performs a single sweep and returns how many appointments it cancelled.
func (r *Reaper) RunOnce(ctx context.Context) (int, error) {
	runLog := r.log.With().Str("run_id", uuid.NewString()).Logger()

	if r.lease != nil {
		ttl := r.cfg.Interval * 9 / 10
		ok, err := r.lease.Acquire(ctx, reaperLeaseKey, ttl)
		switch {
		case err != nil:
			// The sweep is safe to run twice, so a lease outage is not fatal.
			runLog.Warn().Err(err).Msg("reaper lease unavailable, sweeping anyway")
		case !ok:
			runLog.Debug().Msg("reaper lease held elsewhere, skipping pass")
			return 0, nil
		}
	}

	now := r.now().UTC()
	cutoff := now.Add(-r.cfg.Grace)

	var expired []models.Appointment
	err := r.store.InTx(ctx, func(tx Store) error {
		rows, err := tx.LockOverdue(ctx, cutoff)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(rows))
		for _, a := range rows {
			ids = append(ids, a.ID)
		}
		n, err := tx.CancelMany(ctx, ids, r.cfg.Reason, now)
		if err != nil {
			return err
		}
		if int(n) != len(rows) {
			runLog.Warn().Int("selected", len(rows)).Int64("cancelled", n).Msg("reaper cancelled fewer rows than selected")
		}

		reason := r.cfg.Reason
		for i := range rows {
			rows[i].Status = models.StatusCancelled
			rows[i].CancellationReason = &reason
			rows[i].UpdatedAt = now
		}
		expired = rows
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(expired) > 0 {
		runLog.Info().Int("cancelled", len(expired)).Time("cutoff", cutoff).Msg("expired appointments cancelled")
	}
	for i := range expired {
		sendToParties(ctx, r.notifier, r.notifyTimeout, runLog, &expired[i], string(models.StatusCancelled))
	}
	return len(expired), nil
}
