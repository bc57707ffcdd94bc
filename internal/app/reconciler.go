package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
	"github.com/jsamuelsen/quote-sync/internal/platform/telemetry"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// Status messages shown to the user.
const (
	StatusIdle        = "Not synced yet"
	StatusSyncing     = "Syncing with server..."
	StatusSynced      = "Quotes synced with server"
	StatusFetchFailed = "Failed to sync with server"
	StatusPersistFail = "Sync fetched quotes but could not save them"
	StatusPosted      = "Quote sent to server"
	StatusPostFailed  = "Failed to send quote to server"
)

const (
	defaultSyncTimeout = 10 * time.Second
	defaultSyncEvery   = 300 * time.Second
)

// SyncResult summarizes one successful reconciliation.
type SyncResult struct {
	Fetched    int           `json:"fetched"`
	Overridden int           `json:"overridden"`
	Total      int           `json:"total"`
	Duration   time.Duration `json:"duration"`
}

// SyncStatus is the reconciler state reported to front-ends.
type SyncStatus struct {
	Message     string    `json:"message"`
	InProgress  bool      `json:"inProgress"`
	LastAttempt time.Time `json:"lastAttempt,omitzero"`
	LastSuccess time.Time `json:"lastSuccess,omitzero"`
	LastError   string    `json:"lastError,omitempty"`
	Runs        int64     `json:"runs"`
	Failures    int64     `json:"failures"`
}

// Reconciler merges the remote snapshot into the QuoteStore.
// Remote entries always win; see domain.Reconcile.
type Reconciler struct {
	store  *QuoteStore
	remote ports.RemoteQuoteSource
	events ports.EventPublisher
	logger *slog.Logger

	timeout  time.Duration
	interval time.Duration
	onStart  bool
	now      func() time.Time

	running atomic.Bool

	mu     sync.RWMutex
	status SyncStatus

	syncTotal    metric.Int64Counter
	syncDuration metric.Float64Histogram
}

// ReconcilerConfig contains the dependencies and schedule of a Reconciler.
type ReconcilerConfig struct {
	Store  *QuoteStore
	Remote ports.RemoteQuoteSource
	Events ports.EventPublisher
	Logger *slog.Logger

	// Timeout bounds each remote call. Defaults to 10s.
	Timeout time.Duration

	// Interval between scheduled syncs. Defaults to 300s.
	Interval time.Duration

	// OnStart runs one sync as soon as Run is called.
	OnStart bool

	// Now is the clock used for status timestamps. Defaults to time.Now.
	Now func() time.Time
}

// NewReconciler creates a Reconciler.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	if cfg.Store == nil || cfg.Remote == nil {
		panic("app: Reconciler requires a store and a remote source")
	}

	r := &Reconciler{
		store:    cfg.Store,
		remote:   cfg.Remote,
		events:   cfg.Events,
		logger:   cfg.Logger,
		timeout:  cfg.Timeout,
		interval: cfg.Interval,
		onStart:  cfg.OnStart,
		now:      cfg.Now,
		status:   SyncStatus{Message: StatusIdle},
	}

	if r.events == nil {
		r.events = ports.NopPublisher{}
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	r.logger = r.logger.With(slog.String("component", "app.Reconciler"))

	if r.timeout <= 0 {
		r.timeout = defaultSyncTimeout
	}

	if r.interval <= 0 {
		r.interval = defaultSyncEvery
	}

	if r.now == nil {
		r.now = time.Now
	}

	r.initMetrics()

	return r
}

func (r *Reconciler) initMetrics() {
	meter := otel.Meter(telemetry.InstrumentationName)

	var err error

	r.syncTotal, err = meter.Int64Counter(
		"quotes.sync.total",
		metric.WithDescription("Reconciliation attempts by result"),
	)
	if err != nil {
		otel.Handle(err)
	}

	r.syncDuration, err = meter.Float64Histogram(
		"quotes.sync.duration",
		metric.WithDescription("Reconciliation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}
}

// FetchRemote returns the remote snapshot. Failures are logged and recorded
// in the status; the caller always gets a slice, empty on failure.
func (r *Reconciler) FetchRemote(ctx context.Context) []domain.Quote {
	quotes, err := r.fetch(ctx)
	if err != nil {
		r.fail(ctx, StatusFetchFailed, err)
		return []domain.Quote{}
	}

	return quotes
}

func (r *Reconciler) fetch(ctx context.Context) ([]domain.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	quotes, err := r.remote.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching remote quotes: %w", err)
	}

	return quotes, nil
}

// Sync fetches the remote snapshot, reconciles it with the local collection
// and persists the result. Only one sync runs at a time; an overlapping call
// returns a ConflictError immediately. A failed fetch leaves the collection
// untouched and returns an UnavailableError.
func (r *Reconciler) Sync(ctx context.Context) (SyncResult, error) {
	if !r.running.CompareAndSwap(false, true) {
		return SyncResult{}, domain.NewConflictError("sync", "already in progress")
	}
	defer r.running.Store(false)

	logger := logging.FromContextOr(ctx, r.logger)
	start := r.now()

	r.update(func(s *SyncStatus) {
		s.Message = StatusSyncing
		s.InProgress = true
		s.LastAttempt = start
		s.Runs++
	})

	remote, err := r.fetch(ctx)
	if err != nil {
		r.fail(ctx, StatusFetchFailed, err)
		r.record(ctx, "fetch_failed", start)

		return SyncResult{}, unavailable(err)
	}

	merged, err := r.store.Merge(ctx, remote)
	if err != nil {
		r.fail(ctx, StatusPersistFail, err)
		r.record(ctx, "persist_failed", start)

		return SyncResult{}, err
	}

	result := SyncResult{
		Fetched:    len(remote),
		Overridden: merged.Overridden,
		Total:      merged.Total,
		Duration:   r.now().Sub(start),
	}

	r.update(func(s *SyncStatus) {
		s.Message = StatusSynced
		s.InProgress = false
		s.LastSuccess = r.now()
		s.LastError = ""
	})
	r.record(ctx, "success", start)

	r.publish(ctx, ports.EventQuotesSynced, result)

	logger.InfoContext(ctx, "quotes synced",
		slog.Int("fetched", result.Fetched),
		slog.Int("overridden", result.Overridden),
		slog.Int("total", result.Total),
		slog.Duration("duration", result.Duration),
	)

	return result, nil
}

// Push sends q to the remote source. It is best effort: the error is returned
// for logging and reflected in the status, but local state is never touched.
func (r *Reconciler) Push(ctx context.Context, q domain.Quote) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.remote.Post(ctx, q); err != nil {
		r.fail(ctx, StatusPostFailed, err)
		return unavailable(err)
	}

	r.update(func(s *SyncStatus) {
		s.Message = StatusPosted
	})

	return nil
}

// Run syncs every interval until ctx is cancelled. Errors from individual
// runs are logged; Run itself only returns when ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "sync scheduler started",
		slog.Duration("interval", r.interval),
		slog.Bool("on_start", r.onStart),
	)

	if r.onStart {
		r.scheduled(ctx)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(context.WithoutCancel(ctx), "sync scheduler stopped")
			return nil
		case <-ticker.C:
			r.scheduled(ctx)
		}
	}
}

func (r *Reconciler) scheduled(ctx context.Context) {
	_, err := r.Sync(ctx)

	switch {
	case err == nil:
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		r.logger.DebugContext(context.WithoutCancel(ctx), "scheduled sync interrupted by shutdown")
	case domain.IsConflict(err):
		r.logger.DebugContext(ctx, "skipping scheduled sync, previous run still active")
	default:
		r.logger.WarnContext(ctx, "scheduled sync failed", slog.Any("error", err))
	}
}

// Status returns a copy of the current reconciler status.
func (r *Reconciler) Status() SyncStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := r.status
	status.InProgress = r.running.Load()

	return status
}

func (r *Reconciler) update(fn func(*SyncStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn(&r.status)
}

func (r *Reconciler) fail(ctx context.Context, message string, err error) {
	logging.FromContextOr(ctx, r.logger).WarnContext(ctx, message, slog.Any("error", err))

	r.update(func(s *SyncStatus) {
		s.Message = message
		s.InProgress = false
		s.LastError = err.Error()
		s.Failures++
	})

	r.publish(ctx, ports.EventSyncFailed, map[string]string{"message": message})
}

func (r *Reconciler) record(ctx context.Context, result string, start time.Time) {
	attrs := metric.WithAttributes(attribute.String("result", result))

	if r.syncTotal != nil {
		r.syncTotal.Add(ctx, 1, attrs)
	}

	if r.syncDuration != nil {
		r.syncDuration.Record(ctx, r.now().Sub(start).Seconds(), attrs)
	}
}

func (r *Reconciler) publish(ctx context.Context, kind ports.EventType, data any) {
	err := r.events.Publish(ctx, ports.Event{Type: kind, At: r.now(), Data: data})
	if err != nil {
		r.logger.DebugContext(ctx, "publishing event", slog.String("type", string(kind)), slog.Any("error", err))
	}
}

// unavailable makes sure transport failures surface as ErrUnavailable.
func unavailable(err error) error {
	if domain.IsUnavailable(err) {
		return err
	}

	return domain.WrapUnavailable("remote-quotes", "", err)
}
