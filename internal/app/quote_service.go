// Package app holds the quote use cases. QuoteStore owns the collection,
// Reconciler merges it with the remote source and QuoteService maps each user
// action onto one state transition, independent of any front-end.
package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// QuoteService dispatches user actions. The HTTP handlers and the CLI both
// drive it, so every method is a complete validate → mutate → persist →
// notify transition.
type QuoteService struct {
	store      *QuoteStore
	reconciler *Reconciler
	events     ports.EventPublisher
	exec       *Executor
	logger     *slog.Logger

	pushes sync.WaitGroup
}

// QuoteServiceConfig contains the dependencies of a QuoteService.
type QuoteServiceConfig struct {
	Store      *QuoteStore
	Reconciler *Reconciler
	Events     ports.EventPublisher
	Logger     *slog.Logger
}

// NewQuoteService creates the dispatcher. Store and Reconciler are required.
func NewQuoteService(cfg QuoteServiceConfig) *QuoteService {
	if cfg.Store == nil {
		panic("app: QuoteService requires a QuoteStore")
	}

	if cfg.Reconciler == nil {
		panic("app: QuoteService requires a Reconciler")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	events := cfg.Events
	if events == nil {
		events = ports.NopPublisher{}
	}

	return &QuoteService{
		store:      cfg.Store,
		reconciler: cfg.Reconciler,
		events:     events,
		exec:       NewExecutor(logger),
		logger:     logger.With(slog.String("component", "app.QuoteService")),
	}
}

// ShowRandom picks a quote from category, or from the selected category when
// category is empty, and remembers it for the session.
// Returns a NotFoundError when no quote matches.
func (s *QuoteService) ShowRandom(ctx context.Context, category string) (domain.Quote, error) {
	if category == "" {
		category = s.store.SelectedCategory()
	}

	q, ok := s.store.PickRandom(category)
	if !ok {
		return domain.Quote{}, domain.NewNotFoundError("quotes in category", category)
	}

	if err := s.store.RememberViewed(ctx, q); err != nil {
		logging.FromContextOr(ctx, s.logger).WarnContext(ctx, "could not remember viewed quote",
			slog.Any("error", err),
		)
	}

	return q, nil
}

// AddQuote validates, appends and persists a quote, then pushes it to the
// remote source in the background. The local add succeeds even when the push
// fails.
func (s *QuoteService) AddQuote(ctx context.Context, text, category string) (domain.Quote, error) {
	op := Operation[domain.Quote, domain.Quote, domain.Quote, domain.Quote]{
		Name: "add_quote",
		Validate: func(_ context.Context, in domain.Quote) error {
			return in.Validate()
		},
		Perform: func(_ context.Context, in domain.Quote) (domain.Quote, error) {
			return in.Normalize(), nil
		},
		Archive: func(ctx context.Context, _ domain.Quote, q domain.Quote) error {
			return s.store.Append(ctx, q)
		},
		Respond: func(_ context.Context, _ domain.Quote, q domain.Quote) (domain.Quote, error) {
			return q, nil
		},
	}

	q, err := Execute(ctx, s.exec, op, domain.Quote{Text: text, Category: category})
	if err != nil {
		return domain.Quote{}, err
	}

	s.publish(ctx, ports.EventQuoteAdded, q)
	s.push(ctx, q)

	return q, nil
}

func (s *QuoteService) push(ctx context.Context, q domain.Quote) {
	ctx = context.WithoutCancel(ctx)

	s.pushes.Add(1)

	go func() {
		defer s.pushes.Done()

		if err := s.reconciler.Push(ctx, q); err != nil {
			logging.FromContextOr(ctx, s.logger).InfoContext(ctx, "quote kept locally, remote push failed",
				slog.Any("error", err),
			)
		}
	}()
}

// WaitPushes blocks until background pushes started by AddQuote finish.
func (s *QuoteService) WaitPushes() {
	s.pushes.Wait()
}

// SelectCategory persists the category filter.
func (s *QuoteService) SelectCategory(ctx context.Context, category string) error {
	if err := s.store.SelectCategory(ctx, category); err != nil {
		return err
	}

	s.publish(ctx, ports.EventCategorySelected, s.store.SelectedCategory())

	return nil
}

// Categories returns the category index and the current selection.
func (s *QuoteService) Categories() (categories []string, selected string) {
	return s.store.Categories(), s.store.SelectedCategory()
}

// List returns the quotes filed under category; empty means all.
func (s *QuoteService) List(category string) []domain.Quote {
	return s.store.Filter(category)
}

// Export returns the collection as indented JSON.
func (s *QuoteService) Export() ([]byte, error) {
	return s.store.Export()
}

// Import appends the quotes in data and returns how many were added.
func (s *QuoteService) Import(ctx context.Context, data []byte) (int, error) {
	n, err := s.store.Import(ctx, data)
	if err != nil {
		return 0, err
	}

	logging.FromContextOr(ctx, s.logger).InfoContext(ctx, "quotes imported", slog.Int("count", n))
	s.publish(ctx, ports.EventQuotesImported, map[string]int{"imported": n})

	return n, nil
}

// SyncNow runs a manual reconciliation.
func (s *QuoteService) SyncNow(ctx context.Context) (SyncResult, error) {
	return s.reconciler.Sync(ctx)
}

// LastViewed returns the quote shown last in this session.
func (s *QuoteService) LastViewed(ctx context.Context) (domain.Quote, error) {
	q, ok := s.store.LastViewed(ctx)
	if !ok {
		return domain.Quote{}, domain.NewNotFoundError("last viewed quote", "")
	}

	return q, nil
}

// Status returns the reconciler status.
func (s *QuoteService) Status() SyncStatus {
	return s.reconciler.Status()
}

func (s *QuoteService) publish(ctx context.Context, kind ports.EventType, data any) {
	event := ports.Event{Type: kind, At: s.reconciler.now(), Data: data}

	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.DebugContext(ctx, "publishing event", slog.String("type", string(kind)), slog.Any("error", err))
	}
}
