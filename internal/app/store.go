package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// QuoteStore is the single owning handle for the quote collection.
// Every mutation is mirrored to the durable store as a whole-value overwrite.
// It is safe for concurrent use.
type QuoteStore struct {
	mu       sync.RWMutex
	quotes   []domain.Quote
	selected string

	durable ports.DurableStore
	session ports.SessionStore
	intN    func(n int) int
	logger  *slog.Logger
}

// QuoteStoreConfig contains the dependencies of a QuoteStore.
type QuoteStoreConfig struct {
	Durable ports.DurableStore
	Session ports.SessionStore
	Logger  *slog.Logger

	// IntN returns a uniform integer in [0, n). Defaults to math/rand/v2.IntN.
	IntN func(n int) int
}

// NewQuoteStore creates an empty store. Call Load before use.
func NewQuoteStore(cfg QuoteStoreConfig) *QuoteStore {
	if cfg.Durable == nil {
		panic("app: QuoteStore requires a durable store")
	}

	if cfg.Session == nil {
		panic("app: QuoteStore requires a session store")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	intN := cfg.IntN
	if intN == nil {
		intN = rand.IntN
	}

	return &QuoteStore{
		selected: domain.CategoryAll,
		durable:  cfg.Durable,
		session:  cfg.Session,
		intN:     intN,
		logger:   logger.With(slog.String("component", "app.QuoteStore")),
	}
}

func (s *QuoteStore) log(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, s.logger)
}

// Load reads the persisted collection and the last selected category.
// An absent collection is seeded with the default quotes and persisted.
// Malformed stored data falls back to the defaults without overwriting it.
// Stored records with a blank text or category are dropped, matching what
// Import accepts.
func (s *QuoteStore) Load(ctx context.Context) ([]domain.Quote, error) {
	logger := s.log(ctx)

	quotes, seeded, err := s.readQuotes(ctx)
	if err != nil {
		return nil, err
	}

	selected, err := s.durable.Get(ctx, ports.KeyLastCategoryFilter)
	switch {
	case domain.IsNotFound(err) || selected == "":
		selected = domain.CategoryAll
	case err != nil:
		return nil, fmt.Errorf("loading selected category: %w", err)
	}

	if selected != domain.CategoryAll && !domain.ContainsCategory(quotes, selected) {
		logger.WarnContext(ctx, "selected category has no quotes",
			slog.String("selected_category", selected),
		)
	}

	s.mu.Lock()
	s.quotes = quotes
	s.selected = selected
	s.mu.Unlock()

	if seeded {
		if err := s.Persist(ctx); err != nil {
			return nil, err
		}
	}

	logger.InfoContext(ctx, "quotes loaded",
		slog.Int("count", len(quotes)),
		slog.String("selected_category", selected),
		slog.Bool("seeded", seeded),
	)

	return s.Quotes(), nil
}

func (s *QuoteStore) readQuotes(ctx context.Context) ([]domain.Quote, bool, error) {
	raw, err := s.durable.Get(ctx, ports.KeyQuotes)
	if domain.IsNotFound(err) {
		return domain.DefaultQuotes(), true, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("loading quotes: %w", err)
	}

	var quotes []domain.Quote
	if err := json.Unmarshal([]byte(raw), &quotes); err != nil || quotes == nil {
		s.log(ctx).WarnContext(ctx, "stored quotes are malformed, using defaults",
			slog.Any("error", err),
		)

		return domain.DefaultQuotes(), false, nil
	}

	valid := quotes[:0]

	for _, q := range quotes {
		if q.Validate() != nil {
			continue
		}

		valid = append(valid, q)
	}

	if dropped := len(quotes) - len(valid); dropped > 0 {
		s.log(ctx).WarnContext(ctx, "dropped stored quotes with empty fields",
			slog.Int("dropped", dropped),
		)
	}

	return valid, false, nil
}

// Add validates and appends a quote, then persists the collection.
// A ValidationError leaves the collection unchanged.
func (s *QuoteStore) Add(ctx context.Context, text, category string) (domain.Quote, error) {
	q, err := domain.NewQuote(text, category)
	if err != nil {
		return domain.Quote{}, err
	}

	if err := s.Append(ctx, q); err != nil {
		return domain.Quote{}, err
	}

	return q, nil
}

// Append adds quotes verbatim and persists. On a persist failure the
// in-memory collection is rolled back.
func (s *QuoteStore) Append(ctx context.Context, quotes ...domain.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.quotes
	next := make([]domain.Quote, 0, len(prev)+len(quotes))
	next = append(next, prev...)
	next = append(next, quotes...)

	s.quotes = next

	if err := s.persistLocked(ctx); err != nil {
		s.quotes = prev
		return err
	}

	return nil
}

// MergeResult summarizes one Merge.
type MergeResult struct {
	Overridden int
	Total      int
}

// Merge reconciles remote into the current collection (remote wins on equal
// text) and persists the result. Reading, merging and persisting happen under
// one write lock, so an Add that commits while a sync is fetching is merged
// rather than overwritten. On a persist failure the collection is unchanged.
func (s *QuoteStore) Merge(ctx context.Context, remote []domain.Quote) (MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.quotes
	merged := domain.Reconcile(prev, remote)

	s.quotes = merged

	if err := s.persistLocked(ctx); err != nil {
		s.quotes = prev
		return MergeResult{}, err
	}

	return MergeResult{
		Overridden: len(prev) + len(remote) - len(merged),
		Total:      len(merged),
	}, nil
}

// Persist writes the current collection to the durable store.
func (s *QuoteStore) Persist(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.persistLocked(ctx)
}

func (s *QuoteStore) persistLocked(ctx context.Context) error {
	quotes := s.quotes
	if quotes == nil {
		quotes = []domain.Quote{}
	}

	data, err := json.Marshal(quotes)
	if err != nil {
		return fmt.Errorf("encoding quotes: %w", err)
	}

	if err := s.durable.Set(ctx, ports.KeyQuotes, string(data)); err != nil {
		return fmt.Errorf("persisting quotes: %w", err)
	}

	return nil
}

// Quotes returns a snapshot copy of the collection.
func (s *QuoteStore) Quotes() []domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.Quote{}, s.quotes...)
}

// Len returns the collection size.
func (s *QuoteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.quotes)
}

// PickRandom selects uniformly among the quotes matching category.
// Empty or CategoryAll means no filter. Returns false on an empty set.
func (s *QuoteStore) PickRandom(category string) (domain.Quote, bool) {
	candidates := s.Filter(category)
	if len(candidates) == 0 {
		return domain.Quote{}, false
	}

	return candidates[s.intN(len(candidates))], true
}

// Categories returns CategoryAll followed by the distinct categories.
func (s *QuoteStore) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.Categories(s.quotes)
}

// Filter returns the quotes filed under category.
func (s *QuoteStore) Filter(category string) []domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.FilterByCategory(s.quotes, category)
}

// SelectCategory records the category filter and persists it.
// Unknown categories are accepted; filtering then yields no quotes.
func (s *QuoteStore) SelectCategory(ctx context.Context, category string) error {
	if category == "" {
		category = domain.CategoryAll
	}

	if err := s.durable.Set(ctx, ports.KeyLastCategoryFilter, category); err != nil {
		return fmt.Errorf("persisting selected category: %w", err)
	}

	s.mu.Lock()
	s.selected = category
	s.mu.Unlock()

	return nil
}

// SelectedCategory returns the last selected category filter.
func (s *QuoteStore) SelectedCategory() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.selected
}

// RememberViewed stores q in the session store so a reload can show it again.
func (s *QuoteStore) RememberViewed(ctx context.Context, q domain.Quote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encoding viewed quote: %w", err)
	}

	if err := s.session.Set(ctx, ports.KeyLastViewedQuote, string(data)); err != nil {
		return fmt.Errorf("remembering viewed quote: %w", err)
	}

	return nil
}

// LastViewed returns the quote remembered for this session.
// Missing or malformed session data reports false.
func (s *QuoteStore) LastViewed(ctx context.Context) (domain.Quote, bool) {
	raw, err := s.session.Get(ctx, ports.KeyLastViewedQuote)
	if err != nil {
		if !domain.IsNotFound(err) {
			s.log(ctx).WarnContext(ctx, "reading last viewed quote", slog.Any("error", err))
		}

		return domain.Quote{}, false
	}

	var q domain.Quote
	if err := json.Unmarshal([]byte(raw), &q); err != nil || q.Validate() != nil {
		s.log(ctx).WarnContext(ctx, "discarding malformed last viewed quote")
		return domain.Quote{}, false
	}

	return q, true
}

// Export renders the collection as a 2-space indented JSON array.
func (s *QuoteStore) Export() ([]byte, error) {
	data, err := json.MarshalIndent(s.Quotes(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding export: %w", err)
	}

	return data, nil
}

// Import appends every record of a JSON array and persists.
// Content that is not a JSON array yields a ParseError; a record with an empty
// field yields a ValidationError. Either way nothing is appended.
func (s *QuoteStore) Import(ctx context.Context, data []byte) (int, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, domain.NewParseError("import", "expected a JSON array of quotes: "+err.Error())
	}

	if records == nil {
		return 0, domain.NewParseError("import", "expected a JSON array of quotes")
	}

	quotes := make([]domain.Quote, 0, len(records))

	for i, raw := range records {
		var q domain.Quote
		if err := json.Unmarshal(raw, &q); err != nil {
			return 0, domain.NewParseError("import", fmt.Sprintf("record %d: %v", i, err))
		}

		if err := q.Validate(); err != nil {
			return 0, fmt.Errorf("import record %d: %w", i, err)
		}

		quotes = append(quotes, q)
	}

	if err := s.Append(ctx, quotes...); err != nil {
		return 0, err
	}

	return len(quotes), nil
}
