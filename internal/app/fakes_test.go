package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// discardLogger returns a logger that discards all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeKV is an in-memory DurableStore and SessionStore with failure injection.
type fakeKV struct {
	mu     sync.Mutex
	data   map[string]string
	sets   int
	getErr error
	setErr error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return "", f.getErr
	}

	v, ok := f.data[key]
	if !ok {
		return "", domain.NewNotFoundError("key", key)
	}

	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setErr != nil {
		return f.setErr
	}

	f.sets++
	f.data[key] = value

	return nil
}

func (f *fakeKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.data, key)

	return nil
}

func (f *fakeKV) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.sets
}

// storedQuotes decodes the persisted collection.
func (f *fakeKV) storedQuotes(t *testing.T) []domain.Quote {
	t.Helper()

	f.mu.Lock()
	raw, ok := f.data[ports.KeyQuotes]
	f.mu.Unlock()

	require.True(t, ok, "quotes were never persisted")

	var quotes []domain.Quote
	require.NoError(t, json.Unmarshal([]byte(raw), &quotes))

	return quotes
}

// seedQuotes writes quotes to the durable store as the store would.
func (f *fakeKV) seedQuotes(t *testing.T, quotes []domain.Quote) {
	t.Helper()

	data, err := json.Marshal(quotes)
	require.NoError(t, err)

	f.data[ports.KeyQuotes] = string(data)
}

// mockRemote is a testify mock of ports.RemoteQuoteSource.
type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) FetchAll(ctx context.Context) ([]domain.Quote, error) {
	args := m.Called(ctx)

	quotes, _ := args.Get(0).([]domain.Quote)

	return quotes, args.Error(1)
}

func (m *mockRemote) Post(ctx context.Context, q domain.Quote) error {
	return m.Called(ctx, q).Error(0)
}

// funcRemote adapts plain functions to ports.RemoteQuoteSource.
type funcRemote struct {
	fetch func(ctx context.Context) ([]domain.Quote, error)
	post  func(ctx context.Context, q domain.Quote) error
}

func (f funcRemote) FetchAll(ctx context.Context) ([]domain.Quote, error) {
	return f.fetch(ctx)
}

func (f funcRemote) Post(ctx context.Context, q domain.Quote) error {
	if f.post == nil {
		return nil
	}

	return f.post(ctx, q)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e ports.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, e)

	return nil
}

func (p *recordingPublisher) types() []ports.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]ports.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}

	return out
}

// newLoadedStore builds a QuoteStore over fresh fakes holding initial.
// A nil initial leaves storage empty so Load seeds the defaults.
func newLoadedStore(t *testing.T, initial []domain.Quote) (*QuoteStore, *fakeKV, *fakeKV) {
	t.Helper()

	durable := newFakeKV()
	session := newFakeKV()

	if initial != nil {
		durable.seedQuotes(t, initial)
	}

	store := NewQuoteStore(QuoteStoreConfig{
		Durable: durable,
		Session: session,
		Logger:  discardLogger(),
	})

	_, err := store.Load(context.Background())
	require.NoError(t, err)

	return store, durable, session
}
