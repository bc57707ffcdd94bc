// Package ports defines the capabilities the quote application needs from the
// outside world. Adapters implement them; the app layer only sees these interfaces.
//
// Every method takes a context first and returns domain errors
// (domain.ErrNotFound, domain.ErrUnavailable, ...), never driver errors.
package ports

import (
	"context"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// Storage keys shared by every store implementation.
const (
	// KeyQuotes holds the serialized quote collection in the durable store.
	KeyQuotes = "quotes"

	// KeyLastCategoryFilter holds the last selected category in the durable store.
	KeyLastCategoryFilter = "lastCategoryFilter"

	// KeyLastViewedQuote holds the last shown quote in the session store.
	KeyLastViewedQuote = "lastViewedQuote"
)

// DurableStore is a string-keyed store that survives process restarts.
// Writes replace the whole value; there are no partial updates.
type DurableStore interface {
	// Get returns the value stored under key.
	// Returns domain.ErrNotFound if the key was never written.
	Get(ctx context.Context, key string) (string, error)

	// Set overwrites the value stored under key.
	Set(ctx context.Context, key, value string) error
}

// SessionStore is a string-keyed store scoped to a single session.
// Values disappear when the session ends (process exit or TTL expiry).
type SessionStore interface {
	// Get returns the value stored under key.
	// Returns domain.ErrNotFound if the key is absent or expired.
	Get(ctx context.Context, key string) (string, error)

	// Set overwrites the value stored under key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// RemoteQuoteSource is the server the local collection is reconciled against.
type RemoteQuoteSource interface {
	// FetchAll returns the full remote snapshot.
	// Returns domain.ErrUnavailable on transport or decode failures.
	FetchAll(ctx context.Context) ([]domain.Quote, error)

	// Post sends a single quote upstream. The response body is ignored.
	Post(ctx context.Context, quote domain.Quote) error
}

// EventType identifies what changed in the quote collection.
type EventType string

// Events published after state transitions.
const (
	EventQuoteAdded       EventType = "quote_added"
	EventQuotesImported   EventType = "imported"
	EventQuotesSynced     EventType = "synced"
	EventCategorySelected EventType = "category_selected"
	EventSyncFailed       EventType = "sync_failed"
)

// Event tells front-ends to refresh their display.
type Event struct {
	Type EventType `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

// EventPublisher fans collection changes out to whoever renders them.
type EventPublisher interface {
	// Publish delivers the event. Implementations must not block on slow consumers.
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards every event. Used by front-ends without a live display.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }
