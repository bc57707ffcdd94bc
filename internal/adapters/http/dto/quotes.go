package dto

import (
	"time"

	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// MaxFieldLength caps the text and category of a submitted quote.
const MaxFieldLength = 1000

// Quote is the wire form of a domain.Quote.
type Quote struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// FromQuote converts a domain quote.
func FromQuote(q domain.Quote) Quote {
	return Quote(q)
}

// FromQuotes converts a slice of domain quotes.
func FromQuotes(quotes []domain.Quote) []Quote {
	out := make([]Quote, len(quotes))
	for i, q := range quotes {
		out[i] = FromQuote(q)
	}

	return out
}

// AddQuoteRequest is the body of POST /api/v1/quotes.
type AddQuoteRequest struct {
	Text     string `json:"text"     validate:"required,notempty,max=1000"`
	Category string `json:"category" validate:"required,notempty,max=1000"`
}

// ListQuotesRequest is the query of GET /api/v1/quotes.
type ListQuotesRequest struct {
	PaginationRequest

	Category string `form:"category" json:"category"`
}

// RandomQuoteRequest is the query of GET /api/v1/quotes/random.
type RandomQuoteRequest struct {
	Category string `form:"category" json:"category"`
}

// ImportResponse reports how many quotes an import appended.
type ImportResponse struct {
	Imported int `json:"imported"`
}

// CategoriesResponse lists the category index and the current filter.
type CategoriesResponse struct {
	Categories []string `json:"categories"`
	Selected   string   `json:"selected"`
}

// SelectCategoryRequest is the body of PUT /api/v1/categories/selected.
type SelectCategoryRequest struct {
	Category string `json:"category" validate:"required,notempty"`
}

// SyncResponse summarizes a manual sync.
type SyncResponse struct {
	Message    string `json:"message"`
	Fetched    int    `json:"fetched"`
	Overridden int    `json:"overridden"`
	Total      int    `json:"total"`
	DurationMS int64  `json:"durationMs"`
}

// FromSyncResult converts a reconciler result.
func FromSyncResult(r app.SyncResult, message string) SyncResponse {
	return SyncResponse{
		Message:    message,
		Fetched:    r.Fetched,
		Overridden: r.Overridden,
		Total:      r.Total,
		DurationMS: r.Duration.Milliseconds(),
	}
}

// SyncStatusResponse is the body of GET /api/v1/sync/status.
type SyncStatusResponse struct {
	Message     string     `json:"message"`
	InProgress  bool       `json:"inProgress"`
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	Runs        int64      `json:"runs"`
	Failures    int64      `json:"failures"`
}

// FromSyncStatus converts the reconciler status.
func FromSyncStatus(s app.SyncStatus) SyncStatusResponse {
	return SyncStatusResponse{
		Message:     s.Message,
		InProgress:  s.InProgress,
		LastAttempt: timeOrNil(s.LastAttempt),
		LastSuccess: timeOrNil(s.LastSuccess),
		LastError:   s.LastError,
		Runs:        s.Runs,
		Failures:    s.Failures,
	}
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	return &t
}
