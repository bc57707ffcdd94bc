package domain

import "strings"

// CategoryAll is the filter value that matches every quote.
const CategoryAll = "all"

// Quote is a piece of text filed under a category.
// Quotes carry no identity; two quotes are the same when their Text matches exactly.
type Quote struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// NewQuote trims both fields and rejects the quote if either is empty.
func NewQuote(text, category string) (Quote, error) {
	q := Quote{Text: text, Category: category}.Normalize()

	if err := q.Validate(); err != nil {
		return Quote{}, err
	}

	return q, nil
}

// Normalize returns q with surrounding whitespace trimmed from both fields.
func (q Quote) Normalize() Quote {
	return Quote{
		Text:     strings.TrimSpace(q.Text),
		Category: strings.TrimSpace(q.Category),
	}
}

// Validate reports a ValidationError when Text or Category is blank.
func (q Quote) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return NewValidationError("text", "must not be empty")
	}

	if strings.TrimSpace(q.Category) == "" {
		return NewValidationError("category", "must not be empty")
	}

	return nil
}

// DefaultQuotes returns the seed collection used when nothing is stored yet.
func DefaultQuotes() []Quote {
	return []Quote{
		{Text: "The only way to do great work is to love what you do.", Category: "Inspiration"},
		{Text: "Innovation distinguishes between a leader and a follower.", Category: "Technology"},
		{Text: "Stay hungry, stay foolish.", Category: "Life"},
		{Text: "The future belongs to those who believe in the beauty of their dreams.", Category: "Dreams"},
		{Text: "Success is not final, failure is not fatal: it is the courage to continue that counts.", Category: "Motivation"},
	}
}
