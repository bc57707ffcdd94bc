package domain

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrConflict,
		ErrValidation,
		ErrParse,
		ErrUnavailable,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.NotErrorIs(t, a, b,
					"sentinels should be distinct: %v vs %v", a, b)
			}
		}
	}
}

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name        string
		entity      string
		id          string
		expectedMsg string
	}{
		{
			name:        "with entity and key",
			entity:      "key",
			id:          "quotes",
			expectedMsg: `key "quotes" not found`,
		},
		{
			name:        "with entity only",
			entity:      "quote",
			expectedMsg: "quote not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewNotFoundError(tt.entity, tt.id)

			assert.Equal(t, tt.expectedMsg, err.Error())
			require.ErrorIs(t, err, ErrNotFound)

			var notFound *NotFoundError
			require.ErrorAs(t, err, &notFound)
			assert.Equal(t, tt.entity, notFound.Entity)
			assert.Equal(t, tt.id, notFound.ID)
		})
	}
}

func TestConflictError(t *testing.T) {
	err := NewConflictError("sync", "already in progress")

	assert.Equal(t, "sync conflict: already in progress", err.Error())
	require.ErrorIs(t, err, ErrConflict)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "sync", conflict.Entity)
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name        string
		field       string
		message     string
		expectedMsg string
	}{
		{
			name:        "with field",
			field:       "text",
			message:     "must not be empty",
			expectedMsg: "validation failed for text: must not be empty",
		},
		{
			name:        "without field",
			message:     "bad payload",
			expectedMsg: "validation failed: bad payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message)

			assert.Equal(t, tt.expectedMsg, err.Error())
			require.ErrorIs(t, err, ErrValidation)

			var validation *ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)
			assert.Equal(t, tt.message, validation.Message)
		})
	}
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name        string
		source      string
		reason      string
		expectedMsg string
	}{
		{
			name:        "with source",
			source:      "import",
			reason:      "expected a JSON array",
			expectedMsg: "parse failed for import: expected a JSON array",
		},
		{
			name:        "without source",
			reason:      "unexpected end of input",
			expectedMsg: "parse failed: unexpected end of input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewParseError(tt.source, tt.reason)

			assert.Equal(t, tt.expectedMsg, err.Error())
			require.ErrorIs(t, err, ErrParse)

			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, tt.source, parseErr.Source)
		})
	}
}

func TestUnavailableError(t *testing.T) {
	tests := []struct {
		name        string
		service     string
		reason      string
		expectedMsg string
	}{
		{
			name:        "with reason",
			service:     "remote-quotes",
			reason:      "connection timeout",
			expectedMsg: `service "remote-quotes" unavailable: connection timeout`,
		},
		{
			name:        "without reason",
			service:     "redis",
			expectedMsg: `service "redis" unavailable`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewUnavailableError(tt.service, tt.reason)

			assert.Equal(t, tt.expectedMsg, err.Error())
			require.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestWrapUnavailable_KeepsCause(t *testing.T) {
	err := WrapUnavailable("remote-quotes", "", context.Canceled)

	assert.Equal(t, `service "remote-quotes" unavailable: context canceled`, err.Error())
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsUnavailable(err))

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, context.Canceled, unavailable.Cause)

	assert.NotErrorIs(t, NewUnavailableError("remote-quotes", "down"), context.Canceled)
}

func TestIsHelpers(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		isFunc   func(error) bool
		expected bool
	}{
		{"IsNotFound with typed", NewNotFoundError("key", "quotes"), IsNotFound, true},
		{"IsNotFound with wrapped", fmt.Errorf("loading: %w", ErrNotFound), IsNotFound, true},
		{"IsNotFound with other", ErrConflict, IsNotFound, false},
		{"IsNotFound with nil", nil, IsNotFound, false},

		{"IsConflict with typed", NewConflictError("sync", "busy"), IsConflict, true},
		{"IsConflict with other", ErrParse, IsConflict, false},

		{"IsValidation with typed", NewValidationError("text", "empty"), IsValidation, true},
		{"IsValidation with wrapped", fmt.Errorf("adding: %w", ErrValidation), IsValidation, true},
		{"IsValidation with nil", nil, IsValidation, false},

		{"IsParse with typed", NewParseError("import", "bad"), IsParse, true},
		{"IsParse with other", ErrValidation, IsParse, false},

		{"IsUnavailable with typed", NewUnavailableError("remote", "down"), IsUnavailable, true},
		{"IsUnavailable with wrapped", fmt.Errorf("fetch: %w", ErrUnavailable), IsUnavailable, true},
		{"IsUnavailable with other", ErrNotFound, IsUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.isFunc(tt.err))
		})
	}
}
