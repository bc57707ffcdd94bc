package dto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// DefaultLimit is the page size when none is requested.
const DefaultLimit = 20

// MaxLimit caps the page size.
const MaxLimit = 100

// ErrInvalidCursor is returned when a cursor cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// PaginationRequest is the query part shared by list endpoints.
type PaginationRequest struct {
	// Cursor is the opaque NextCursor of a previous page.
	Cursor string `form:"cursor" json:"cursor"`

	Limit int `form:"limit" json:"limit" validate:"omitempty,gte=1,lte=100"`
}

// GetLimit returns the limit with defaults applied.
func (p *PaginationRequest) GetLimit() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}

	if p.Limit > MaxLimit {
		return MaxLimit
	}

	return p.Limit
}

// Offset decodes the cursor. An empty cursor is the first page.
func (p *PaginationRequest) Offset() (int, error) {
	if p.Cursor == "" {
		return 0, nil
	}

	data, err := DecodeCursor(p.Cursor)
	if err != nil {
		return 0, err
	}

	return data.Offset, nil
}

// PaginatedResponse is one page of a list.
type PaginatedResponse[T any] struct {
	Items []T `json:"items"`

	// NextCursor is empty on the last page.
	NextCursor string `json:"nextCursor,omitempty"`

	HasMore bool `json:"hasMore"`
	Total   int  `json:"total"`
}

// Paginate slices one page out of items. The collection has no stable IDs,
// so the cursor is an offset into the filtered list.
func Paginate[T any](items []T, req PaginationRequest) (*PaginatedResponse[T], error) {
	offset, err := req.Offset()
	if err != nil {
		return nil, err
	}

	limit := req.GetLimit()
	total := len(items)

	if offset > total {
		offset = total
	}

	end := min(offset+limit, total)

	page := make([]T, end-offset)
	copy(page, items[offset:end])

	resp := &PaginatedResponse[T]{
		Items:   page,
		HasMore: end < total,
		Total:   total,
	}

	if resp.HasMore {
		resp.NextCursor = EncodeCursor(&CursorData{Offset: end})
	}

	return resp, nil
}

// CursorData is the content of a pagination cursor.
type CursorData struct {
	Offset int `json:"o"`
}

// EncodeCursor encodes cursor data as URL-safe base64 JSON.
func EncodeCursor(data *CursorData) string {
	if data == nil {
		return ""
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return ""
	}

	return base64.URLEncoding.EncodeToString(jsonBytes)
}

// DecodeCursor reverses EncodeCursor. Negative offsets are rejected.
func DecodeCursor(encoded string) (*CursorData, error) {
	jsonBytes, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var data CursorData
	if err := json.Unmarshal(jsonBytes, &data); err != nil {
		return nil, ErrInvalidCursor
	}

	if data.Offset < 0 {
		return nil, ErrInvalidCursor
	}

	return &data, nil
}
