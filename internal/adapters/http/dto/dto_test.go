package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext(method, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	return c, w
}

func TestHTTPStatusFromCode(t *testing.T) {
	tests := map[string]int{
		ErrorCodeNotFound:    http.StatusNotFound,
		ErrorCodeConflict:    http.StatusConflict,
		ErrorCodeValidation:  http.StatusBadRequest,
		ErrorCodeBadRequest:  http.StatusBadRequest,
		ErrorCodeParse:       http.StatusUnprocessableEntity,
		ErrorCodeUnavailable: http.StatusServiceUnavailable,
		ErrorCodeTimeout:     http.StatusGatewayTimeout,
		ErrorCodeInternal:    http.StatusInternalServerError,
		"SOMETHING_ELSE":     http.StatusInternalServerError,
	}

	for code, want := range tests {
		t.Run(code, func(t *testing.T) {
			assert.Equal(t, want, HTTPStatusFromCode(code))
		})
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", domain.NewNotFoundError("quote", "random"), http.StatusNotFound, ErrorCodeNotFound},
		{"conflict", domain.NewConflictError("sync", "already running"), http.StatusConflict, ErrorCodeConflict},
		{"validation", domain.NewValidationError("text", "must not be empty"), http.StatusBadRequest, ErrorCodeValidation},
		{"parse", domain.NewParseError("import", "not a JSON array"), http.StatusUnprocessableEntity, ErrorCodeParse},
		{"unavailable", domain.NewUnavailableError("remote-quotes", "timeout"), http.StatusServiceUnavailable, ErrorCodeUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ErrorCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := MapDomainError(tt.err)

			assert.Equal(t, tt.wantStatus, status)
			require.NotNil(t, resp)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}

	status, resp := MapDomainError(nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, resp)
}

func TestMapDomainError_ValidationDetails(t *testing.T) {
	_, resp := MapDomainError(domain.NewValidationError("category", "must not be empty"))

	assert.Equal(t, map[string]string{"category": "must not be empty"}, resp.Error.Details)
}

func TestMapDomainError_HidesInternalMessage(t *testing.T) {
	_, resp := MapDomainError(errors.New("dial tcp 10.0.0.3: secret"))

	assert.Equal(t, "an internal error occurred", resp.Error.Message)
}

func TestHandleError(t *testing.T) {
	c, w := newTestContext(http.MethodGet, "")

	HandleError(c, domain.NewParseError("import", "unexpected end of JSON input"))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrorCodeParse, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "unexpected end")
	assert.Empty(t, resp.TraceID, "untraced request")
}

func TestHandleError_LogsFailedStep(t *testing.T) {
	var logs bytes.Buffer

	c, w := newTestContext(http.MethodPost, "")
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), logger))

	err := &app.ExecutionError{
		Operation: "add_quote",
		Step:      app.StepArchive,
		Cause:     domain.NewUnavailableError("sqlite", "disk full"),
	}

	HandleError(c, err)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, logs.String(), `"level":"WARN"`)
	assert.Contains(t, logs.String(), `"step":"archive"`)
	assert.Contains(t, logs.String(), `"status":503`)
}

func TestHandleError_ClientErrorsAreNotLogged(t *testing.T) {
	var logs bytes.Buffer

	c, w := newTestContext(http.MethodPost, "")
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), logger))

	HandleError(c, domain.NewConflictError("sync", "already running"))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, logs.String())
}

func TestRespondWithValidationErrors(t *testing.T) {
	c, w := newTestContext(http.MethodGet, "")

	RespondWithValidationErrors(c, map[string]string{"text": "this field is required"})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "this field is required", resp.Error.Details["text"])
}

func TestRespondWithErrorCode(t *testing.T) {
	c, w := newTestContext(http.MethodGet, "")

	RespondWithErrorCode(c, ErrorCodeBadRequest, "invalid cursor")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid cursor")
}

func TestPaginationRequest_GetLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, (&PaginationRequest{}).GetLimit())
	assert.Equal(t, DefaultLimit, (&PaginationRequest{Limit: -3}).GetLimit())
	assert.Equal(t, 5, (&PaginationRequest{Limit: 5}).GetLimit())
	assert.Equal(t, MaxLimit, (&PaginationRequest{Limit: 500}).GetLimit())
}

func TestPaginate_WalksAllPages(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}
	req := PaginationRequest{Limit: 3}

	var seen []int

	for {
		page, err := Paginate(items, req)
		require.NoError(t, err)
		assert.Equal(t, len(items), page.Total)

		seen = append(seen, page.Items...)

		if !page.HasMore {
			assert.Empty(t, page.NextCursor)
			break
		}

		req.Cursor = page.NextCursor
	}

	assert.Equal(t, items, seen)
}

func TestPaginate_Edges(t *testing.T) {
	page, err := Paginate([]string{}, PaginationRequest{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
	assert.False(t, page.HasMore)

	past := EncodeCursor(&CursorData{Offset: 50})
	page, err = Paginate([]string{"a", "b"}, PaginationRequest{Cursor: past})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	_, err = Paginate([]string{"a"}, PaginationRequest{Cursor: "%%%"})
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestDecodeCursor(t *testing.T) {
	data, err := DecodeCursor(EncodeCursor(&CursorData{Offset: 20}))
	require.NoError(t, err)
	assert.Equal(t, 20, data.Offset)

	_, err = DecodeCursor("not-base64!")
	require.ErrorIs(t, err, ErrInvalidCursor)

	_, err = DecodeCursor(EncodeCursor(&CursorData{Offset: -1}))
	require.ErrorIs(t, err, ErrInvalidCursor)

	assert.Empty(t, EncodeCursor(nil))
}

func TestBindAndValidate_AddQuoteRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		fields  []string
	}{
		{"valid", `{"text":"Be kind.","category":"Life"}`, nil, nil},
		{"malformed", `{"text":`, ErrBinding, nil},
		{"missing text", `{"category":"Life"}`, ErrValidation, []string{"text"}},
		{"blank category", `{"text":"x","category":"   "}`, ErrValidation, []string{"category"}},
		{"too long", `{"text":"` + strings.Repeat("a", MaxFieldLength+1) + `","category":"x"}`, ErrValidation, []string{"text"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext(http.MethodPost, tt.body)

			var req AddQuoteRequest
			err := BindAndValidate(c, &req)

			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, "Be kind.", req.Text)
				return
			}

			require.ErrorIs(t, err, tt.wantErr)

			details := ValidationErrors(err)
			for _, field := range tt.fields {
				assert.Contains(t, details, field)
			}
		})
	}
}

func TestBindQueryAndValidate_ListQuotesRequest(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?category=Life&limit=5&cursor=abc", nil)

	var req ListQuotesRequest
	require.NoError(t, BindQueryAndValidate(c, &req))

	assert.Equal(t, "Life", req.Category)
	assert.Equal(t, 5, req.Limit)
	assert.Equal(t, "abc", req.Cursor)

	c.Request = httptest.NewRequest(http.MethodGet, "/?limit=1000", nil)

	var bad ListQuotesRequest
	err := BindQueryAndValidate(c, &bad)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "must be less than or equal to 100", ValidationErrors(err)["limit"])
}

func TestValidationMessages(t *testing.T) {
	type probe struct {
		Name string `json:"name" validate:"min=3"`
		Tags []int  `json:"tags" validate:"max=1"`
		Mode string `json:"mode" validate:"oneof=a b"`
	}

	err := Validate(probe{Name: "x", Tags: []int{1, 2}, Mode: "c"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	details := ValidationErrors(err)
	assert.Equal(t, "must be at least 3 characters", details["name"])
	assert.Equal(t, "must be at most 1", details["tags"])
	assert.Equal(t, "must be one of: a b", details["mode"])

	assert.False(t, IsValidationError(errors.New("plain")))
	assert.Empty(t, ValidationErrors(errors.New("plain")))
}

func TestFromQuotes(t *testing.T) {
	got := FromQuotes([]domain.Quote{{Text: "a", Category: "b"}})

	assert.Equal(t, []Quote{{Text: "a", Category: "b"}}, got)
	assert.NotNil(t, FromQuotes(nil))
}

func TestFromSyncStatus(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	resp := FromSyncStatus(app.SyncStatus{Message: app.StatusSynced, LastAttempt: at, Runs: 2})

	assert.Equal(t, app.StatusSynced, resp.Message)
	require.NotNil(t, resp.LastAttempt)
	assert.Equal(t, at, *resp.LastAttempt)
	assert.Nil(t, resp.LastSuccess)
	assert.EqualValues(t, 2, resp.Runs)
}

func TestFromSyncResult(t *testing.T) {
	resp := FromSyncResult(app.SyncResult{Fetched: 3, Overridden: 1, Total: 7, Duration: 1500 * time.Millisecond}, "ok")

	assert.Equal(t, SyncResponse{Message: "ok", Fetched: 3, Overridden: 1, Total: 7, DurationMS: 1500}, resp)
}
