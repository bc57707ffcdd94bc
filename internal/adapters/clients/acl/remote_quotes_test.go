package acl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
	"github.com/jsamuelsen/quote-sync/internal/domain"
)

func newRemote(t *testing.T, handler http.HandlerFunc) *RemoteQuoteClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := clients.New(testConfig(server.URL))
	require.NoError(t, err)

	return NewRemoteQuoteClient(client, 7)
}

func TestRemoteQuoteClient_FetchAll(t *testing.T) {
	remote := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/posts", r.URL.Path)

		_, _ = w.Write([]byte(`[
			{"userId": 1, "id": 1, "title": "first", "body": "ignored"},
			{"userId": 2, "id": 2, "title": "", "body": "no title"},
			{"userId": 10, "id": 3, "title": "third", "body": ""}
		]`))
	})

	quotes, err := remote.FetchAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []domain.Quote{
		{Text: "first", Category: "User 1"},
		{Text: "third", Category: "User 10"},
	}, quotes)
}

func TestRemoteQuoteClient_FetchAll_Empty(t *testing.T) {
	remote := newRemote(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	quotes, err := remote.FetchAll(context.Background())

	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestRemoteQuoteClient_FetchAll_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"not": "an array"}`))
		}},
		{"truncated body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[{"title": "x"`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := newRemote(t, tt.handler)

			quotes, err := remote.FetchAll(context.Background())

			require.Error(t, err)
			assert.True(t, domain.IsUnavailable(err), "got %v", err)
			assert.Nil(t, quotes)
		})
	}
}

func TestRemoteQuoteClient_FetchAll_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client, err := clients.New(testConfig(server.URL))
	require.NoError(t, err)

	_, err = NewRemoteQuoteClient(client, 1).FetchAll(context.Background())

	assert.True(t, domain.IsUnavailable(err))
}

func TestRemoteQuoteClient_Post(t *testing.T) {
	var got post

	remote := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/posts", r.URL.Path)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 101}`))
	})

	err := remote.Post(context.Background(), domain.Quote{Text: "Be kind.", Category: "Life"})

	require.NoError(t, err)
	assert.Equal(t, post{UserID: 7, Title: "Be kind.", Body: "Life"}, got)
}

func TestRemoteQuoteClient_Post_Rejected(t *testing.T) {
	remote := newRemote(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := remote.Post(context.Background(), domain.Quote{Text: "x", Category: "y"})

	assert.True(t, domain.IsUnavailable(err))
}

func TestRemoteQuoteClient_Health(t *testing.T) {
	remote := newRemote(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	assert.Equal(t, "remote-quotes", remote.Name())
	require.NoError(t, remote.Check(context.Background()))

	for range 5 {
		_, _ = remote.FetchAll(context.Background())
	}

	err := remote.Check(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))
	assert.Contains(t, err.Error(), "circuit open")
}
