package acl

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

const postsPath = "/posts"

// post is the remote wire shape. Only this package knows about it.
type post struct {
	UserID int    `json:"userId"`
	ID     int    `json:"id,omitempty"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// RemoteQuoteClient reads and writes quotes on a posts API.
type RemoteQuoteClient struct {
	BaseAdapter
	userID int
}

var (
	_ ports.RemoteQuoteSource = (*RemoteQuoteClient)(nil)
	_ ports.HealthChecker     = (*RemoteQuoteClient)(nil)
)

// NewRemoteQuoteClient creates the adapter. userID is attached to every
// posted quote.
func NewRemoteQuoteClient(client *clients.Client, userID int) *RemoteQuoteClient {
	return &RemoteQuoteClient{
		BaseAdapter: NewBaseAdapter(client, client.ServiceName()),
		userID:      userID,
	}
}

// FetchAll returns every remote post translated into a quote.
func (c *RemoteQuoteClient) FetchAll(ctx context.Context) ([]domain.Quote, error) {
	body, err := c.Get(ctx, postsPath, "fetch quotes")
	if err != nil {
		return nil, err
	}

	posts, err := DecodeResponse[[]post](body)
	if err != nil {
		return nil, domain.NewUnavailableError(c.ServiceName(), err.Error())
	}

	quotes, err := TranslateSlice(*posts, translatePost)
	if err != nil {
		return nil, domain.NewUnavailableError(c.ServiceName(), err.Error())
	}

	return quotes, nil
}

// Post sends quote upstream. The server's echo is discarded.
func (c *RemoteQuoteClient) Post(ctx context.Context, quote domain.Quote) error {
	payload, err := json.Marshal(post{
		UserID: c.userID,
		Title:  quote.Text,
		Body:   quote.Category,
	})
	if err != nil {
		return fmt.Errorf("encoding quote: %w", err)
	}

	body, err := c.BaseAdapter.Post(ctx, postsPath, payload, "post quote")
	if err != nil {
		return err
	}

	return body.Close()
}

// Name implements ports.HealthChecker.
func (c *RemoteQuoteClient) Name() string {
	return c.ServiceName()
}

// Check reports the remote as down while its circuit is open. It does not
// call the server.
func (c *RemoteQuoteClient) Check(context.Context) error {
	snap := c.Client().CircuitSnapshot()
	if snap.State == clients.StateOpen {
		return domain.NewUnavailableError(c.ServiceName(),
			fmt.Sprintf("circuit open after %d consecutive failures", snap.ConsecutiveFailures))
	}

	return nil
}

func translatePost(p *post) (domain.Quote, error) {
	if strings.TrimSpace(p.Title) == "" {
		return domain.Quote{}, ErrSkip
	}

	return domain.Quote{
		Text:     p.Title,
		Category: "User " + strconv.Itoa(p.UserID),
	}, nil
}
