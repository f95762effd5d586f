// Package client is the facade the UI talks to: the partner directory plus
// at most one open conversation at a time.
package client

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"tolkuchka/internal/channel"
	"tolkuchka/internal/config"
	"tolkuchka/internal/conversation"
	"tolkuchka/internal/directory"
	"tolkuchka/internal/history"
	"tolkuchka/internal/live"
	"tolkuchka/internal/models"
)

type Client struct {
	cfg    *config.Config
	handle string

	history   *history.Loader
	directory *directory.Directory

	mu   sync.Mutex
	conv *conversation.Store
}

// New builds a client acting as handle. The handle comes from the identity
// collaborator and stays fixed for the client's lifetime.
func New(ctx context.Context, cfg *config.Config, handle string) (*Client, error) {
	if handle == "" {
		return nil, models.ErrInvalidHandle
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	loader := history.NewLoader(cfg.APIURL, httpClient)

	return &Client{
		cfg:       cfg,
		handle:    handle,
		history:   loader,
		directory: directory.New(ctx, cfg.APIURL, httpClient, loader, cfg.PreviewTTL),
	}, nil
}

func (c *Client) Handle() string { return c.handle }

// OpenConversation opens the conversation with partner: history fetch and
// live dial start immediately. A conversation already open is torn down
// first; the client keeps at most one live connection.
func (c *Client) OpenConversation(ctx context.Context, partner string) (*conversation.Store, error) {
	roomID, err := channel.ID(c.handle, partner)
	if err != nil {
		return nil, err
	}

	// Open does not block, so the swap can stay under one lock; concurrent
	// opens cannot leak a live connection.
	c.mu.Lock()
	prev := c.conv
	conv := conversation.Open(ctx, roomID, c.handle, c.history, c.dialLive)
	c.conv = conv
	c.mu.Unlock()

	if prev != nil {
		prev.Teardown()
	}

	return conv, nil
}

// SendText sends into the open conversation; a no-op when none is open.
func (c *Client) SendText(text string) {
	c.mu.Lock()
	conv := c.conv
	c.mu.Unlock()

	if conv == nil {
		log.Debug().Str("handle", c.handle).Msg("dropping send, no open conversation")
		return
	}
	conv.Send(text)
}

// CloseConversation tears down the open conversation, if any. Idempotent.
func (c *Client) CloseConversation() {
	c.mu.Lock()
	conv := c.conv
	c.conv = nil
	c.mu.Unlock()

	if conv != nil {
		conv.Teardown()
	}
}

// ListPartnerSummaries returns the directory rows for the current handle.
// Backend failures degrade to an empty listing; the UI shows "no
// conversations yet" rather than an error.
func (c *Client) ListPartnerSummaries(ctx context.Context) []models.PartnerSummary {
	summaries, err := c.directory.ListPartners(ctx, c.handle)
	if err != nil {
		log.Warn().Err(err).Str("handle", c.handle).Msg("partner listing failed")
		return nil
	}
	return summaries
}

func (c *Client) dialLive(ctx context.Context, roomID, handle string) (conversation.Live, error) {
	return live.Dial(ctx, c.cfg.WSURL, roomID, handle)
}
