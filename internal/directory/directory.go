// Package directory builds the conversations list: every partner the user
// has exchanged messages with, each with a preview of the last message.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/c-pro/geche"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"tolkuchka/internal/channel"
	"tolkuchka/internal/models"
)

// Loader is the history collaborator used for previews.
type Loader interface {
	Fetch(ctx context.Context, roomID, handle string) ([]models.Message, error)
}

type Directory struct {
	baseURL string
	client  *http.Client
	loader  Loader

	// previews maps room id -> last message text. Stale entries are fine
	// between refreshes; a cached preview also backfills a partner whose
	// history fetch failed this round.
	previews geche.Geche[string, string]
}

func New(ctx context.Context, baseURL string, client *http.Client, loader Loader, previewTTL time.Duration) *Directory {
	if client == nil {
		client = http.DefaultClient
	}
	return &Directory{
		baseURL:  baseURL,
		client:   client,
		loader:   loader,
		previews: geche.NewMapTTLCache[string, string](ctx, previewTTL, time.Minute),
	}
}

// ListPartners returns one summary per chat partner of handle, in the order
// the backend lists them. Previews are fetched concurrently; one partner's
// failing history fetch costs only that partner's preview, never the whole
// listing.
func (d *Directory) ListPartners(ctx context.Context, handle string) ([]models.PartnerSummary, error) {
	if handle == "" {
		return nil, models.ErrInvalidHandle
	}

	partners, err := d.fetchPartners(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("partner list: %w", err)
	}

	summaries := make([]models.PartnerSummary, len(partners))

	// Each worker writes only its own index, so the slice assembly needs no
	// lock; Wait is the single join point.
	g, gCtx := errgroup.WithContext(ctx)
	for i, p := range partners {
		g.Go(func() error {
			summaries[i] = d.summarize(gCtx, handle, p)
			return nil
		})
	}
	_ = g.Wait()

	return summaries, nil
}

func (d *Directory) fetchPartners(ctx context.Context, handle string) ([]models.Partner, error) {
	endpoint := fmt.Sprintf("%s/api/public/chat-partners?user=%s",
		d.baseURL, url.QueryEscape(handle))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var partners []models.Partner
	if err := json.NewDecoder(resp.Body).Decode(&partners); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedResponse, err)
	}

	return partners, nil
}

func (d *Directory) summarize(ctx context.Context, handle string, p models.Partner) models.PartnerSummary {
	summary := models.PartnerSummary{
		Handle:    p.Username,
		AvatarURL: p.Avatar,
	}

	roomID, err := channel.ID(handle, p.Username)
	if err != nil {
		return summary
	}

	messages, err := d.loader.Fetch(ctx, roomID, handle)
	if err != nil {
		log.Warn().Err(err).Str("partner", p.Username).Msg("preview fetch failed")
		if cached, cerr := d.previews.Get(roomID); cerr == nil {
			summary.LastMessage = cached
		}
		return summary
	}

	if len(messages) == 0 {
		return summary
	}

	summary.LastMessage = messages[len(messages)-1].Text
	d.previews.Set(roomID, summary.LastMessage)
	return summary
}
