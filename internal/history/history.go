// Package history fetches the persisted message log for a room from the
// backend. History is read-only and best effort: callers treat any failure
// as an empty snapshot rather than an error dialog.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"tolkuchka/internal/models"
)

type Loader struct {
	baseURL string
	client  *http.Client
}

func NewLoader(baseURL string, client *http.Client) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{baseURL: baseURL, client: client}
}

// Fetch returns the persisted messages for roomID in server order. The
// requesting handle is passed along for server-side access scoping. An empty
// slice with a nil error means the room simply has no history yet.
func (l *Loader) Fetch(ctx context.Context, roomID, handle string) ([]models.Message, error) {
	endpoint := fmt.Sprintf("%s/api/chat/history/%s?user=%s",
		l.baseURL, url.PathEscape(roomID), url.QueryEscape(handle))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("history request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history request: unexpected status %d", resp.StatusCode)
	}

	var messages []models.Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedResponse, err)
	}

	return messages, nil
}
