package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// AlertType is the upstream classification of an active alert.
type AlertType string

const (
	TypeAirRaid   AlertType = "air_raid"
	TypeChemical  AlertType = "chemical"
	TypeRadiation AlertType = "radiation"
	TypeOther     AlertType = "other"
)

// Alert is one entry of the upstream active-alerts feed. Produced fresh on
// every poll, never mutated, never persisted.
type Alert struct {
	Oblast     string    `json:"location_oblast"`
	Title      string    `json:"location_title"`
	Type       AlertType `json:"alert_type"`
	FinishedAt *string   `json:"finished_at"`
}

// Active reports whether the alert is still in progress. The feed keeps
// recently finished alerts in the list with finished_at set.
func (a Alert) Active() bool {
	return a.FinishedAt == nil
}

// ErrFeedUnavailable covers every way a poll can fail: transport error,
// timeout, non-2xx status, undecodable body. Callers must not treat it as
// "zero alerts" — that distinction is what prevents spurious all-clear
// notifications during feed outages.
var ErrFeedUnavailable = errors.New("alert feed unavailable")

type envelope struct {
	Alerts []Alert `json:"alerts"`
}

// Client fetches the current set of active alerts. It holds no state beyond
// the HTTP client, so a single instance is shared by the poller and the
// ad-hoc query handlers.
type Client struct {
	feedURL string
	token   string
	client  *http.Client
}

func NewClient(feedURL, token string) *Client {
	return &Client{
		feedURL: feedURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch returns the alerts currently reported by the feed. The request
// carries a cache-buster query parameter because the feed sits behind a CDN
// and is polled far more often than the CDN's TTL.
func (c *Client) Fetch(ctx context.Context) ([]Alert, error) {
	u, err := url.Parse(c.feedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: bad feed URL %q: %v", ErrFeedUnavailable, c.feedURL, err)
	}
	q := u.Query()
	q.Set("t", fmt.Sprintf("%d", time.Now().UnixNano()))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: feed returned status %d", ErrFeedUnavailable, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: malformed feed body: %v", ErrFeedUnavailable, err)
	}
	return env.Alerts, nil
}
