package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Info is a relay information document (NIP-11).
type Info struct {
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	PubKey        string      `json:"pubkey"`
	Contact       string      `json:"contact"`
	Software      string      `json:"software"`
	Version       string      `json:"version"`
	SupportedNIPs []int       `json:"supported_nips"`
	Limitation    *Limitation `json:"limitation,omitempty"`
}

// Limitation lists the limits a relay enforces on clients.
type Limitation struct {
	MaxMessageLength int  `json:"max_message_length"`
	MaxSubscriptions int  `json:"max_subscriptions"`
	MaxFilters       int  `json:"max_filters"`
	MaxLimit         int  `json:"max_limit"`
	MinPowDifficulty int  `json:"min_pow_difficulty"`
	AuthRequired     bool `json:"auth_required"`
	PaymentRequired  bool `json:"payment_required"`
}

// MinPowDifficulty returns the proof-of-work difficulty the relay requires
// for published events, or 0.
func (i *Info) MinPowDifficulty() int {
	if i.Limitation == nil {
		return 0
	}
	return i.Limitation.MinPowDifficulty
}

// InfoClient fetches relay information documents.
type InfoClient struct {
	httpClient *http.Client
}

// NewInfoClient creates a new relay information client.
func NewInfoClient() *InfoClient {
	return &InfoClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Fetch retrieves the information document of the relay at relayURL, which
// may be given in its ws(s):// or http(s):// form.
func (c *InfoClient) Fetch(ctx context.Context, relayURL string) (*Info, error) {
	endpoint, err := httpURL(relayURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/nostr+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("relay error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var info Info
	if err := json.Unmarshal(respBody, &info); err != nil {
		return nil, fmt.Errorf("unmarshal relay info: %w", err)
	}
	return &info, nil
}

func httpURL(relayURL string) (string, error) {
	u, err := url.Parse(relayURL)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported relay url scheme %q", u.Scheme)
	}
	return u.String(), nil
}
