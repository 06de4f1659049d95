package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client resolves tokens against a remote identity service.
type Client struct {
	BaseURL    string
	HTTP       *http.Client
	membership Membership
}

// NewClient creates a client with a short timeout; identity lookups sit on
// the check-in path.
func NewClient(baseURL string, m Membership) *Client {
	return &Client{
		BaseURL:    baseURL,
		membership: m,
		HTTP: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Resolve posts the token to /v1/identities/resolve.
func (c *Client) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}

	body, _ := json.Marshal(map[string]string{"token": token})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/identities/resolve", bytes.NewReader(body))
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("identity service request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusBadRequest:
		return Identity{}, ErrInvalidToken
	case resp.StatusCode >= 300:
		bodyBytes, _ := io.ReadAll(resp.Body)
		return Identity{}, fmt.Errorf("identity service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		UID         string `json:"uid"`
		DisplayName string `json:"display_name"`
		Email       string `json:"email"`
		PhotoURL    string `json:"photo_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Identity{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.UID == "" {
		return Identity{}, ErrInvalidToken
	}
	return c.membership.identity(out.UID, out.DisplayName, out.Email, out.PhotoURL), nil
}

// Health checks if the identity service is available.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("identity service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("identity service unhealthy: %s", resp.Status)
	}
	return nil
}
