package claimsigner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sentriwatch/notification-engine/internal/domain"
)

// Client requests signed VAPID authorization headers from an external
// signing service. The engine never holds the private key itself.
type Client struct {
	baseURL     string
	senderEmail string
	httpClient  *http.Client
}

func NewClient(baseURL, senderEmail string) *Client {
	return &Client{
		baseURL:     baseURL,
		senderEmail: senderEmail,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type signRequest struct {
	Audience string `json:"aud"`
	Subject  string `json:"sub"`
	Expiry   int64  `json:"exp"`
}

type signResponse struct {
	Headers map[string]string `json:"headers"`
}

func (c *Client) Sign(ctx context.Context, audience string, expiry time.Time) (map[string]string, error) {
	body, err := json.Marshal(signRequest{
		Audience: audience,
		Subject:  "mailto:" + c.senderEmail,
		Expiry:   expiry.Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sign request: %w", err)
	}

	slog.Debug("requesting claim signature",
		slog.String("audience", audience),
		slog.Time("expiry", expiry),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/claims/sign", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("failed to reach claim signer",
			slog.String("audience", audience),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrSignerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Error("unexpected status code from claim signer",
			slog.String("audience", audience),
			slog.Int("status_code", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: unexpected status code %d", domain.ErrSignerUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read signer response: %w", err)
	}

	var signed signResponse
	if err := json.Unmarshal(data, &signed); err != nil {
		return nil, fmt.Errorf("failed to decode signer response: %w", err)
	}
	if len(signed.Headers) == 0 {
		return nil, fmt.Errorf("%w: empty header set", domain.ErrSignerUnavailable)
	}

	return signed.Headers, nil
}
