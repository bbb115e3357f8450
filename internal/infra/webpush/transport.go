package webpush

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Transport posts encrypted push payloads to browser push service
// endpoints. The status code is returned to the caller, which decides how
// to react; this layer only moves bytes.
type Transport struct {
	httpClient *http.Client
}

func NewTransport() *Transport {
	return &Transport{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (t *Transport) Send(ctx context.Context, endpoint string, headers map[string]string, ttl int, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create push request: %w", err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("TTL", strconv.Itoa(ttl))

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send push request: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
