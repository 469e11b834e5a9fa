package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookPoster delivers gate notices as JSON POSTs to a configured
// endpoint.
type WebhookPoster struct {
	url    string
	client *http.Client
}

func NewWebhookPoster(url string, timeout time.Duration) *WebhookPoster {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookPoster{url: url, client: &http.Client{Timeout: timeout}}
}

func (p *WebhookPoster) PostGateNotice(ctx context.Context, notice GateNotice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
