// Package notify posts plain-text alerts to an ntfy-style endpoint.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Notifier posts alerts to one endpoint. An empty endpoint disables it.
type Notifier struct {
	endpoint string
	client   *http.Client
}

func New(endpoint string, client *http.Client) *Notifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &Notifier{endpoint: endpoint, client: client}
}

// Enabled reports whether alerts are configured.
func (n *Notifier) Enabled() bool { return n.endpoint != "" }

// LoadFailed formats and sends a chart load failure alert.
func (n *Notifier) LoadFailed(ctx context.Context, url string, loadErr error) error {
	if !n.Enabled() {
		return nil
	}
	msg := fmt.Sprintf("chart load failed: %v (url=%s)", loadErr, url)
	return Send(ctx, n.client, n.endpoint, msg)
}

// Send posts a message to the endpoint using HTTP POST.
func Send(ctx context.Context, client *http.Client, endpoint, message string) error {
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
