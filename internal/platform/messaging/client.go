package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shelfsync/shelfsync-backend/internal/logger"
)

// Client sends outbound messages through the messaging gateway. It
// satisfies the conversation manager's Transport.
type Client struct {
	log        *logger.Logger
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

func NewClient(log *logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := strings.TrimSpace(os.Getenv("MESSAGING_API_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("missing MESSAGING_API_URL")
	}
	apiToken := strings.TrimSpace(os.Getenv("MESSAGING_API_TOKEN"))
	if apiToken == "" {
		return nil, fmt.Errorf("missing MESSAGING_API_TOKEN")
	}
	return &Client{
		log:        log.With("service", "MessagingClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type outboundMessage struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func (c *Client) Deliver(ctx context.Context, user, message string) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(outboundMessage{To: user, Body: message}); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("messaging http %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}
