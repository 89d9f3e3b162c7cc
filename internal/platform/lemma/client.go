package lemma

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

// Client talks to the lemmatization sidecar used to normalize product
// names before keyword search.
type Client interface {
	// Lemmatize returns one lemma list per input text, index-aligned.
	Lemmatize(ctx context.Context, texts []string) ([][]string, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := strings.TrimSpace(os.Getenv("LEMMA_SERVICE_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("missing LEMMA_SERVICE_URL")
	}
	return &client{
		log:        log.With("service", "LemmaClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type lemmatizeRequest struct {
	Texts []string `json:"texts"`
}

type lemmatizeResponse struct {
	Lemmas [][]string `json:"lemmas"`
}

func (c *client) Lemmatize(ctx context.Context, texts []string) ([][]string, error) {
	if len(texts) == 0 {
		return [][]string{}, nil
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(lemmatizeRequest{Texts: texts}); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/lemmatize", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("lemma http %d: %s", resp.StatusCode, string(raw))
	}

	var out lemmatizeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("lemma decode error: %w", err)
	}
	if len(out.Lemmas) != len(texts) {
		return nil, fmt.Errorf("lemma response length mismatch: sent=%d got=%d", len(texts), len(out.Lemmas))
	}
	return out.Lemmas, nil
}
