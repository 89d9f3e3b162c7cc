package ocr

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
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

// Client calls the OCR sidecar to turn a scanned invoice into structured
// rows. It satisfies workers.Extractor.
type Client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

func NewClient(log *logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := strings.TrimSpace(os.Getenv("OCR_SERVICE_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("missing OCR_SERVICE_URL")
	}
	timeoutSec := 300
	return &Client{
		log:        log.With("service", "OCRClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}, nil
}

type extractRequest struct {
	FileID   string `json:"file_id,omitempty"`
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
}

func (c *Client) Extract(ctx context.Context, scan *types.Scan) (*types.InventoryDocument, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(extractRequest{
		FileID:   scan.FileID,
		URL:      scan.URL,
		Filename: scan.Filename,
	}); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/extract", &buf)
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
		return nil, fmt.Errorf("ocr http %d: %s", resp.StatusCode, string(raw))
	}

	var doc types.InventoryDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("ocr decode error: %w", err)
	}
	return &doc, nil
}
