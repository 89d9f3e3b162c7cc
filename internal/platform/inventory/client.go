// Package inventory talks to the store's inventory system API. One client
// covers the three touchpoints the pipeline has with that system: reading
// the catalog, writing stock updates, and requesting the export sheet.
package inventory

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

	"github.com/shelfsync/shelfsync-backend/internal/catalog"
	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/types"
	"github.com/shelfsync/shelfsync-backend/internal/workers"
)

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
	baseURL := strings.TrimSpace(os.Getenv("INVENTORY_API_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("missing INVENTORY_API_URL")
	}
	apiToken := strings.TrimSpace(os.Getenv("INVENTORY_API_TOKEN"))
	return &Client{
		log:        log.With("service", "InventoryClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
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
		return fmt.Errorf("inventory http %d: %s", resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("inventory decode error: %w", err)
	}
	return nil
}

type catalogEntry struct {
	ProductID         string `json:"product_id"`
	Name              string `json:"name"`
	Unit              string `json:"unit"`
	UPCCode           string `json:"upc_code"`
	ProductExternalID string `json:"product_external_id"`
}

// FetchCatalog implements catalog.Source. The store's System field selects
// the tenant on the inventory API.
func (c *Client) FetchCatalog(ctx context.Context, store *types.Store) ([]catalog.SourceItem, error) {
	var resp struct {
		Items []catalogEntry `json:"items"`
	}
	if err := c.do(ctx, "GET", "/systems/"+store.System+"/stores/"+store.StoreID+"/catalog", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]catalog.SourceItem, 0, len(resp.Items))
	for _, e := range resp.Items {
		out = append(out, catalog.SourceItem{
			ProductID:     e.ProductID,
			Name:          e.Name,
			Unit:          e.Unit,
			BarcodeFields: []string{e.UPCCode, e.ProductExternalID},
		})
	}
	return out, nil
}

// ApplyStockUpdates implements workers.Applier.
func (c *Client) ApplyStockUpdates(ctx context.Context, store *types.Store, updates []workers.StockUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return c.do(ctx, "POST", "/systems/"+store.System+"/stores/"+store.StoreID+"/stock-updates", map[string]any{
		"updates": updates,
	}, nil)
}

// Export implements workers.Exporter.
func (c *Client) Export(ctx context.Context, store *types.Store, doc *types.InventoryDocument) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, "POST", "/systems/"+store.System+"/stores/"+store.StoreID+"/exports", doc, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("inventory export returned no url")
	}
	return resp.URL, nil
}
