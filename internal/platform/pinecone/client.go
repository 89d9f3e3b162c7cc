package pinecone

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

// Client is the raw Pinecone data-plane API.
type Client interface {
	DescribeIndex(ctx context.Context, name string) (IndexDescription, error)
	UpsertVectors(ctx context.Context, indexHost string, req UpsertRequest) (UpsertResponse, error)
	Query(ctx context.Context, indexHost string, req QueryRequest) (QueryResponse, error)
	DeleteVectors(ctx context.Context, indexHost string, req DeleteRequest) (DeleteResponse, error)
}

type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type IndexDescription struct {
	Name string `json:"name"`
	Host string `json:"host"`
}

type UpsertRequest struct {
	Namespace string   `json:"namespace,omitempty"`
	Vectors   []Vector `json:"vectors"`
}

type UpsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

type QueryRequest struct {
	Namespace       string         `json:"namespace,omitempty"`
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	Filter          map[string]any `json:"filter,omitempty"`
	IncludeValues   bool           `json:"includeValues"`
	IncludeMetadata bool           `json:"includeMetadata"`
}

type QueryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata,omitempty"`
	} `json:"matches"`
}

type DeleteRequest struct {
	Namespace string   `json:"namespace,omitempty"`
	IDs       []string `json:"ids,omitempty"`
	DeleteAll bool     `json:"deleteAll,omitempty"`
}

type DeleteResponse struct{}

type client struct {
	log        *logger.Logger
	apiKey     string
	controlURL string
	httpClient *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("PINECONE_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing PINECONE_API_KEY")
	}
	controlURL := strings.TrimSpace(os.Getenv("PINECONE_CONTROL_URL"))
	if controlURL == "" {
		controlURL = "https://api.pinecone.io"
	}
	return &client{
		log:        log.With("service", "PineconeClient"),
		apiKey:     apiKey,
		controlURL: strings.TrimRight(controlURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (c *client) do(ctx context.Context, method, url string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Api-Key", c.apiKey)
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
		return fmt.Errorf("pinecone http %d: %s", resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("pinecone decode error: %w; raw=%s", err, string(raw))
	}
	return nil
}

func hostURL(indexHost, path string) string {
	host := strings.TrimRight(strings.TrimSpace(indexHost), "/")
	if !strings.HasPrefix(host, "http") {
		host = "https://" + host
	}
	return host + path
}

func (c *client) DescribeIndex(ctx context.Context, name string) (IndexDescription, error) {
	var out IndexDescription
	if strings.TrimSpace(name) == "" {
		return out, fmt.Errorf("index name required")
	}
	err := c.do(ctx, "GET", c.controlURL+"/indexes/"+name, nil, &out)
	return out, err
}

func (c *client) UpsertVectors(ctx context.Context, indexHost string, req UpsertRequest) (UpsertResponse, error) {
	var out UpsertResponse
	if len(req.Vectors) == 0 {
		return out, nil
	}
	err := c.do(ctx, "POST", hostURL(indexHost, "/vectors/upsert"), req, &out)
	return out, err
}

func (c *client) Query(ctx context.Context, indexHost string, req QueryRequest) (QueryResponse, error) {
	var out QueryResponse
	err := c.do(ctx, "POST", hostURL(indexHost, "/query"), req, &out)
	return out, err
}

func (c *client) DeleteVectors(ctx context.Context, indexHost string, req DeleteRequest) (DeleteResponse, error) {
	var out DeleteResponse
	if len(req.IDs) == 0 && !req.DeleteAll {
		return out, nil
	}
	err := c.do(ctx, "POST", hostURL(indexHost, "/vectors/delete"), req, &out)
	return out, err
}
