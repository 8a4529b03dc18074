package memos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elacava/principia/internal/observability"
)

// Message is one role-tagged exchange entry submitted for ingestion.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Gateway is the surface the orchestrator consumes. Search never fails:
// memory is an enhancement, so transport and service errors degrade to an
// empty digest instead of breaking the turn.
type Gateway interface {
	Search(ctx context.Context, namespaceID, conversationID, query string) string
	Write(ctx context.Context, namespaceID, conversationID string, messages []Message) error
}

// ClientConfig controls construction of the HTTP client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Rank    RankOptions
}

// Client talks to the long-term memory service over its REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	rank    RankOptions
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewClient(cfg ClientConfig, logger *slog.Logger, metrics *observability.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		rank:    cfg.Rank,
		logger:  logger.With("component", "memos"),
		metrics: metrics,
	}
}

type searchRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}

type searchEnvelope struct {
	Data SearchResult `json:"data"`
}

// Search queries the memory service and condenses the result into a digest.
// Any failure is reported as a warning and yields the empty digest.
func (c *Client) Search(ctx context.Context, namespaceID, conversationID, query string) string {
	raw, err := c.searchRaw(ctx, namespaceID, conversationID, query)
	if err != nil {
		c.logger.Warn("memory search degraded to empty digest", "error", err)
		c.metrics.IncProviderError("memos", "search_failed")
		return ""
	}
	return Rank(raw, c.rank)
}

func (c *Client) searchRaw(ctx context.Context, namespaceID, conversationID, query string) (SearchResult, error) {
	body, err := c.post(ctx, "/api/v1/memories/search", searchRequest{
		UserID:         namespaceID,
		ConversationID: conversationID,
		Query:          query,
	})
	if err != nil {
		return SearchResult{}, err
	}

	var envelope searchEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return SearchResult{}, fmt.Errorf("decode search response: %w", err)
	}
	return envelope.Data, nil
}

type writeRequest struct {
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	Messages       []Message `json:"messages"`
}

// Write submits a completed exchange for ingestion. Callers run this off the
// request path; an error here only degrades future personalization.
func (c *Client) Write(ctx context.Context, namespaceID, conversationID string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	if _, err := c.post(ctx, "/api/v1/memories/messages", writeRequest{
		UserID:         namespaceID,
		ConversationID: conversationID,
		Messages:       messages,
	}); err != nil {
		c.metrics.IncProviderError("memos", "write_failed")
		return err
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("memos status %s: %s", strconv.Itoa(res.StatusCode), string(snippet))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
