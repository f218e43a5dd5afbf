// Package api provides the remote Get笔记 search adapter over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.SearchAPI = (*Client)(nil)

// oauthVersion is the required X-OAuth-Version header value.
const oauthVersion = "1"

// Config holds configuration for the remote search client.
type Config struct {
	// BaseURL is the API root (default: domain.DefaultBaseURL).
	BaseURL string

	// StreamTimeout bounds one streaming search call, connection to
	// last byte (default: 120s).
	StreamTimeout time.Duration

	// RecallTimeout bounds one recall call (default: 60s).
	RecallTimeout time.Duration
}

// Client talks to the Get笔记 open API.
type Client struct {
	stream  *http.Client
	recall  *http.Client
	baseURL string
}

// streamRequest is the /knowledge/search/stream request body. The API
// expects history on every call, as an empty array for a fresh session.
type streamRequest struct {
	Question string           `json:"question"`
	TopicIDs []string         `json:"topic_ids"`
	DeepSeek bool             `json:"deep_seek"`
	Refs     bool             `json:"refs"`
	History  []domain.Message `json:"history"`
}

// recallRequest is the /knowledge/search/recall request body.
type recallRequest struct {
	Question      string           `json:"question"`
	TopicID       string           `json:"topic_id"`
	TopK          int              `json:"top_k"`
	IntentRewrite bool             `json:"intent_rewrite"`
	SelectMatrix  bool             `json:"select_matrix"`
	History       []domain.Message `json:"history,omitempty"`
}

// recallResponse is the enveloped /knowledge/search/recall response.
// A zero h.c means success; anything else carries an error text in h.e.
type recallResponse struct {
	Header struct {
		Code    int    `json:"c"`
		Message string `json:"e"`
	} `json:"h"`
	Content struct {
		Data []recallItem `json:"data"`
	} `json:"c"`
}

// recallItem is one scored hit as the API returns it.
type recallItem struct {
	Title        string  `json:"title"`
	Type         string  `json:"type"`
	Score        float64 `json:"score"`
	RecallSource string  `json:"recall_source"`
	ID           string  `json:"id"`
	Content      string  `json:"content"`
}

// NewClient creates a new remote search client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = domain.DefaultBaseURL
	}
	if cfg.StreamTimeout == 0 {
		cfg.StreamTimeout = domain.DefaultStreamTimeoutSeconds * time.Second
	}
	if cfg.RecallTimeout == 0 {
		cfg.RecallTimeout = domain.DefaultRecallTimeoutSeconds * time.Second
	}

	return &Client{
		stream:  &http.Client{Timeout: cfg.StreamTimeout},
		recall:  &http.Client{Timeout: cfg.RecallTimeout},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}
}

// OpenStream issues a streaming search call and returns the raw
// server-sent event body for the caller to decode and close.
func (c *Client) OpenStream(ctx context.Context, req domain.StreamRequest) (io.ReadCloser, error) {
	history := req.History
	if history == nil {
		history = []domain.Message{}
	}
	body := streamRequest{
		Question: req.Question,
		TopicIDs: []string{req.TopicID},
		DeepSeek: req.DeepThink,
		Refs:     req.Refs,
		History:  history,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/knowledge/search/stream",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	setHeaders(httpReq, req.APIKey)

	resp, err := c.stream.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("search api error (status %d)", resp.StatusCode)
		}
		return nil, fmt.Errorf("search api error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	return resp.Body, nil
}

// Recall issues a raw recall call and returns the scored items in
// upstream order.
func (c *Client) Recall(ctx context.Context, req domain.RecallRequest) ([]domain.RecallItem, error) {
	body := recallRequest{
		Question:      req.Question,
		TopicID:       req.TopicID,
		TopK:          req.TopK,
		IntentRewrite: req.IntentRewrite,
		SelectMatrix:  req.SelectMatrix,
		History:       req.History,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/knowledge/search/recall",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	setHeaders(httpReq, req.APIKey)

	resp, err := c.recall.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recall error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var envelope recallResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if envelope.Header.Code != 0 {
		msg := envelope.Header.Message
		if msg == "" {
			msg = fmt.Sprintf("code %d", envelope.Header.Code)
		}
		return nil, fmt.Errorf("recall rejected: %s", msg)
	}

	items := make([]domain.RecallItem, len(envelope.Content.Data))
	for i, it := range envelope.Content.Data {
		items[i] = domain.RecallItem{
			Title:        it.Title,
			TypeTag:      it.Type,
			Score:        it.Score,
			RecallSource: it.RecallSource,
			NoteID:       it.ID,
			Content:      it.Content,
		}
	}
	return items, nil
}

// setHeaders applies the auth and protocol headers every call carries.
func setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("X-OAuth-Version", oauthVersion)
}
