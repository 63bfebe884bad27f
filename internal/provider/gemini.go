package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ecommerce-api/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

const (
	geminiMaxRetries = 3
	geminiInitDelay  = 500 * time.Millisecond
	geminiTimeout    = 30 * time.Second
)

// GeminiClient ranks candidate products against a free-text shopping request.
type GeminiClient struct {
	model  string
	client *genai.Client
	err    error
}

// candidate is the compact product view sent to the model
type candidate struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Ratings     decimal.Decimal `json:"ratings"`
	Stock       int             `json:"stock"`
}

// GeminiOption adjusts the client before it is built
type GeminiOption func(cfg *genai.ClientConfig, rt *retryTransport)

// WithGeminiBaseURL points the client at another endpoint
func WithGeminiBaseURL(url string) GeminiOption {
	return func(cfg *genai.ClientConfig, rt *retryTransport) {
		cfg.HTTPOptions.BaseURL = url
	}
}

// WithGeminiBackoff sets the first retry delay
func WithGeminiBackoff(d time.Duration) GeminiOption {
	return func(cfg *genai.ClientConfig, rt *retryTransport) {
		rt.initDelay = d
	}
}

// NewGeminiClient creates a Gemini client. A client that could not be built,
// for example without an api key, fails every Rank call so callers fall back.
func NewGeminiClient(ctx context.Context, apiKey, model string, opts ...GeminiOption) *GeminiClient {
	c := &GeminiClient{model: model}
	if apiKey == "" {
		c.err = errors.New("GEMINI_API not set")
		return c
	}

	rt := &retryTransport{
		next:       http.DefaultTransport,
		maxRetries: geminiMaxRetries,
		initDelay:  geminiInitDelay,
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: geminiTimeout, Transport: rt},
	}
	for _, opt := range opts {
		opt(cfg, rt)
	}

	c.client, c.err = genai.NewClient(ctx, cfg)
	return c
}

// Rank asks the model which of products match prompt and returns them in the
// model's order. Ids the model invents are dropped.
func (c *GeminiClient) Rank(ctx context.Context, prompt string, products []models.Product) ([]models.Product, error) {
	if c.err != nil {
		return nil, c.err
	}

	text, err := c.generate(ctx, buildRankPrompt(prompt, products))
	if err != nil {
		return nil, err
	}

	ids, err := parseRankedIDs(text)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	ranked := make([]models.Product, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok && !seen[id] {
			ranked = append(ranked, p)
			seen[id] = true
		}
	}
	return ranked, nil
}

func (c *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	temperature := float32(0)
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("AI response is empty or invalid")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

// retryTransport resends requests answered with 429 or a 5xx, doubling the
// delay each time. Requests without a replayable body are sent once.
type retryTransport struct {
	next       http.RoundTripper
	maxRetries int
	initDelay  time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	delay := t.initDelay
	for attempt := 1; ; attempt++ {
		resp, err := t.next.RoundTrip(req)
		retryable := err != nil ||
			resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		if !retryable || attempt >= t.maxRetries || (req.Body != nil && req.GetBody == nil) {
			return resp, err
		}
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		select {
		case <-time.After(delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
		delay *= 2

		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req = req.Clone(req.Context())
			req.Body = body
		}
	}
}

func buildRankPrompt(prompt string, products []models.Product) string {
	candidates := make([]candidate, len(products))
	for i, p := range products {
		candidates[i] = candidate{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Category:    p.Category,
			Price:       p.Price,
			Ratings:     p.Ratings,
			Stock:       p.Stock,
		}
	}
	list, _ := json.MarshalIndent(candidates, "", "  ")

	var b strings.Builder
	b.WriteString("Here is a list of available products:\n")
	b.Write(list)
	fmt.Fprintf(&b, "\n\nBased on the following user request, pick the best matching products:\n%q\n\n", prompt)
	b.WriteString("Return ONLY a JSON array of the matching product ids, best match first, for example:\n")
	b.WriteString(`["3f0c8a52-6f1e-4a8e-9a57-1c2d3e4f5a6b"]`)
	b.WriteString("\n")
	return b.String()
}

// parseRankedIDs extracts the id array from a model reply, handling markdown code fences.
func parseRankedIDs(text string) ([]uuid.UUID, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx >= 0 {
			cleaned = cleaned[idx+1:]
		}
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}
	if cleaned == "" {
		return nil, errors.New("AI response is empty or invalid")
	}

	var raw []string
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if id, err := uuid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
