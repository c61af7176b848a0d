// internal/adapters/vision/client.go
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"solar_leads/internal/adapters/observability"
	"solar_leads/internal/domain"
)

const service = "vision"

// Models we have verified accept image_url content parts, and the order we
// fall back through when a requested model is not on the list.
var usableModels = map[string]bool{
	"gpt-4o":       true,
	"gpt-4o-mini":  true,
	"gpt-4-turbo":  true,
	"gpt-4.1":      true,
	"gpt-4.1-mini": true,
}

var preferredModels = []string{"gpt-4o-mini", "gpt-4o", "gpt-4-turbo"}

const systemPrompt = `You are an aerial-imagery analyst. Look at the satellite photo of a single
residential property and judge whether its outdoor space (yard, roof area,
lot) is already developed (pool, solar panels, landscaping, structures) or
still vacant/underutilized. Respond with STRICT JSON only, no prose:
{"status": "developed" | "partially_developed" | "undeveloped" | "uncertain",
 "confidence": <number between 0 and 1>,
 "notes": "<one short sentence>"}`

type Options struct {
	APIKey           string
	BaseURL          string
	DefaultModel     string
	DefaultThreshold float64
	Timeout          time.Duration
	Cache            domain.Cache // nil disables caching
	CacheTTL         time.Duration
}

// Client classifies satellite images through an OpenAI-compatible
// chat-completions endpoint. It never returns errors: a missing key, a
// transport failure or unparseable model output all degrade to an uncertain
// result with a diagnostic note, so one flaky call cannot abort a batch.
type Client struct {
	key       string
	base      string
	model     string
	threshold float64
	cache     domain.Cache
	cacheTTL  time.Duration
	hc        *http.Client
}

func New(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = "https://api.openai.com/v1"
	}
	if o.DefaultModel == "" {
		o.DefaultModel = preferredModels[0]
	}
	if o.DefaultThreshold <= 0 {
		o.DefaultThreshold = 0.4
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	return &Client{
		key:       o.APIKey,
		base:      strings.TrimRight(o.BaseURL, "/"),
		model:     o.DefaultModel,
		threshold: o.DefaultThreshold,
		cache:     o.Cache,
		cacheTTL:  o.CacheTTL,
		hc:        &http.Client{Timeout: o.Timeout},
	}
}

func (c *Client) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

// Classify returns the cached result for imageURL when one is fresh,
// otherwise asks the vision model and caches what it said. model == "" and
// threshold < 0 select the configured defaults.
func (c *Client) Classify(ctx context.Context, imageURL string, hint *domain.Coordinates, model string, threshold float64) domain.ClassificationResult {
	if model == "" {
		model = c.model
	}
	if threshold < 0 {
		threshold = c.threshold
	}
	model = c.resolveModel(model)

	if c.cache != nil {
		var cached domain.ClassificationResult
		if ok, err := c.cache.Get(ctx, cacheKey(imageURL), &cached); err == nil && ok {
			return cached
		}
	}

	if c.key == "" {
		return c.degraded(model, "vision API key not configured", "no_credentials")
	}

	res, err := c.callModel(ctx, imageURL, hint, model)
	if err != nil {
		return c.degraded(model, err.Error(), "upstream")
	}

	if res.Confidence != nil && *res.Confidence < threshold {
		res.Status = domain.StatusUncertain
	}
	res.Model = model

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey(imageURL), res, c.cacheTTL); err != nil {
			log.Warn().Err(err).Msg("vision cache write failed")
		}
	}
	return res
}

func (c *Client) resolveModel(requested string) string {
	if usableModels[requested] {
		return requested
	}
	for _, m := range preferredModels {
		if usableModels[m] {
			log.Info().Str("requested", requested).Str("substituted", m).Msg("vision model substituted")
			observability.ObserveSubstitution(requested, m)
			return m
		}
	}
	return requested
}

func (c *Client) callModel(ctx context.Context, imageURL string, hint *domain.Coordinates, model string) (domain.ClassificationResult, error) {
	userText := "Classify the outdoor space in this satellite image."
	if hint != nil {
		userText = fmt.Sprintf("%s The image is centered on lat=%.6f, lng=%.6f.", userText, hint.Lat, hint.Lng)
	}

	body, err := json.Marshal(map[string]any{
		"model": model,
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": userText},
				{"type": "image_url", "image_url": map[string]any{"url": imageURL}},
			}},
		},
		"max_tokens": 200,
	})
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("marshal vision payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return domain.ClassificationResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal(service, "chat_completions", 0, time.Since(start))
		return domain.ClassificationResult{}, fmt.Errorf("vision request: %w", err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal(service, "chat_completions", resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.ClassificationResult{}, fmt.Errorf("vision API status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("decode vision response: %w", err)
	}
	if len(out.Choices) == 0 {
		return domain.ClassificationResult{}, fmt.Errorf("vision response had no choices")
	}
	return parseVerdict(out.Choices[0].Message.Content)
}

// parseVerdict extracts the strict-JSON verdict, tolerating models that wrap
// it in a markdown code fence despite instructions.
func parseVerdict(content string) (domain.ClassificationResult, error) {
	var verdict struct {
		Status     string   `json:"status"`
		Confidence *float64 `json:"confidence"`
		Notes      *string  `json:"notes"`
	}
	payload := strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(payload), &verdict); err != nil {
		extracted, ok := extractJSON(payload)
		if !ok {
			return domain.ClassificationResult{}, fmt.Errorf("model output is not JSON: %.120s", payload)
		}
		if err := json.Unmarshal([]byte(extracted), &verdict); err != nil {
			return domain.ClassificationResult{}, fmt.Errorf("model output JSON malformed: %w", err)
		}
	}

	res := domain.ClassificationResult{
		Status:     domain.ParseClassificationStatus(verdict.Status),
		Confidence: verdict.Confidence,
		Notes:      verdict.Notes,
	}
	if res.Confidence != nil && (*res.Confidence < 0 || *res.Confidence > 1) {
		res.Confidence = nil
	}
	return res, nil
}

// extractJSON finds the first {...} block, skipping markdown fences.
func extractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func (c *Client) degraded(model, note, reason string) domain.ClassificationResult {
	log.Warn().Str("reason", reason).Str("note", note).Msg("vision classification degraded to uncertain")
	observability.ObserveDegraded(reason)
	return domain.ClassificationResult{
		Status:     domain.StatusUncertain,
		Confidence: nil,
		Model:      model,
		Notes:      &note,
	}
}

func cacheKey(imageURL string) string { return "vision:" + imageURL }
