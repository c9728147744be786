package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"stockinsight/backend-go/internal/config"
	"stockinsight/backend-go/internal/insight"
)

// contentGenerator is the part of the genai client the insight client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient queries Gemini with Google Search grounding and returns the
// reply text together with the grounding citations.
type GeminiClient struct {
	models       contentGenerator
	model        string
	googleSearch bool
	timeout      time.Duration
	retries      int
	backoff      time.Duration
	cb           *circuitBreaker
	log          *zap.Logger
}

// UpstreamError describes a failed model call. Status follows HTTP codes
// when the API reported one and is 0 for transport failures.
type UpstreamError struct {
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("gemini api: %d", e.Status)
	if e.Body != "" {
		msg += " " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) Retryable() bool {
	switch {
	case e.Status == http.StatusTooManyRequests, e.Status == http.StatusRequestTimeout:
		return true
	case e.Status >= 500:
		return true
	case e.Status == 0:
		return !errors.Is(e.Err, context.Canceled)
	}
	return false
}

type circuitBreaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	openedAt  time.Time
	cooldown  time.Duration
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	return &circuitBreaker{threshold: threshold, cooldown: cooldown}
}

func (c *circuitBreaker) allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures < c.threshold {
		return true
	}
	if time.Since(c.openedAt) > c.cooldown {
		c.failures = 0
		c.openedAt = time.Time{}
		return true
	}
	return false
}

func (c *circuitBreaker) success() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
	c.openedAt = time.Time{}
}

func (c *circuitBreaker) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures >= c.threshold {
		c.openedAt = time.Now()
	}
}

// NewGeminiClient takes its credentials from cfg; it never reads the
// environment itself.
func NewGeminiClient(ctx context.Context, cfg config.Config, log *zap.Logger) (*GeminiClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiClient(client.Models, cfg, log), nil
}

func newGeminiClient(models contentGenerator, cfg config.Config, log *zap.Logger) *GeminiClient {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.ModelTimeout
	if timeout <= 0 {
		timeout = cfg.RequestTimeout
	}
	return &GeminiClient{
		models:       models,
		model:        cfg.GeminiModel,
		googleSearch: cfg.GoogleSearch,
		timeout:      timeout,
		retries:      max(cfg.ModelRetries, 0),
		backoff:      300 * time.Millisecond,
		cb:           newCircuitBreaker(cfg.CircuitFailLimit, cfg.CircuitCooldown),
		log:          log.Named("gemini"),
	}
}

func (c *GeminiClient) Model() string {
	return c.model
}

func (c *GeminiClient) GoogleSearchEnabled() bool {
	return c.googleSearch
}

func (c *GeminiClient) Query(ctx context.Context, p insight.Prompt) (insight.RawResponse, error) {
	if !c.cb.allow() {
		return insight.RawResponse{}, &UpstreamError{Status: http.StatusServiceUnavailable, Body: "circuit breaker open"}
	}

	gcfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.System, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.2),
	}
	if p.Grounding && c.googleSearch {
		gcfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	contents := genai.Text(p.User)

	var lastErr *UpstreamError
	for attempt := 0; attempt <= c.retries; attempt++ {
		start := time.Now()
		resp, err := c.generate(ctx, contents, gcfg)
		if err == nil {
			raw, rerr := rawFromResponse(resp)
			if rerr == nil {
				c.cb.success()
				c.log.Debug("generate content",
					zap.String("ticker", p.Ticker),
					zap.Int("attempt", attempt),
					zap.Duration("elapsed", time.Since(start)),
					zap.Int("grounding_sources", len(raw.Citations)))
				return raw, nil
			}
			err = rerr
		}

		lastErr = classifyModelError(err)
		c.log.Warn("generate content failed",
			zap.String("ticker", p.Ticker),
			zap.Int("attempt", attempt),
			zap.Int("status", lastErr.Status),
			zap.Error(err))
		if !lastErr.Retryable() || attempt == c.retries {
			break
		}
		select {
		case <-ctx.Done():
			c.cb.fail()
			return insight.RawResponse{}, &UpstreamError{Err: ctx.Err()}
		case <-time.After(time.Duration(attempt+1) * c.backoff):
		}
	}
	c.cb.fail()
	return insight.RawResponse{}, lastErr
}

func (c *GeminiClient) generate(ctx context.Context, contents []*genai.Content, gcfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.models.GenerateContent(callCtx, c.model, contents, gcfg)
}

func rawFromResponse(resp *genai.GenerateContentResponse) (insight.RawResponse, error) {
	if resp == nil {
		return insight.RawResponse{}, &UpstreamError{Status: http.StatusBadGateway, Body: "nil response"}
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return insight.RawResponse{}, &UpstreamError{Status: http.StatusUnprocessableEntity, Body: "blocked: " + string(fb.BlockReason)}
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return insight.RawResponse{}, &UpstreamError{Status: http.StatusBadGateway, Body: "empty reply"}
	}

	raw := insight.RawResponse{Text: text}
	if len(resp.Candidates) > 0 && resp.Candidates[0].GroundingMetadata != nil {
		for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil {
				continue
			}
			raw.Citations = append(raw.Citations, insight.Citation{Title: chunk.Web.Title, URL: chunk.Web.URI})
		}
	}
	return raw, nil
}

func classifyModelError(err error) *UpstreamError {
	var up *UpstreamError
	if errors.As(err, &up) {
		return up
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{Status: apiErr.Code, Body: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &UpstreamError{Status: apiErrPtr.Code, Body: apiErrPtr.Message, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &UpstreamError{Status: http.StatusGatewayTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &UpstreamError{Status: http.StatusGatewayTimeout, Err: err}
	}
	return &UpstreamError{Err: err}
}

// UnconfiguredClient stands in for GeminiClient when no API key is set so
// the server can still start and report the gap on /health.
type UnconfiguredClient struct{}

func (UnconfiguredClient) Query(context.Context, insight.Prompt) (insight.RawResponse, error) {
	return insight.RawResponse{}, &UpstreamError{Status: http.StatusUnauthorized, Body: "gemini api key not configured"}
}
