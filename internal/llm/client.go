package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"affidamento/internal"
	"affidamento/internal/config"
	"affidamento/internal/logger"
	"affidamento/internal/reconcile"
)

// Client talks to an Ollama server through /api/generate.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
	log        *logger.Logger
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Format  string          `json:"format,omitempty"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

func NewClient(cfg config.Config, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.OllamaTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.OllamaRateLimitRPS),
		log:        log,
	}
}

// ExtractQuote asks the model for the structured fields of a quote text.
// Every failure is reported as reconcile.ErrExtractionUnavailable.
func (c *Client) ExtractQuote(ctx context.Context, text string) (internal.ExtractedQuote, error) {
	if strings.TrimSpace(text) == "" {
		return internal.ExtractedQuote{}, fmt.Errorf("%w: empty text", reconcile.ErrExtractionUnavailable)
	}

	start := time.Now()
	generated, err := c.Generate(ctx, BuildPrompt(text))
	if err != nil {
		return internal.ExtractedQuote{}, fmt.Errorf("%w: %v", reconcile.ErrExtractionUnavailable, err)
	}

	quote, err := ParseQuoteJSON(generated)
	if err != nil {
		c.log.Warn("model returned invalid json", "model", c.cfg.OllamaModel, "chars", len(generated))
		return internal.ExtractedQuote{}, fmt.Errorf("%w: %v", reconcile.ErrExtractionUnavailable, err)
	}
	c.log.Info("quote fields extracted",
		"model", c.cfg.OllamaModel,
		"items", len(quote.Items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return quote, nil
}

// Generate returns the raw response text of a non-streaming JSON generation.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:  c.cfg.OllamaModel,
		Prompt: prompt,
		Stream: false,
		Format: "json",
		Options: generateOptions{
			Temperature: c.cfg.OllamaTemperature,
			TopP:        c.cfg.OllamaTopP,
		},
	})
	if err != nil {
		return "", err
	}
	endpoint := strings.TrimRight(c.cfg.OllamaURL, "/") + "/api/generate"

	maxAttempts := c.cfg.OllamaMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = fmt.Errorf("ollama unreachable at %s: %w", c.cfg.OllamaURL, err)
			c.log.Warn("ollama request failed", "attempt", attempt, "error", err)
			if attempt < maxAttempts {
				if err := sleepContext(ctx, backoffFor(attempt)); err != nil {
					return "", err
				}
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			if attempt < maxAttempts {
				if err := sleepContext(ctx, backoffFor(attempt)); err != nil {
					return "", err
				}
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
				backoff := backoffFor(attempt)
				c.log.Warn("ollama retry", "attempt", attempt, "status", resp.StatusCode, "backoff_ms", backoff.Milliseconds())
				if err := sleepContext(ctx, backoff); err != nil {
					return "", err
				}
				lastErr = fmt.Errorf("ollama status %d", resp.StatusCode)
				continue
			}
			return "", fmt.Errorf("ollama api error: status=%d body=%s", resp.StatusCode, truncate(string(body), 300))
		}

		var out generateResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return "", fmt.Errorf("decode ollama response: %w", err)
		}
		if out.Error != "" {
			return "", fmt.Errorf("ollama: %s", out.Error)
		}
		return out.Response, nil
	}

	if lastErr == nil {
		lastErr = errors.New("ollama request failed")
	}
	return "", lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// backoffFor is 250ms doubled per attempt plus up to 100ms of jitter.
func backoffFor(attempt int) time.Duration {
	return time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
