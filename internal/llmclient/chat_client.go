// internal/llmclient/chat_client.go
package llmclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
	"github.com/xkilldash9x/webpilot/internal/metrics"
	"github.com/xkilldash9x/webpilot/internal/network"
)

const (
	defaultTemperature = 0.2
	defaultMaxTokens   = 600
	maxErrorBody       = 2048
)

// ChatClient implements schemas.LLMClient against chat-completion style HTTP
// APIs (OpenAI-compatible servers and Ollama).
type ChatClient struct {
	endpoint    string
	apiKey      string
	model       string
	httpClient  *http.Client
	limiter     *rate.Limiter
	timer       backoff.Timer
	metrics     *metrics.Recorder
	logger      *zap.Logger
	maxAttempts int
	backoffStep time.Duration
	maxBackoff  time.Duration
	now         func() time.Time
}

// chatPayload is the request body sent on every attempt.
type chatPayload struct {
	Model       string                `json:"model"`
	Messages    []schemas.ChatMessage `json:"messages"`
	Temperature float64               `json:"temperature"`
	MaxTokens   int                   `json:"max_tokens"`
}

// Option configures a ChatClient.
type Option func(*ChatClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *ChatClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimer sets the timer used between retries. Tests use it to avoid sleeping.
func WithTimer(t backoff.Timer) Option {
	return func(c *ChatClient) { c.timer = t }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *ChatClient) { c.metrics = m }
}

// NewChatClient initializes a client bound to a single model.
func NewChatClient(cfg config.LLMConfig, model string, logger *zap.Logger, opts ...Option) (*ChatClient, error) {
	endpoint := NormalizeEndpoint(cfg.BaseURL)
	if RequiresCredential(endpoint) && cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingCredential, endpoint)
	}
	if model == "" {
		model = cfg.Model
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	c := &ChatClient{
		endpoint:    endpoint,
		apiKey:      cfg.APIKey,
		model:       model,
		httpClient:  newHTTPClient(cfg, logger),
		logger:      logger.Named("llm_client").With(zap.String("model", model)),
		maxAttempts: maxAttempts,
		backoffStep: cfg.BackoffStep,
		maxBackoff:  cfg.MaxBackoff,
		now:         time.Now,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func newHTTPClient(cfg config.LLMConfig, logger *zap.Logger) *http.Client {
	netCfg := network.NewDefaultClientConfig()
	netCfg.RequestTimeout = cfg.Timeout
	if cfg.Timeout > 0 {
		netCfg.ResponseHeaderTimeout = cfg.Timeout
	}
	netCfg.IgnoreTLSErrors = cfg.IgnoreTLSErrors
	netCfg.Logger = logger
	return network.NewClient(netCfg)
}

// Endpoint returns the normalized completion endpoint.
func (c *ChatClient) Endpoint() string { return c.endpoint }

// Model returns the model name sent with every request.
func (c *ChatClient) Model() string { return c.model }

// Generate sends the conversation and returns the generated text, retrying
// rate limiting, unavailability and transport failures.
func (c *ChatClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	body, err := json.Marshal(c.buildRequestPayload(req))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	schedule := newLinearBackOff(c.backoffStep, c.maxBackoff)
	policy := backoff.WithContext(backoff.WithMaxRetries(schedule, uint64(c.maxAttempts-1)), ctx)

	var (
		content string
		attempt int
	)
	operation := func() error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return backoff.Permanent(ctxErr)
			}
			return &ServiceError{Attempts: attempt, Err: err}
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return &ServiceError{Attempts: attempt, Err: fmt.Errorf("failed to read response body: %w", err)}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			svcErr := &ServiceError{
				StatusCode: resp.StatusCode,
				Body:       truncate(string(respBody), maxErrorBody),
				Attempts:   attempt,
			}
			if !isRetryableStatus(resp.StatusCode) {
				return backoff.Permanent(svcErr)
			}
			schedule.honor(parseRetryAfter(resp.Header.Get("Retry-After"), c.now()))
			return svcErr
		}

		content = ParseCompletionText(respBody)
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.metrics.ReasoningRetry()
		c.logger.Warn("Reasoning request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	start := c.now()
	err = backoff.RetryNotifyWithTimer(operation, policy, notify, c.timer)
	elapsed := c.now().Sub(start)
	c.metrics.ReasoningRequest(err == nil, elapsed)

	if err != nil {
		var svcErr *ServiceError
		if errors.As(err, &svcErr) {
			svcErr.Attempts = attempt
		}
		c.logger.Error("Reasoning request failed", zap.Int("attempts", attempt), zap.Error(err))
		return "", err
	}

	c.logger.Debug("Reasoning request complete",
		zap.Duration("duration", elapsed),
		zap.Int("attempts", attempt),
		zap.Int("chars", len(content)))
	return content, nil
}

// Close releases idle connections.
func (c *ChatClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *ChatClient) buildRequestPayload(req schemas.GenerationRequest) chatPayload {
	temperature := req.Options.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	maxTokens := req.Options.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	return chatPayload{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
