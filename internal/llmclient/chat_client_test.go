package llmclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/metrics"
)

// -- Test Setup Helpers --

// setupChatClient points a ChatClient at a mock HTTP server and swaps in a
// timer that never sleeps.
func setupChatClient(t *testing.T, handler http.HandlerFunc) (*ChatClient, *instantTimer, *observer.ObservedLogs) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	loggerCore, observedLogs := observer.New(zap.InfoLevel)
	timer := &instantTimer{}

	cfg := getValidLLMConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = "test-key"

	client, err := NewChatClient(cfg, "", zap.New(loggerCore), WithHTTPClient(server.Client()), WithTimer(timer))
	require.NoError(t, err)
	return client, timer, observedLogs
}

func createTestRequest() schemas.GenerationRequest {
	return schemas.GenerationRequest{
		Messages: []schemas.ChatMessage{
			{Role: schemas.RoleSystem, Content: "System prompt instructions."},
			{Role: schemas.RoleUser, Content: "User query."},
		},
		Options: schemas.GenerationOptions{Temperature: 0.15, MaxOutputTokens: 280},
	}
}

// -- Test Cases: Initialization --

func TestNewChatClient_CredentialPolicy(t *testing.T) {
	logger := setupTestLogger(t)

	cfg := getValidLLMConfig()
	cfg.BaseURL = "https://api.openai.com/v1"
	_, err := NewChatClient(cfg, "", logger)
	assert.ErrorIs(t, err, ErrMissingCredential)

	cfg.APIKey = "sk-live"
	client, err := NewChatClient(cfg, "", logger)
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", client.Endpoint())

	local := getValidLLMConfig()
	local.BaseURL = "http://localhost:11434"
	client, err = NewChatClient(local, "llama3", logger)
	require.NoError(t, err, "loopback targets may omit the credential")
	assert.Equal(t, "http://localhost:11434/api/chat", client.Endpoint())
	assert.Equal(t, "llama3", client.Model())
}

// -- Test Cases: Successful Generation --

func TestGenerate_Success_RequestShape(t *testing.T) {
	var captured chatPayload
	client, _, _ := setupChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &captured))

		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"{\"next_action\":\"observe\"}"}}]}`)
	})

	text, err := client.Generate(context.Background(), createTestRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"next_action":"observe"}`, text)

	assert.Equal(t, "test-model", captured.Model)
	assert.Equal(t, 0.15, captured.Temperature)
	assert.Equal(t, 280, captured.MaxTokens)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, schemas.RoleSystem, captured.Messages[0].Role)
}

func TestGenerate_DefaultOptions(t *testing.T) {
	var captured chatPayload
	client, _, _ := setupChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		_, _ = io.WriteString(w, `{"response":"ok"}`)
	})

	_, err := client.Generate(context.Background(), schemas.GenerationRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0.2, captured.Temperature)
	assert.Equal(t, 600, captured.MaxTokens)
}

func TestGenerate_NDJSONConcatenation(t *testing.T) {
	client, _, _ := setupChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = io.WriteString(w, "{\"message\":{\"content\":\"Hello, \"}}\n{\"message\":{\"content\":\"world\"}}\n")
	})

	text, err := client.Generate(context.Background(), createTestRequest())
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", text)
}

// -- Test Cases: Retry Logic --

func TestGenerate_RetryThenSuccess(t *testing.T) {
	var calls int32
	client, timer, logs := setupChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = io.WriteString(w, `{"response":"finally"}`)
		}
	})

	text, err := client.Generate(context.Background(), createTestRequest())
	require.NoError(t, err)
	assert.Equal(t, "finally", text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{2 * time.Second, time.Second}, timer.Waits(),
		"first retry uses the linear schedule, second honors Retry-After")
	assert.Equal(t, 2, logs.FilterMessage("Reasoning request failed, retrying").Len())
}

// Consecutive 429s up to the attempt ceiling end with the last observed error.
func TestGenerate_RetriesExhausted(t *testing.T) {
	var calls int32
	client, timer, _ := setupChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, "slow down "+string(rune('0'+n)))
	})

	_, err := client.Generate(context.Background(), createTestRequest())
	require.Error(t, err)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second, 8 * time.Second}, timer.Waits())

	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, http.StatusTooManyRequests, svcErr.StatusCode)
	assert.Equal(t, "slow down 5", svcErr.Body)
	assert.Equal(t, 5, svcErr.Attempts)
	assert.True(t, svcErr.Retryable())
	assert.Contains(t, err.Error(), "reasoning service error 429 Too Many Requests: slow down 5")
}

func TestGenerate_NonRetryableStatus(t *testing.T) {
	var calls int32
	client, timer, _ := setupChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"bad key"}`)
	})

	_, err := client.Generate(context.Background(), createTestRequest())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "non-retryable statuses fail immediately")
	assert.Empty(t, timer.Waits())

	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.False(t, svcErr.Retryable())
	assert.Equal(t, `reasoning service error 401 Unauthorized: {"error":"bad key"}`, err.Error())
}

func TestGenerate_TransportErrorsRetried(t *testing.T) {
	timer := &instantTimer{}
	cfg := getValidLLMConfig()
	cfg.MaxAttempts = 3
	cfg.BaseURL = "http://127.0.0.1:1"

	client, err := NewChatClient(cfg, "", setupTestLogger(t), WithTimer(timer),
		WithHTTPClient(&http.Client{Transport: failingTransport{}}))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), createTestRequest())
	require.Error(t, err)
	assert.Len(t, timer.Waits(), 2)

	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, 0, svcErr.StatusCode)
	assert.Equal(t, 3, svcErr.Attempts)
	assert.ErrorIs(t, err, errConnRefused)
}

func TestGenerate_ContextCancelled(t *testing.T) {
	client, _, _ := setupChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Generate(ctx, createTestRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerate_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.New(reg)
	require.NoError(t, err)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"response":"ok"}`)
	}))
	t.Cleanup(server.Close)

	cfg := getValidLLMConfig()
	cfg.BaseURL = server.URL
	client, err := NewChatClient(cfg, "", setupTestLogger(t),
		WithHTTPClient(server.Client()), WithTimer(&instantTimer{}), WithMetrics(rec))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), createTestRequest())
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				found[mf.GetName()] += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, found["webpilot_reasoning_retries_total"])
	assert.Equal(t, 1.0, found["webpilot_reasoning_requests_total"])
}

var errConnRefused = errors.New("connection refused")

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errConnRefused
}
