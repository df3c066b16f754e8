package agent

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface used by the Planner.
type MockLLMClient struct {
	mock.Mock
}

// Generate mocks the LLM generation call.
func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// Close mocks the Close method.
func (m *MockLLMClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// -- Browser Driver Mock --

// MockBrowserDriver mocks the schemas.BrowserDriver interface.
type MockBrowserDriver struct {
	mock.Mock
}

func (m *MockBrowserDriver) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockBrowserDriver) Observe(ctx context.Context) (*schemas.PageSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.PageSnapshot), args.Error(1)
}

func (m *MockBrowserDriver) Click(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

func (m *MockBrowserDriver) Type(ctx context.Context, path, text string, pressEnter bool) error {
	args := m.Called(ctx, path, text, pressEnter)
	return args.Error(0)
}

func (m *MockBrowserDriver) Scroll(ctx context.Context, pixels int) error {
	args := m.Called(ctx, pixels)
	return args.Error(0)
}

func (m *MockBrowserDriver) WaitIdle(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBrowserDriver) Dispose(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// -- Request matchers --

// planRequest matches planning calls (powerful tier, planner system prompt).
func planRequest() interface{} {
	return mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		return req.Tier == schemas.TierPowerful && len(req.Messages) > 0 && req.Messages[0].Content == plannerSystemPrompt
	})
}

// reflectRequest matches self-critique calls.
func reflectRequest() interface{} {
	return mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		return req.Tier == schemas.TierFast
	})
}

// decomposeRequest matches goal decomposition calls.
func decomposeRequest() interface{} {
	return mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		return len(req.Messages) > 0 && req.Messages[0].Content == decompositionSystemPrompt
	})
}
