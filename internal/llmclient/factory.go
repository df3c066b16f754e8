// internal/llmclient/factory.go
package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
)

// NewClient builds the tiered client used by the agent: the powerful tier is
// bound to cfg.Model and the fast tier to cfg.FastModel. When both name the
// same model a single ChatClient serves both tiers.
func NewClient(cfg config.LLMConfig, logger *zap.Logger, opts ...Option) (schemas.LLMClient, error) {
	powerful, err := NewChatClient(cfg, cfg.Model, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create powerful tier client: %w", err)
	}

	fast := powerful
	if cfg.FastModel != "" && cfg.FastModel != cfg.Model {
		fast, err = NewChatClient(cfg, cfg.FastModel, logger, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create fast tier client: %w", err)
		}
	}

	logger.Info("Reasoning client initialized",
		zap.String("endpoint", powerful.Endpoint()),
		zap.String("powerful_model", powerful.Model()),
		zap.String("fast_model", fast.Model()))

	return NewLLMRouter(logger, fast, powerful)
}
