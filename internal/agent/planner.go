// internal/agent/planner.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/llmutil"
)

const parseFailedRationale = "Parsing failed, observe"

var (
	planOptions        = schemas.GenerationOptions{Temperature: 0.2, MaxOutputTokens: 550}
	reflectOptions     = schemas.GenerationOptions{Temperature: 0.15, MaxOutputTokens: 280}
	decomposeOptions   = schemas.GenerationOptions{Temperature: 0.2, MaxOutputTokens: 300}
	errNoDecomposition = errors.New("failed to decompose goal")
)

// Planner turns run state into decisions by querying the reasoning service.
type Planner struct {
	llm           schemas.LLMClient
	logger        *zap.Logger
	snapshotChars int
}

// NewPlanner creates a planner. snapshotChars bounds the page summary in prompts.
func NewPlanner(llm schemas.LLMClient, logger *zap.Logger, snapshotChars int) *Planner {
	return &Planner{llm: llm, logger: logger.Named("planner"), snapshotChars: snapshotChars}
}

// Decide asks the reasoning service for the next action. Output that cannot be
// parsed, or that names no action, becomes an observe decision. Only failures
// of the reasoning service itself are returned.
func (p *Planner) Decide(ctx context.Context, goal, digest string, snap *schemas.PageSnapshot) (PlanOutput, error) {
	req := schemas.GenerationRequest{
		Messages: []schemas.ChatMessage{
			{Role: schemas.RoleSystem, Content: plannerSystemPrompt},
			{Role: schemas.RoleUser, Content: buildPlannerPrompt(goal, digest, snap, p.snapshotChars)},
		},
		Tier:    schemas.TierPowerful,
		Options: planOptions,
	}

	response, err := p.llm.Generate(ctx, req)
	if err != nil {
		return PlanOutput{}, fmt.Errorf("llm generation failed: %w", err)
	}

	plan, ok := llmutil.ExtractDecision[PlanOutput](response)
	if !ok || strings.TrimSpace(plan.NextAction) == "" {
		p.logger.Warn("Failed to parse planner response, falling back to observe",
			zap.String("raw_response", llmutil.TruncateString(response, 512)))
		return PlanOutput{NextAction: string(ActionObserve), Args: Args{}, Rationale: parseFailedRationale}, nil
	}
	if plan.Args == nil {
		plan.Args = Args{}
	}
	return plan, nil
}

type reflection struct {
	Adjustment string `json:"adjustment"`
}

// Reflect runs the self-critique pass and returns a suggested adjustment, or
// "" when the run looks on track.
func (p *Planner) Reflect(ctx context.Context, goal, digest string) (string, error) {
	req := schemas.GenerationRequest{
		Messages: []schemas.ChatMessage{
			{Role: schemas.RoleSystem, Content: reflectionSystemPrompt},
			{Role: schemas.RoleUser, Content: buildReflectionPrompt(goal, digest)},
		},
		Tier:    schemas.TierFast,
		Options: reflectOptions,
	}

	response, err := p.llm.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("reflection failed: %w", err)
	}
	r, _ := llmutil.ExtractDecision[reflection](response)
	return strings.TrimSpace(r.Adjustment), nil
}

type taskPlan struct {
	Steps []string `json:"steps"`
}

// Decompose breaks the goal into an ordered list of browser steps.
func (p *Planner) Decompose(ctx context.Context, goal string) ([]string, error) {
	req := schemas.GenerationRequest{
		Messages: []schemas.ChatMessage{
			{Role: schemas.RoleSystem, Content: decompositionSystemPrompt},
			{Role: schemas.RoleUser, Content: buildDecompositionPrompt(goal)},
		},
		Tier:    schemas.TierPowerful,
		Options: decomposeOptions,
	}

	response, err := p.llm.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llm generation failed: %w", err)
	}
	plan, ok := llmutil.ExtractDecision[taskPlan](response)
	if !ok {
		return nil, errNoDecomposition
	}
	steps := make([]string, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		if s = strings.TrimSpace(s); s != "" {
			steps = append(steps, s)
		}
	}
	if len(steps) == 0 {
		return nil, errNoDecomposition
	}
	return steps, nil
}
