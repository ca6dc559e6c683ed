package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	contractx "sellerpilot/agent/contract"
	llmx "sellerpilot/agent/llm"
	validatex "sellerpilot/agent/validate"
)

type criticImpl struct {
	gateway      Gateway
	systemPrompt func() string
}

func (c *criticImpl) Critique(ctx context.Context, req contractx.CriticRequest) (contractx.CritiqueResult, contractx.CallStats, error) {
	payload := map[string]any{
		"query":       req.Query,
		"action_plan": req.Plan,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return contractx.CritiqueResult{}, contractx.CallStats{}, fmt.Errorf("marshal critic payload: %w", err)
	}

	raw, stats, err := c.gateway.Complete(ctx, llmx.PromptSpec{
		Stage:  "critic",
		System: c.systemPrompt(),
		Input:  string(input),
	}, func(raw []byte) []contractx.Violation {
		_, vs := validatex.Critique(raw)
		return vs
	})
	if err != nil {
		return contractx.CritiqueResult{}, stats, err
	}

	crit, vs := validatex.Critique(raw)
	if len(vs) > 0 {
		return contractx.CritiqueResult{}, stats, fmt.Errorf("%w: %s", contractx.ErrSchemaViolation, contractx.JoinViolations(vs))
	}
	return crit, stats, nil
}
