package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	contractx "sellerpilot/agent/contract"
	llmx "sellerpilot/agent/llm"
	validatex "sellerpilot/agent/validate"
)

type plannerImpl struct {
	gateway      Gateway
	systemPrompt func() string
}

func (p *plannerImpl) Plan(ctx context.Context, req contractx.PlannerRequest) (contractx.ActionPlan, contractx.CallStats, error) {
	if strings.TrimSpace(req.Query) == "" {
		return contractx.ActionPlan{}, contractx.CallStats{}, fmt.Errorf("%w: query is required", contractx.ErrInvalidInput)
	}

	payload := map[string]any{
		"query":            req.Query,
		"seller_context":   req.Context,
		"evidence":         evidencePayload(req.Evidence),
		"remembered_facts": factsPayload(req.Facts),
		"recent_history":   historyPayload(req.History),
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return contractx.ActionPlan{}, contractx.CallStats{}, fmt.Errorf("marshal planner payload: %w", err)
	}

	raw, stats, err := p.gateway.Complete(ctx, llmx.PromptSpec{
		Stage:  "planner",
		System: p.systemPrompt(),
		Input:  string(input),
	}, func(raw []byte) []contractx.Violation {
		_, vs := validatex.ActionPlan(raw)
		return vs
	})
	if err != nil {
		return contractx.ActionPlan{}, stats, err
	}

	plan, vs := validatex.ActionPlan(raw)
	if len(vs) > 0 {
		return contractx.ActionPlan{}, stats, fmt.Errorf("%w: %s", contractx.ErrSchemaViolation, contractx.JoinViolations(vs))
	}
	return plan, stats, nil
}

func evidencePayload(chunks []contractx.RetrievedChunk) []map[string]any {
	out := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, map[string]any{
			"citation":    c.Citation(),
			"marketplace": c.Marketplace,
			"topic":       c.Topic,
			"text":        c.Text,
		})
	}
	return out
}

func factsPayload(facts map[string]string) []map[string]string {
	out := make([]map[string]string, 0, len(facts))
	for _, key := range contractx.SortedFactKeys(facts) {
		out = append(out, map[string]string{"key": key, "value": facts[key]})
	}
	return out
}

// historyPayload keeps only the tail of the conversation; older turns are
// represented by the remembered facts instead.
func historyPayload(history []contractx.Message) []map[string]string {
	const keep = 6
	if len(history) > keep {
		history = history[len(history)-keep:]
	}
	out := make([]map[string]string, 0, len(history))
	for _, msg := range history {
		out = append(out, map[string]string{"role": msg.Role, "content": msg.Content})
	}
	return out
}
