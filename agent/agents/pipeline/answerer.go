package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	contractx "sellerpilot/agent/contract"
	llmx "sellerpilot/agent/llm"
	validatex "sellerpilot/agent/validate"
)

type answererImpl struct {
	gateway      Gateway
	systemPrompt func() string
}

func (a *answererImpl) Answer(ctx context.Context, req contractx.AnswerRequest) (contractx.FinalAnswer, contractx.CallStats, error) {
	payload := map[string]any{
		"query":          req.Query,
		"seller_context": req.Context,
		"action_plan":    req.Plan,
		"critique":       req.Critique,
		"citation_seeds": req.CitationSeeds,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return contractx.FinalAnswer{}, contractx.CallStats{}, fmt.Errorf("marshal answer payload: %w", err)
	}

	check := func(raw []byte) []contractx.Violation {
		ans, vs := validatex.FinalAnswer(raw)
		if len(vs) > 0 {
			return vs
		}
		return citationSeedViolations(ans.Citations, req.CitationSeeds)
	}

	raw, stats, err := a.gateway.Complete(ctx, llmx.PromptSpec{
		Stage:  "final_answer",
		System: a.systemPrompt(),
		Input:  string(input),
	}, check)
	if err != nil {
		return contractx.FinalAnswer{}, stats, err
	}

	ans, vs := validatex.FinalAnswer(raw)
	if len(vs) > 0 {
		return contractx.FinalAnswer{}, stats, fmt.Errorf("%w: %s", contractx.ErrSchemaViolation, contractx.JoinViolations(vs))
	}
	return ans, stats, nil
}

// citationSeedViolations rejects citations that were not offered as seeds.
// The model may cite fewer seeds than given, never ones it invented.
func citationSeedViolations(citations, seeds []string) []contractx.Violation {
	allowed := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		allowed[s] = true
	}
	var vs []contractx.Violation
	for i, c := range citations {
		if !allowed[c] {
			vs = append(vs, contractx.Violation{
				Field:  fmt.Sprintf("citations[%d]", i),
				Reason: fmt.Sprintf("%q is not one of the provided citation seeds", c),
			})
		}
	}
	return vs
}
