package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	contractx "sellerpilot/agent/contract"
	llmx "sellerpilot/agent/llm"
)

// fakeGateway returns a canned document after recording the call, applying
// the stage's check the way the real gateway would.
type fakeGateway struct {
	raw   string
	err   error
	specs []llmx.PromptSpec
}

func (g *fakeGateway) Complete(_ context.Context, spec llmx.PromptSpec, check llmx.CheckFunc) (json.RawMessage, contractx.CallStats, error) {
	g.specs = append(g.specs, spec)
	if g.err != nil {
		return nil, contractx.CallStats{Provider: "fake", Attempts: 1}, g.err
	}
	if vs := check([]byte(g.raw)); len(vs) > 0 {
		return nil, contractx.CallStats{Provider: "fake", Attempts: 2, Repaired: true},
			errors.Join(contractx.ErrLLMUnavailable, contractx.ErrSchemaViolation)
	}
	return json.RawMessage(g.raw), contractx.CallStats{Provider: "fake", Attempts: 1}, nil
}

type staticPrompts struct{}

func (staticPrompts) Planner() string     { return "planner system prompt" }
func (staticPrompts) Critic() string      { return "critic system prompt" }
func (staticPrompts) FinalAnswer() string { return "final answer system prompt" }

const validPlanJSON = `{
	"overall_summary": "Fix pricing first.",
	"actions": [
		{"area": "pricing", "title": "Reprice", "description": "Raise low-margin prices.", "priority": "high", "impact": "high", "product_id": null}
	]
}`

func TestPlannerProducesValidatedPlan(t *testing.T) {
	gw := &fakeGateway{raw: validPlanJSON}
	reg := NewRegistry(gw, staticPrompts{})

	plan, stats, err := reg.Planner().Plan(context.Background(), contractx.PlannerRequest{
		Query: "why are my margins shrinking",
		Facts: map[string]string{"seller_name": "Asha"},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Actions) != 1 || plan.Actions[0].Area != contractx.AreaPricing {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if stats.Provider != "fake" {
		t.Fatalf("stats not propagated: %+v", stats)
	}

	if len(gw.specs) != 1 || gw.specs[0].Stage != "planner" {
		t.Fatalf("unexpected specs: %+v", gw.specs)
	}
	if gw.specs[0].System != "planner system prompt" {
		t.Fatalf("system prompt not threaded: %q", gw.specs[0].System)
	}
	if !strings.Contains(gw.specs[0].Input, "why are my margins shrinking") {
		t.Fatal("query missing from payload")
	}
	if !strings.Contains(gw.specs[0].Input, "seller_name") {
		t.Fatal("facts missing from payload")
	}
}

func TestPlannerRejectsEmptyQuery(t *testing.T) {
	reg := NewRegistry(&fakeGateway{raw: validPlanJSON}, staticPrompts{})

	_, _, err := reg.Planner().Plan(context.Background(), contractx.PlannerRequest{Query: "  "})
	if !errors.Is(err, contractx.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
}

func TestCriticRejectsPlanShapedOutput(t *testing.T) {
	gw := &fakeGateway{raw: `{"overall_comment": "ok", "strengths": [], "weaknesses": [], "missing_areas": [], "actions": []}`}
	reg := NewRegistry(gw, staticPrompts{})

	_, _, err := reg.Critic().Critique(context.Background(), contractx.CriticRequest{Query: "q", Plan: contractx.ActionPlan{}})
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("got %v, want ErrSchemaViolation", err)
	}
}

func TestAnswererRejectsInventedCitations(t *testing.T) {
	gw := &fakeGateway{raw: `{
		"answer_markdown": "## Plan\nDetails.",
		"refined_action_plan": null,
		"citations": ["amazon:pricing:unoffered-doc"]
	}`}
	reg := NewRegistry(gw, staticPrompts{})

	_, _, err := reg.Answerer().Answer(context.Background(), contractx.AnswerRequest{
		Query:         "q",
		CitationSeeds: []string{"amazon:pricing:fee-guide"},
	})
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("got %v, want ErrSchemaViolation", err)
	}
}

func TestAnswererAcceptsSubsetOfSeeds(t *testing.T) {
	gw := &fakeGateway{raw: `{
		"answer_markdown": "## Plan\nDetails.",
		"refined_action_plan": null,
		"citations": ["amazon:pricing:fee-guide"]
	}`}
	reg := NewRegistry(gw, staticPrompts{})

	ans, _, err := reg.Answerer().Answer(context.Background(), contractx.AnswerRequest{
		Query:         "q",
		CitationSeeds: []string{"amazon:pricing:fee-guide", "flipkart:listing:seo-basics"},
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(ans.Citations) != 1 || ans.Citations[0] != "amazon:pricing:fee-guide" {
		t.Fatalf("citations: %+v", ans.Citations)
	}
}
