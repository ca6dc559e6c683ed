// Package pipeline implements the three model-backed stages behind the
// orchestrator. Each stage renders its payload, calls the gateway with the
// stage prompt, and re-validates the returned document into its typed form.
package pipeline

import (
	"context"
	"encoding/json"

	contractx "sellerpilot/agent/contract"
	llmx "sellerpilot/agent/llm"
)

// Gateway is the slice of the LLM gateway the stages need.
type Gateway interface {
	Complete(ctx context.Context, spec llmx.PromptSpec, check llmx.CheckFunc) (json.RawMessage, contractx.CallStats, error)
}

// Prompts supplies the current system prompt per stage. Satisfied by
// *prompt.Loader.
type Prompts interface {
	Planner() string
	Critic() string
	FinalAnswer() string
}

type registryImpl struct {
	planner  contractx.Planner
	critic   contractx.Critic
	answerer contractx.Answerer
}

func (r *registryImpl) Planner() contractx.Planner   { return r.planner }
func (r *registryImpl) Critic() contractx.Critic     { return r.critic }
func (r *registryImpl) Answerer() contractx.Answerer { return r.answerer }

// NewRegistry wires the three stages over a shared gateway and prompt
// source.
func NewRegistry(gw Gateway, prompts Prompts) contractx.Registry {
	return &registryImpl{
		planner:  &plannerImpl{gateway: gw, systemPrompt: prompts.Planner},
		critic:   &criticImpl{gateway: gw, systemPrompt: prompts.Critic},
		answerer: &answererImpl{gateway: gw, systemPrompt: prompts.FinalAnswer},
	}
}
