// Package llm is the single path through which the pipeline talks to chat
// models. It owns attempts, per-call timeouts, one-shot schema repair, and
// provider failover; callers only see validated JSON or a sentinel error.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "sellerpilot/agent/contract"
	"sellerpilot/pkg/metrics"
	"sellerpilot/pkg/openrouter"
)

// PromptSpec is one fully-rendered call: a system prompt, a user payload,
// and the stage name used for logging and metrics.
type PromptSpec struct {
	Stage  string
	System string
	Input  string
}

// CheckFunc validates a candidate JSON document. An empty slice means the
// document is accepted as-is.
type CheckFunc func(raw []byte) []contractx.Violation

type provider struct {
	name  string
	model model.BaseChatModel
}

// Gateway fans a prompt across the configured providers in order. Providers
// are tried with a bounded number of transport attempts each; a schema
// violation gets exactly one repair retry on the same provider before the
// gateway fails over.
type Gateway struct {
	providers      []provider
	maxAttempts    int
	attemptTimeout time.Duration
}

// NewGateway wires the provider chain for the configured mode.
func NewGateway(ctx context.Context, cfg Config, remote openrouter.LLMBuilder) (*Gateway, error) {
	var chain []provider

	if cfg.ProviderMode == ModeLocalOnly || cfg.ProviderMode == ModeHybrid {
		local, err := NewLocalModel(cfg.LocalBaseURL, cfg.LocalModel)
		if err != nil {
			return nil, err
		}
		chain = append(chain, provider{name: "local", model: local})
	}
	if cfg.ProviderMode == ModeRemoteOnly || cfg.ProviderMode == ModeHybrid {
		m, err := remote.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("build remote model: %w", err)
		}
		chain = append(chain, provider{name: "remote", model: m})
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("unknown provider mode %q", cfg.ProviderMode)
	}

	return &Gateway{
		providers:      chain,
		maxAttempts:    cfg.MaxAttempts,
		attemptTimeout: cfg.AttemptTimeout,
	}, nil
}

// NewGatewayWithProviders builds a gateway over pre-constructed models, in
// the given order. Used by tests and by callers that manage model
// construction themselves.
func NewGatewayWithProviders(cfg Config, named map[string]model.BaseChatModel, order []string) *Gateway {
	chain := make([]provider, 0, len(order))
	for _, name := range order {
		if m, ok := named[name]; ok {
			chain = append(chain, provider{name: name, model: m})
		}
	}
	return &Gateway{
		providers:      chain,
		maxAttempts:    cfg.MaxAttempts,
		attemptTimeout: cfg.AttemptTimeout,
	}
}

// Complete runs the prompt until some provider produces JSON that passes
// check, or every provider is exhausted. The returned stats always describe
// the last provider that was tried.
func (g *Gateway) Complete(ctx context.Context, spec PromptSpec, check CheckFunc) (json.RawMessage, contractx.CallStats, error) {
	stats := contractx.CallStats{}
	var lastErr error

	for pi, p := range g.providers {
		stats.Provider = p.name
		if pi > 0 {
			stats.FailedOver = true
			metrics.ObserveFailover()
			log.Warn().Str("stage", spec.Stage).Str("provider", p.name).Msg("failing over to next provider")
		}

		raw, err := g.tryProvider(ctx, p, spec, check, &stats)
		if err == nil {
			return raw, stats, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return nil, stats, fmt.Errorf("%w: %w", contractx.ErrLLMUnavailable, lastErr)
}

// tryProvider runs the transport-retry and repair loop for one provider.
func (g *Gateway) tryProvider(ctx context.Context, p provider, spec PromptSpec, check CheckFunc, stats *contractx.CallStats) (json.RawMessage, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(spec.System),
		schema.UserMessage(spec.Input),
	}

	raw, err := g.generate(ctx, p, spec.Stage, msgs, stats)
	if err != nil {
		return nil, err
	}

	violations := check(raw)
	if len(violations) == 0 {
		return raw, nil
	}

	// One repair retry per provider. The model sees its own output and the
	// violation list, and must answer with a corrected document.
	stats.Repaired = true
	log.Warn().
		Str("stage", spec.Stage).
		Str("provider", p.name).
		Str("violations", contractx.JoinViolations(violations)).
		Msg("schema violation, issuing repair retry")

	repair := append(msgs,
		&schema.Message{Role: schema.Assistant, Content: string(raw)},
		schema.UserMessage(repairPrompt(violations)),
	)
	raw, err = g.generate(ctx, p, spec.Stage, repair, stats)
	if err != nil {
		return nil, err
	}
	if violations = check(raw); len(violations) > 0 {
		return nil, fmt.Errorf("%w: %s", contractx.ErrSchemaViolation, contractx.JoinViolations(violations))
	}
	return raw, nil
}

// generate performs up to maxAttempts transport calls, each under its own
// deadline, and extracts the JSON document from the reply.
func (g *Gateway) generate(ctx context.Context, p provider, stage string, msgs []*schema.Message, stats *contractx.CallStats) (json.RawMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		stats.Attempts++

		callCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
		out, err := p.model.Generate(callCtx, msgs)
		cancel()

		if err == nil {
			raw, ok := extractJSON(out.Content)
			if ok {
				return raw, nil
			}
			lastErr = fmt.Errorf("%w: response contains no JSON object", contractx.ErrSchemaViolation)
			log.Warn().Str("stage", stage).Str("provider", p.name).Int("attempt", attempt).Msg("non-JSON response")
			continue
		}

		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			lastErr = fmt.Errorf("%w: %s attempt %d", contractx.ErrLLMTimeout, p.name, attempt)
		} else {
			lastErr = err
		}
		if ctx.Err() != nil {
			return nil, lastErr
		}
		log.Warn().Err(err).Str("stage", stage).Str("provider", p.name).Int("attempt", attempt).Msg("model call failed")
	}
	return nil, lastErr
}

// repairPrompt tells the model what was wrong and demands a bare corrected
// JSON document.
func repairPrompt(vs []contractx.Violation) string {
	return fmt.Sprintf(
		"Your previous response violated the required output schema:\n%s\n\nReply with the corrected JSON document only. No prose, no code fences.",
		contractx.JoinViolations(vs),
	)
}

// extractJSON pulls the first top-level JSON object out of a model reply,
// tolerating code fences and surrounding prose.
func extractJSON(content string) (json.RawMessage, bool) {
	s := strings.TrimSpace(content)
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	candidate := []byte(s[start : end+1])
	if !json.Valid(candidate) {
		return nil, false
	}
	return candidate, true
}
