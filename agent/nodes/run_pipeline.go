package nodes

import (
	"context"
	"fmt"

	orchestratorx "sellerpilot/agent/agents/orchestrator"
	contractx "sellerpilot/agent/contract"
)

// RunPipeline executes the planner, critic, and final-answer machine. A
// failed run surfaces as a PipelineFailure carrying the trace and the last
// valid plan.
func RunPipeline(ctx context.Context, in *GraphState, orch *orchestratorx.Orchestrator) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrInvalidInput)
	}

	res := orch.Run(ctx, orchestratorx.Input{
		Query:    in.Req.Query,
		Context:  in.Ctx,
		Evidence: in.Evidence,
		Facts:    in.Facts,
		History:  in.History,
		Degraded: in.Degraded,
	})

	if res.State == orchestratorx.StateFailed {
		failure := &contractx.PipelineFailure{
			Reason: res.FailureReason,
			State:  string(res.State),
			Trace:  res.Trace,
		}
		if res.Plan.OverallSummary != "" {
			plan := res.Plan
			failure.Plan = &plan
		}
		return nil, failure
	}

	in.Run = res
	return in, nil
}
