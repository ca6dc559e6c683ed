package nodes

import (
	"fmt"

	contractx "sellerpilot/agent/contract"
)

// FinalizeResponse assembles the outward response from the run result.
func FinalizeResponse(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrInvalidInput)
	}

	return GraphOutput{Res: contractx.AnalyzeResponse{
		SessionID:     in.SessionID,
		RequestID:     in.RequestID,
		ActionPlan:    in.Run.PlanOfRecord,
		Critique:      in.Run.Critique,
		FinalAnswer:   in.Run.Final,
		Trace:         in.Run.Trace,
		LowConfidence: in.Run.LowConfidence,
	}}, nil
}
