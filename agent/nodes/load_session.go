package nodes

import (
	"context"
	"fmt"

	contractx "sellerpilot/agent/contract"
)

// LoadSession pulls the conversation history and remembered facts under the
// session lock.
func LoadSession(ctx context.Context, in *GraphState, memory contractx.SessionMemory) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrInvalidInput)
	}

	rec, err := memory.Load(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	in.History = rec.Messages
	in.Facts = rec.Facts
	return in, nil
}
