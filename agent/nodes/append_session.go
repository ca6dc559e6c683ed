package nodes

import (
	"context"
	"fmt"
	"time"

	contractx "sellerpilot/agent/contract"
)

// AppendSession persists the turn: the seller's question and the produced
// answer, tagged with the request id so a turn can be traced end to end.
func AppendSession(ctx context.Context, in *GraphState, memory contractx.SessionMemory, now func() time.Time) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrInvalidInput)
	}
	if now == nil {
		now = time.Now
	}
	ts := now().UTC()

	err := memory.Append(ctx, contractx.AppendRequest{
		SessionID:  in.SessionID,
		SellerID:   in.Req.SellerID,
		SellerName: in.Req.SellerName,
		Messages: []contractx.Message{
			{Role: contractx.RoleUser, Content: in.Req.Query, RequestID: in.RequestID, CreatedAt: ts},
			{Role: contractx.RoleAssistant, Content: in.Run.Final.AnswerMarkdown, RequestID: in.RequestID, CreatedAt: ts},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("append session: %w", err)
	}
	return in, nil
}
