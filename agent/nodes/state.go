// Package nodes holds the steps of the analyze graph. Each node is a plain
// function over the shared graph state so the graph wiring stays a thin
// layer of names and edges.
package nodes

import (
	orchestratorx "sellerpilot/agent/agents/orchestrator"
	contractx "sellerpilot/agent/contract"
)

// GraphInput is the analyze request as it enters the graph.
type GraphInput struct {
	Req contractx.AnalyzeRequest
}

// GraphOutput is the finished response.
type GraphOutput struct {
	Res contractx.AnalyzeResponse
}

// GraphState is threaded through every node of one analyze run.
type GraphState struct {
	Req       contractx.AnalyzeRequest
	RequestID string
	SessionID string

	History []contractx.Message
	Facts   map[string]string

	Snapshot contractx.WarehouseSnapshot
	Evidence []contractx.RetrievedChunk
	Ctx      contractx.SellerContext
	Degraded bool

	Run orchestratorx.Result
}
