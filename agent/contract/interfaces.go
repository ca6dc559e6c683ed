package contract

import "context"

// Retriever queries the policy-document index. Read-only; it never mutates
// the index.
type Retriever interface {
	Retrieve(ctx context.Context, query string, marketplaces []Marketplace) ([]RetrievedChunk, error)
}

// Warehouse exposes the external seller warehouse. The ETL that produces the
// snapshot is outside this system.
type Warehouse interface {
	Snapshot(ctx context.Context, sellerID string) (WarehouseSnapshot, error)
}

// Planner produces the initial action plan.
type Planner interface {
	Plan(ctx context.Context, req PlannerRequest) (ActionPlan, CallStats, error)
}

// Critic reviews a plan without amending it.
type Critic interface {
	Critique(ctx context.Context, req CriticRequest) (CritiqueResult, CallStats, error)
}

// Answerer produces the final markdown answer with citations and an optional
// refined plan.
type Answerer interface {
	Answer(ctx context.Context, req AnswerRequest) (FinalAnswer, CallStats, error)
}

// Registry resolves the three pipeline stages.
type Registry interface {
	Planner() Planner
	Critic() Critic
	Answerer() Answerer
}

// SessionMemory is the durable per-conversation store. Append and Load for
// the same session id are serialized; distinct sessions proceed in parallel.
type SessionMemory interface {
	Load(ctx context.Context, sessionID string) (SessionRecord, error)
	Append(ctx context.Context, req AppendRequest) error
}
