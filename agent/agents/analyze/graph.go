package analyze

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "sellerpilot/agent/nodes"
)

func (s *Service) compileAnalyzeGraph(ctx context.Context) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, s.newID)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_session",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadSession(ctx, in, s.memory)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_session: %w", err)
	}

	if err := graph.AddLambdaNode("gather_inputs",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.GatherInputs(ctx, in, s.warehouse, s.retriever)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node gather_inputs: %w", err)
	}

	if err := graph.AddLambdaNode("run_pipeline",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RunPipeline(ctx, in, s.orch)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_pipeline: %w", err)
	}

	if err := graph.AddLambdaNode("append_session",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.AppendSession(ctx, in, s.memory, s.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node append_session: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_response",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeResponse(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_response: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_session"},
		{"load_session", "gather_inputs"},
		{"gather_inputs", "run_pipeline"},
		{"run_pipeline", "append_session"},
		{"append_session", "finalize_response"},
		{"finalize_response", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("analyze.handle_request"))
	if err != nil {
		return nil, fmt.Errorf("compile analyze graph: %w", err)
	}
	return runner, nil
}
