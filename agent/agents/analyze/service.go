// Package analyze exposes the end-to-end analyze operation: validate,
// load session, gather context, run the pipeline, persist the turn, answer.
package analyze

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"

	orchestratorx "sellerpilot/agent/agents/orchestrator"
	contractx "sellerpilot/agent/contract"
	nodex "sellerpilot/agent/nodes"
	"sellerpilot/pkg/metrics"
)

// Config bounds one analyze call end to end.
type Config struct {
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"120s"`
}

// Service is the analyze entrypoint used by the HTTP layer.
type Service struct {
	memory    contractx.SessionMemory
	warehouse contractx.Warehouse
	retriever contractx.Retriever
	orch      *orchestratorx.Orchestrator

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	requestTimeout time.Duration
	newID          func() string
	now            func() time.Time
}

// New wires the service and compiles its graph once.
func New(
	memory contractx.SessionMemory,
	warehouse contractx.Warehouse,
	retriever contractx.Retriever,
	reg contractx.Registry,
	cfg Config,
) (*Service, error) {
	if memory == nil {
		return nil, errors.New("session memory is required")
	}
	if warehouse == nil {
		return nil, errors.New("warehouse is required")
	}
	if retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if reg == nil {
		return nil, errors.New("model registry is required")
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	s := &Service{
		memory:         memory,
		warehouse:      warehouse,
		retriever:      retriever,
		orch:           orchestratorx.New(reg),
		requestTimeout: timeout,
		newID:          uuid.NewString,
		now:            time.Now,
	}

	runner, err := s.compileAnalyzeGraph(context.Background())
	if err != nil {
		return nil, err
	}
	s.graphRunner = runner
	return s, nil
}

// Analyze runs one request through the graph under the service timeout.
func (s *Service) Analyze(ctx context.Context, req contractx.AnalyzeRequest) (contractx.AnalyzeResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	start := s.now()
	out, err := s.graphRunner.Invoke(ctx, nodex.GraphInput{Req: req})
	elapsed := s.now().Sub(start)

	if err != nil {
		metrics.ObserveRequest("error", elapsed)
		return contractx.AnalyzeResponse{}, err
	}
	metrics.ObserveRequest("ok", elapsed)
	return out.Res, nil
}
