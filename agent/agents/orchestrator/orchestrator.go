// Package orchestrator drives the planner, critic, and final-answer stages
// as an explicit state machine. Stage outputs only move the machine forward
// once they validate; a stage that keeps failing validation is retried a
// bounded number of times and then fails the whole run with the last valid
// artifacts attached.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "sellerpilot/agent/contract"
	validatex "sellerpilot/agent/validate"
	"sellerpilot/pkg/metrics"
)

// State names the positions of the run machine.
type State string

const (
	StateContextReady  State = "context_ready"
	StatePlannerRun    State = "planner_running"
	StatePlanValid     State = "plan_valid"
	StateCriticRun     State = "critic_running"
	StateCritiqueValid State = "critique_valid"
	StateFinalRun      State = "final_answer_running"
	StateFinalValid    State = "final_answer_valid"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// maxRepairCycles bounds how many times a stage may be re-run after the
// gateway reports a schema failure.
const maxRepairCycles = 2

// Input is everything the pipeline consumes. Context and Evidence are
// snapshots; the orchestrator never mutates them.
type Input struct {
	Query    string
	Context  contractx.SellerContext
	Evidence []contractx.RetrievedChunk
	Facts    map[string]string
	History  []contractx.Message
	Degraded bool
}

// Result is the run outcome. On StateFailed, Plan and Critique hold the
// last artifacts that validated before the failure.
type Result struct {
	State         State
	Plan          contractx.ActionPlan
	Critique      contractx.CritiqueResult
	Final         contractx.FinalAnswer
	PlanOfRecord  contractx.ActionPlan
	Trace         []contractx.StageRecord
	LowConfidence bool
	FailureReason error
}

// Orchestrator owns stage sequencing. It is stateless across runs; all run
// state lives in the Result under construction.
type Orchestrator struct {
	reg contractx.Registry
	now func() time.Time
}

func New(reg contractx.Registry) *Orchestrator {
	return &Orchestrator{reg: reg, now: time.Now}
}

// Run executes planner, critic, and final answer in order.
func (o *Orchestrator) Run(ctx context.Context, in Input) Result {
	res := Result{State: StateContextReady, LowConfidence: in.Degraded}

	if in.Degraded {
		res.Trace = append(res.Trace, contractx.StageRecord{
			Name:    "retrieval",
			Outcome: contractx.StageDegraded,
			Note:    "marketplace guidance unavailable, planning from seller context only",
		})
	}

	plan, ok := runStage(ctx, o, &res, "planner", StatePlannerRun, func(ctx context.Context) (contractx.ActionPlan, contractx.CallStats, error) {
		return o.reg.Planner().Plan(ctx, contractx.PlannerRequest{
			Query:    in.Query,
			Context:  in.Context,
			Evidence: in.Evidence,
			Facts:    in.Facts,
			History:  in.History,
		})
	})
	if !ok {
		return res
	}
	res.Plan = plan
	res.PlanOfRecord = plan
	res.State = StatePlanValid

	critique, ok := runStage(ctx, o, &res, "critic", StateCriticRun, func(ctx context.Context) (contractx.CritiqueResult, contractx.CallStats, error) {
		return o.reg.Critic().Critique(ctx, contractx.CriticRequest{Query: in.Query, Plan: plan})
	})
	if !ok {
		return res
	}
	res.Critique = critique
	res.State = StateCritiqueValid

	seeds := citationSeeds(in.Evidence)
	final, ok := runStage(ctx, o, &res, "final_answer", StateFinalRun, func(ctx context.Context) (contractx.FinalAnswer, contractx.CallStats, error) {
		return o.reg.Answerer().Answer(ctx, contractx.AnswerRequest{
			Query:         in.Query,
			Context:       in.Context,
			Plan:          plan,
			Critique:      critique,
			CitationSeeds: seeds,
		})
	})
	if !ok {
		return res
	}
	res.Final = final
	res.State = StateFinalValid

	o.adoptRefinedPlan(&res)
	res.State = StateDone
	return res
}

// adoptRefinedPlan promotes the final answer's refined plan to plan of
// record only when it passes the same validation as a planner plan. A broken
// refinement is dropped, never fails the run.
func (o *Orchestrator) adoptRefinedPlan(res *Result) {
	refined := res.Final.RefinedActionPlan
	if refined == nil {
		return
	}
	if vs := validatex.ActionPlanValue(*refined); len(vs) > 0 {
		log.Warn().Str("violations", contractx.JoinViolations(vs)).Msg("discarding invalid refined plan")
		res.Trace = append(res.Trace, contractx.StageRecord{
			Name:    "refined_plan",
			Outcome: contractx.StageDegraded,
			Note:    "refined plan failed validation and was discarded",
		})
		res.Final.RefinedActionPlan = nil
		return
	}
	res.PlanOfRecord = *refined
	res.Trace = append(res.Trace, contractx.StageRecord{
		Name:    "refined_plan",
		Outcome: contractx.StageOK,
		Note:    "refined plan adopted as plan of record",
	})
}

// runStage executes one stage with bounded schema-repair retries, recording
// a trace entry per outcome.
func runStage[T any](ctx context.Context, o *Orchestrator, res *Result, name string, running State, call func(context.Context) (T, contractx.CallStats, error)) (T, bool) {
	var zero T
	res.State = running
	start := o.now()

	for attempt := 0; ; attempt++ {
		out, stats, err := call(ctx)
		elapsed := o.now().Sub(start)

		if err == nil {
			rec := contractx.StageRecord{
				Name:     name,
				Duration: elapsed,
				Outcome:  contractx.StageOK,
				Retries:  attempt,
			}
			if stats.FailedOver {
				rec.Note = "completed after provider failover"
			}
			res.Trace = append(res.Trace, rec)
			metrics.ObserveStage(name, string(contractx.StageOK), elapsed)
			return out, true
		}

		if errors.Is(err, contractx.ErrSchemaViolation) && attempt < maxRepairCycles && ctx.Err() == nil {
			log.Warn().Err(err).Str("stage", name).Int("cycle", attempt+1).Msg("stage output invalid, re-running stage")
			continue
		}

		res.Trace = append(res.Trace, contractx.StageRecord{
			Name:     name,
			Duration: elapsed,
			Outcome:  contractx.StageFailed,
			Retries:  attempt,
			Note:     err.Error(),
		})
		metrics.ObserveStage(name, string(contractx.StageFailed), elapsed)

		res.State = StateFailed
		res.FailureReason = fmt.Errorf("stage %s: %w", name, err)
		return zero, false
	}
}

func citationSeeds(evidence []contractx.RetrievedChunk) []string {
	seeds := make([]string, 0, len(evidence))
	for _, c := range evidence {
		seeds = append(seeds, c.Citation())
	}
	return seeds
}
