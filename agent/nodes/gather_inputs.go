package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	contractx "sellerpilot/agent/contract"
	"sellerpilot/agent/sellerctx"
)

// GatherInputs fetches the warehouse snapshot and the marketplace evidence
// in parallel, then freezes them into the per-request seller context. A
// retrieval outage degrades the run instead of failing it; a warehouse
// failure is fatal because the context cannot be built without it.
func GatherInputs(ctx context.Context, in *GraphState, warehouse contractx.Warehouse, retriever contractx.Retriever) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrInvalidInput)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		snap, err := warehouse.Snapshot(gctx, in.Req.SellerID)
		if err != nil {
			return fmt.Errorf("warehouse snapshot: %w", err)
		}
		in.Snapshot = snap
		return nil
	})

	g.Go(func() error {
		chunks, err := retriever.Retrieve(gctx, in.Req.Query, in.Req.Marketplaces)
		if err != nil {
			if errors.Is(err, contractx.ErrRetrievalUnavailable) {
				log.Warn().Err(err).Str("request_id", in.RequestID).Msg("retrieval unavailable, continuing degraded")
				in.Degraded = true
				in.Evidence = nil
				return nil
			}
			return err
		}
		in.Evidence = chunks
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	in.Ctx = sellerctx.Assemble(in.Snapshot, in.Evidence)
	return in, nil
}
