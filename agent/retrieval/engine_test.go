package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/blevesearch/bleve/v2"

	contractx "sellerpilot/agent/contract"
)

func memEngine(t *testing.T, perMarketTop, maxChunks int, marketplaces ...contractx.Marketplace) *Engine {
	t.Helper()
	parts := make(map[contractx.Marketplace]bleve.Index, len(marketplaces))
	for _, mk := range marketplaces {
		idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
		if err != nil {
			t.Fatalf("NewMemOnly: %v", err)
		}
		t.Cleanup(func() { _ = idx.Close() })
		parts[mk] = idx
	}
	return New(parts, perMarketTop, maxChunks)
}

func seed(t *testing.T, e *Engine, mk contractx.Marketplace, chunks ...Chunk) {
	t.Helper()
	for _, c := range chunks {
		if err := e.Index(mk, c); err != nil {
			t.Fatalf("Index: %v", err)
		}
	}
}

func TestRetrieveReturnsMatchingChunks(t *testing.T) {
	e := memEngine(t, 4, 8, contractx.MarketplaceAmazon)
	seed(t, e, contractx.MarketplaceAmazon,
		Chunk{DocID: "fee-guide", Topic: "pricing", Anchor: "fba-fees", Text: "FBA fulfillment fees and referral fees by category"},
		Chunk{DocID: "listing-101", Topic: "listing", Anchor: "", Text: "Writing titles that convert"},
	)

	got, err := e.Retrieve(context.Background(), "referral fees", []contractx.Marketplace{contractx.MarketplaceAmazon})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected at least one hit")
	}
	top := got[0]
	if top.DocID != "fee-guide" || top.Marketplace != contractx.MarketplaceAmazon {
		t.Fatalf("unexpected top hit: %+v", top)
	}
	if c := top.Citation(); c != "amazon:pricing:fee-guide#fba-fees" {
		t.Fatalf("citation: got %q", c)
	}
}

func TestRetrieveCapsMergedResults(t *testing.T) {
	e := memEngine(t, 4, 3, contractx.MarketplaceAmazon, contractx.MarketplaceFlipkart)
	for _, id := range []string{"a1", "a2", "a3"} {
		seed(t, e, contractx.MarketplaceAmazon, Chunk{DocID: id, Topic: "pricing", Text: "pricing guidance document number " + id})
	}
	for _, id := range []string{"f1", "f2", "f3"} {
		seed(t, e, contractx.MarketplaceFlipkart, Chunk{DocID: id, Topic: "pricing", Text: "pricing guidance document number " + id})
	}

	got, err := e.Retrieve(context.Background(), "pricing guidance",
		[]contractx.Marketplace{contractx.MarketplaceAmazon, contractx.MarketplaceFlipkart})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) > 3 {
		t.Fatalf("cap violated: got %d chunks", len(got))
	}
}

func TestRetrieveMergesInScoreOrder(t *testing.T) {
	e := memEngine(t, 4, 8, contractx.MarketplaceAmazon, contractx.MarketplaceMeesho)
	seed(t, e, contractx.MarketplaceAmazon, Chunk{DocID: "a", Topic: "ads", Text: "sponsored ads budget pacing"})
	seed(t, e, contractx.MarketplaceMeesho, Chunk{DocID: "m", Topic: "ads", Text: "ads"})

	got, err := e.Retrieve(context.Background(), "ads",
		[]contractx.Marketplace{contractx.MarketplaceAmazon, contractx.MarketplaceMeesho})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("results not in descending score order: %+v", got)
		}
	}
}

func TestRetrieveKeepsSameDocAcrossMarketplaces(t *testing.T) {
	e := memEngine(t, 4, 8, contractx.MarketplaceAmazon, contractx.MarketplaceFlipkart)
	// Partitions are per marketplace, so equal doc id and anchor in two
	// partitions are distinct documents and both survive the merge.
	seed(t, e, contractx.MarketplaceAmazon, Chunk{DocID: "returns", Topic: "compliance", Anchor: "window", Text: "returns window policy"})
	seed(t, e, contractx.MarketplaceFlipkart, Chunk{DocID: "returns", Topic: "compliance", Anchor: "window", Text: "returns window policy"})

	got, err := e.Retrieve(context.Background(), "returns window",
		[]contractx.Marketplace{contractx.MarketplaceAmazon, contractx.MarketplaceFlipkart})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d chunks, want one per marketplace", len(got))
	}
	if got[0].Marketplace == got[1].Marketplace {
		t.Fatalf("both chunks from %s", got[0].Marketplace)
	}
}

func TestRetrieveRejectsBadInput(t *testing.T) {
	e := memEngine(t, 4, 8, contractx.MarketplaceAmazon)

	if _, err := e.Retrieve(context.Background(), "   ", []contractx.Marketplace{contractx.MarketplaceAmazon}); !errors.Is(err, contractx.ErrInvalidInput) {
		t.Fatalf("empty query: got %v", err)
	}
	if _, err := e.Retrieve(context.Background(), "fees", nil); !errors.Is(err, contractx.ErrInvalidInput) {
		t.Fatalf("no marketplaces: got %v", err)
	}
	if _, err := e.Retrieve(context.Background(), "fees", []contractx.Marketplace{contractx.MarketplaceFlipkart}); !errors.Is(err, contractx.ErrInvalidInput) {
		t.Fatalf("unknown partition: got %v", err)
	}
}

func TestRetrieveEmptyPartitionYieldsNoChunks(t *testing.T) {
	e := memEngine(t, 4, 8, contractx.MarketplaceMyntra)

	got, err := e.Retrieve(context.Background(), "returns policy", []contractx.Marketplace{contractx.MarketplaceMyntra})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no hits, got %d", len(got))
	}
}
