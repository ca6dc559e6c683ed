package sellerctx

import (
	"strings"
	"testing"

	contractx "sellerpilot/agent/contract"
)

func TestAssembleCarriesSnapshotAndDigestsEvidence(t *testing.T) {
	snap := contractx.WarehouseSnapshot{
		Profile: contractx.SellerProfile{
			SellerID:       "s-1",
			TotalProducts:  40,
			ActiveProducts: 35,
		},
		SalesHighlights:   []string{"week-over-week revenue down 12%"},
		ComplianceSummary: "no open violations",
	}
	evidence := []contractx.RetrievedChunk{
		{Marketplace: contractx.MarketplaceAmazon, Topic: "pricing", DocID: "fee-guide", Anchor: "fba", Text: "Referral fees vary by category."},
	}

	ctx := Assemble(snap, evidence)

	if ctx.Profile.SellerID != "s-1" || ctx.ComplianceSummary != "no open violations" {
		t.Fatalf("snapshot fields not carried: %+v", ctx)
	}
	if len(ctx.EvidenceSummary) != 1 {
		t.Fatalf("got %d evidence lines, want 1", len(ctx.EvidenceSummary))
	}
	if !strings.Contains(ctx.EvidenceSummary[0], "amazon:pricing:fee-guide#fba") {
		t.Fatalf("digest should embed the citation: %q", ctx.EvidenceSummary[0])
	}
}

func TestAssembleWithNoEvidenceSaysSo(t *testing.T) {
	ctx := Assemble(contractx.WarehouseSnapshot{}, nil)
	if len(ctx.EvidenceSummary) != 1 || !strings.Contains(ctx.EvidenceSummary[0], "no marketplace guidance") {
		t.Fatalf("unexpected digest: %v", ctx.EvidenceSummary)
	}
}

func TestAssembleCapsDigestLength(t *testing.T) {
	evidence := make([]contractx.RetrievedChunk, 12)
	for i := range evidence {
		evidence[i] = contractx.RetrievedChunk{
			Marketplace: contractx.MarketplaceFlipkart,
			Topic:       "listing",
			DocID:       "doc",
			Text:        strings.Repeat("long chunk text ", 30),
		}
	}

	ctx := Assemble(contractx.WarehouseSnapshot{}, evidence)
	if len(ctx.EvidenceSummary) != maxEvidenceSummary {
		t.Fatalf("got %d lines, want %d", len(ctx.EvidenceSummary), maxEvidenceSummary)
	}
	for _, line := range ctx.EvidenceSummary {
		if len(line) > 260 {
			t.Fatalf("digest line too long: %d bytes", len(line))
		}
	}
}
