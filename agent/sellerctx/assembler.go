// Package sellerctx assembles the per-request seller context. The context is
// built exactly once per request, before the pipeline runs, and the pipeline
// receives it by value.
package sellerctx

import (
	"fmt"
	"strings"

	contractx "sellerpilot/agent/contract"
)

// maxEvidenceSummary bounds the digest so huge retrievals do not bloat every
// downstream prompt.
const maxEvidenceSummary = 8

// Assemble merges the warehouse snapshot with a one-line digest of each
// retrieved chunk. A degraded request passes empty evidence and gets a
// context that says so.
func Assemble(snap contractx.WarehouseSnapshot, evidence []contractx.RetrievedChunk) contractx.SellerContext {
	return contractx.SellerContext{
		Profile:              snap.Profile,
		SalesHighlights:      snap.SalesHighlights,
		CompetitorHighlights: snap.CompetitorHighlights,
		InventoryHighlights:  snap.InventoryHighlights,
		ComplianceSummary:    snap.ComplianceSummary,
		EvidenceSummary:      summarize(evidence),
	}
}

func summarize(evidence []contractx.RetrievedChunk) []string {
	if len(evidence) == 0 {
		return []string{"no marketplace guidance was available for this request"}
	}
	n := len(evidence)
	if n > maxEvidenceSummary {
		n = maxEvidenceSummary
	}
	lines := make([]string, 0, n)
	for _, c := range evidence[:n] {
		lines = append(lines, fmt.Sprintf("[%s] %s", c.Citation(), snippet(c.Text, 160)))
	}
	return lines
}

func snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	cut := strings.LastIndex(s[:max], " ")
	if cut <= 0 {
		cut = max
	}
	return s[:cut] + "…"
}
