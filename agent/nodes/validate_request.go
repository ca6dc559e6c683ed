package nodes

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	contractx "sellerpilot/agent/contract"
)

// ValidateRequest normalizes the request and assigns identifiers. Unknown
// marketplaces are rejected here, before any I/O happens.
func ValidateRequest(in GraphInput, newID func() string) (*GraphState, error) {
	query := strings.TrimSpace(in.Req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", contractx.ErrInvalidInput)
	}
	if len(in.Req.Marketplaces) == 0 {
		return nil, fmt.Errorf("%w: at least one marketplace is required", contractx.ErrInvalidInput)
	}

	markets := make([]contractx.Marketplace, 0, len(in.Req.Marketplaces))
	seen := make(map[contractx.Marketplace]bool)
	for _, raw := range in.Req.Marketplaces {
		mk, ok := contractx.ParseMarketplace(string(raw))
		if !ok {
			return nil, fmt.Errorf("%w: unknown marketplace %q", contractx.ErrInvalidInput, raw)
		}
		if !seen[mk] {
			seen[mk] = true
			markets = append(markets, mk)
		}
	}

	if newID == nil {
		newID = uuid.NewString
	}
	sessionID := strings.TrimSpace(in.Req.SessionID)
	if sessionID == "" {
		sessionID = newID()
	}

	req := in.Req
	req.Query = query
	req.Marketplaces = markets

	return &GraphState{
		Req:       req,
		RequestID: newID(),
		SessionID: sessionID,
	}, nil
}
