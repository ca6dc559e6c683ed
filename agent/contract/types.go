package contract

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Marketplace identifies a supported marketplace document partition.
type Marketplace string

const (
	MarketplaceAmazon   Marketplace = "amazon"
	MarketplaceFlipkart Marketplace = "flipkart"
	MarketplaceMeesho   Marketplace = "meesho"
	MarketplaceMyntra   Marketplace = "myntra"
)

// KnownMarketplaces returns the closed marketplace set in stable order.
func KnownMarketplaces() []Marketplace {
	return []Marketplace{
		MarketplaceAmazon,
		MarketplaceFlipkart,
		MarketplaceMeesho,
		MarketplaceMyntra,
	}
}

func (m Marketplace) Valid() bool {
	switch m {
	case MarketplaceAmazon, MarketplaceFlipkart, MarketplaceMeesho, MarketplaceMyntra:
		return true
	}
	return false
}

// ParseMarketplace normalizes a raw marketplace identifier.
func ParseMarketplace(raw string) (Marketplace, bool) {
	m := Marketplace(strings.ToLower(strings.TrimSpace(raw)))
	return m, m.Valid()
}

// Area is the business area an action belongs to.
type Area string

const (
	AreaListing       Area = "listing"
	AreaPricing       Area = "pricing"
	AreaInventory     Area = "inventory"
	AreaProfitability Area = "profitability"
	AreaCompliance    Area = "compliance"
	AreaAds           Area = "ads"
	AreaGeneral       Area = "general"
)

func (a Area) Valid() bool {
	switch a {
	case AreaListing, AreaPricing, AreaInventory, AreaProfitability,
		AreaCompliance, AreaAds, AreaGeneral:
		return true
	}
	return false
}

// Priority ranks how urgently an action should be taken.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Impact estimates the expected business effect of an action.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

func (i Impact) Valid() bool {
	return i == ImpactLow || i == ImpactMedium || i == ImpactHigh
}

// ActionItem is a single recommended action. ProductID is nil unless the
// action is scoped to a concrete SKU.
type ActionItem struct {
	Area        Area     `json:"area"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Impact      Impact   `json:"impact"`
	ProductID   *string  `json:"product_id"`
}

// ActionPlan is the prioritized list of actions for the seller.
type ActionPlan struct {
	OverallSummary string       `json:"overall_summary"`
	Actions        []ActionItem `json:"actions"`
}

// CritiqueResult is the critic's read-only review of a plan. It never carries
// plan fields; the critic cannot amend the plan it reviews.
type CritiqueResult struct {
	OverallComment string   `json:"overall_comment"`
	Strengths      []string `json:"strengths"`
	Weaknesses     []string `json:"weaknesses"`
	MissingAreas   []string `json:"missing_areas"`
}

// FinalAnswer is the user-facing result. RefinedActionPlan, when present and
// independently valid, supersedes the planner's plan as the plan of record.
type FinalAnswer struct {
	AnswerMarkdown    string      `json:"answer_markdown"`
	RefinedActionPlan *ActionPlan `json:"refined_action_plan,omitempty"`
	Citations         []string    `json:"citations"`
}

// RetrievedChunk is a unit of policy text with a stable citation identity.
type RetrievedChunk struct {
	Marketplace Marketplace `json:"marketplace"`
	DocID       string      `json:"doc_id"`
	Topic       string      `json:"topic"`
	Anchor      string      `json:"anchor,omitempty"`
	Text        string      `json:"text"`
	Score       float64     `json:"score"`
}

// Citation renders the chunk's citation seed, e.g.
// "amazon:image_requirements:image_requirements.md#hero-image".
func (c RetrievedChunk) Citation() string {
	seed := fmt.Sprintf("%s:%s:%s", c.Marketplace, c.Topic, c.DocID)
	if c.Anchor != "" {
		seed += "#" + c.Anchor
	}
	return seed
}

// SellerProfile is the warehouse-level summary of the seller's catalog.
type SellerProfile struct {
	SellerID          string        `json:"seller_id,omitempty"`
	PrimaryCategories []string      `json:"primary_categories"`
	Marketplaces      []Marketplace `json:"marketplaces"`
	TotalProducts     int           `json:"total_products"`
	ActiveProducts    int           `json:"active_products"`
	Summary           string        `json:"summary,omitempty"`
}

// WarehouseSnapshot is what the external warehouse exposes about a seller.
type WarehouseSnapshot struct {
	Profile              SellerProfile `json:"profile"`
	SalesHighlights      []string      `json:"sales_highlights"`
	CompetitorHighlights []string      `json:"competitor_highlights"`
	InventoryHighlights  []string      `json:"inventory_highlights"`
	ComplianceSummary    string        `json:"compliance_summary"`
}

// SellerContext is the immutable per-request snapshot fed to the pipeline.
// It is built once after warehouse and retrieval complete and never mutated.
type SellerContext struct {
	Profile              SellerProfile `json:"profile"`
	SalesHighlights      []string      `json:"sales_highlights"`
	CompetitorHighlights []string      `json:"competitor_highlights"`
	InventoryHighlights  []string      `json:"inventory_highlights"`
	ComplianceSummary    string        `json:"compliance_summary"`
	EvidenceSummary      []string      `json:"evidence_summary"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	RequestID string    `json:"request_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionRecord is a loaded session: ordered messages plus derived facts.
type SessionRecord struct {
	SessionID string            `json:"session_id"`
	SellerID  string            `json:"seller_id,omitempty"`
	Messages  []Message         `json:"messages"`
	Facts     map[string]string `json:"facts"`
}

// AppendRequest carries one turn's messages into a session. SellerName, when
// set, is persisted as an explicit memory fact that wins over inferred names.
type AppendRequest struct {
	SessionID  string
	SellerID   string
	SellerName string
	Messages   []Message
}

// StageOutcome classifies how a pipeline stage finished.
type StageOutcome string

const (
	StageOK       StageOutcome = "ok"
	StageFailed   StageOutcome = "failed"
	StageDegraded StageOutcome = "degraded"
)

// StageRecord is one entry of the execution trace. Observational only; it
// never feeds back into control flow.
type StageRecord struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Outcome  StageOutcome  `json:"outcome"`
	Retries  int           `json:"retries"`
	Note     string        `json:"note,omitempty"`
}

// CallStats reports how the gateway satisfied one structured completion.
type CallStats struct {
	Provider   string `json:"provider"`
	Attempts   int    `json:"attempts"`
	Repaired   bool   `json:"repaired"`
	FailedOver bool   `json:"failed_over"`
}

// Violation is a single precise schema violation, suitable for a repair
// prompt.
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	if v.Field == "" {
		return v.Reason
	}
	return v.Field + ": " + v.Reason
}

// JoinViolations renders a violation list for logs and repair prompts.
func JoinViolations(vs []Violation) string {
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, "; ")
}

// AnalyzeRequest is the request boundary consumed by the analyze service.
type AnalyzeRequest struct {
	Query        string        `json:"query"`
	Marketplaces []Marketplace `json:"marketplaces"`
	SessionID    string        `json:"session_id,omitempty"`
	SellerID     string        `json:"seller_id,omitempty"`
	SellerName   string        `json:"seller_name,omitempty"`
}

// AnalyzeResponse is the response boundary: the plan of record, the critique,
// the final answer, and the execution trace.
type AnalyzeResponse struct {
	SessionID     string         `json:"session_id"`
	RequestID     string         `json:"request_id"`
	ActionPlan    ActionPlan     `json:"action_plan"`
	Critique      CritiqueResult `json:"critique"`
	FinalAnswer   FinalAnswer    `json:"final_answer"`
	Trace         []StageRecord  `json:"execution_trace"`
	LowConfidence bool           `json:"low_confidence"`
}

// PlannerRequest is the planner stage input.
type PlannerRequest struct {
	Query    string
	Context  SellerContext
	Evidence []RetrievedChunk
	Facts    map[string]string
	History  []Message
}

// CriticRequest is the critic stage input. The plan is passed by value; the
// critic can never mutate the plan of record.
type CriticRequest struct {
	Query string
	Plan  ActionPlan
}

// AnswerRequest is the final-answer stage input.
type AnswerRequest struct {
	Query         string
	Context       SellerContext
	Plan          ActionPlan
	Critique      CritiqueResult
	CitationSeeds []string
}

// SortedFactKeys returns fact keys in stable order for prompt payloads.
func SortedFactKeys(facts map[string]string) []string {
	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
