// Package validate holds the pure schema validators for structured model
// output. Every validator is idempotent: the same raw input always yields
// the same typed value or the same violation list.
package validate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	contractx "sellerpilot/agent/contract"
)

var citationRe = regexp.MustCompile(
	`^(amazon|flipkart|meesho|myntra):[a-z0-9_-]+:[A-Za-z0-9._-]+(#[A-Za-z0-9_-]+)?$`,
)

// planShapedKeys are the fields the critic must never produce. Their presence
// means the critic tried to amend the plan instead of reviewing it.
var planShapedKeys = []string{"actions", "action_plan", "refined_action_plan", "action_items"}

// Citation reports whether s is a well-formed citation string.
func Citation(s string) bool {
	return citationRe.MatchString(s)
}

// ActionPlan decodes and validates raw planner output.
func ActionPlan(raw []byte) (contractx.ActionPlan, []contractx.Violation) {
	var plan contractx.ActionPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return contractx.ActionPlan{}, []contractx.Violation{{Reason: "response is not valid JSON for an action plan"}}
	}
	if vs := ActionPlanValue(plan); len(vs) > 0 {
		return contractx.ActionPlan{}, vs
	}
	return plan, nil
}

// ActionPlanValue validates an already-decoded plan. Used both for planner
// output and for re-validating a refined plan embedded in a final answer.
func ActionPlanValue(plan contractx.ActionPlan) []contractx.Violation {
	var vs []contractx.Violation
	if strings.TrimSpace(plan.OverallSummary) == "" {
		vs = append(vs, contractx.Violation{Field: "overall_summary", Reason: "must be a non-empty string"})
	}
	if len(plan.Actions) == 0 {
		vs = append(vs, contractx.Violation{Field: "actions", Reason: "must contain at least one action"})
	}
	for i, a := range plan.Actions {
		vs = append(vs, actionItemValue(i, a)...)
	}
	return vs
}

func actionItemValue(i int, a contractx.ActionItem) []contractx.Violation {
	field := func(name string) string { return fmt.Sprintf("actions[%d].%s", i, name) }

	var vs []contractx.Violation
	if !a.Area.Valid() {
		vs = append(vs, contractx.Violation{Field: field("area"), Reason: fmt.Sprintf("%q is not one of listing|pricing|inventory|profitability|compliance|ads|general", a.Area)})
	}
	if strings.TrimSpace(a.Title) == "" {
		vs = append(vs, contractx.Violation{Field: field("title"), Reason: "must be a non-empty string"})
	}
	if strings.TrimSpace(a.Description) == "" {
		vs = append(vs, contractx.Violation{Field: field("description"), Reason: "must be a non-empty string"})
	}
	if !a.Priority.Valid() {
		vs = append(vs, contractx.Violation{Field: field("priority"), Reason: fmt.Sprintf("%q is not one of low|medium|high", a.Priority)})
	}
	if !a.Impact.Valid() {
		vs = append(vs, contractx.Violation{Field: field("impact"), Reason: fmt.Sprintf("%q is not one of low|medium|high", a.Impact)})
	}
	if a.ProductID != nil && strings.TrimSpace(*a.ProductID) == "" {
		vs = append(vs, contractx.Violation{Field: field("product_id"), Reason: "must be null or a non-empty product identifier"})
	}
	return vs
}

// Critique decodes and validates raw critic output. Plan-shaped fields are a
// violation, not a warning: the critic is read-only with respect to the plan.
func Critique(raw []byte) (contractx.CritiqueResult, []contractx.Violation) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return contractx.CritiqueResult{}, []contractx.Violation{{Reason: "response is not a valid JSON object"}}
	}

	var vs []contractx.Violation
	for _, key := range planShapedKeys {
		if _, ok := probe[key]; ok {
			vs = append(vs, contractx.Violation{Field: key, Reason: "critic output must not contain action-plan fields"})
		}
	}

	var crit contractx.CritiqueResult
	if err := json.Unmarshal(raw, &crit); err != nil {
		return contractx.CritiqueResult{}, append(vs, contractx.Violation{Reason: "response does not match the critique shape"})
	}
	if strings.TrimSpace(crit.OverallComment) == "" {
		vs = append(vs, contractx.Violation{Field: "overall_comment", Reason: "must be a non-empty string"})
	}
	if len(vs) > 0 {
		return contractx.CritiqueResult{}, vs
	}
	return crit, nil
}

// FinalAnswer decodes and validates raw final-answer output. The embedded
// refined plan is decoded but deliberately not value-checked here; the
// orchestrator re-validates it independently and discards it on failure
// without failing the stage.
func FinalAnswer(raw []byte) (contractx.FinalAnswer, []contractx.Violation) {
	var ans contractx.FinalAnswer
	if err := json.Unmarshal(raw, &ans); err != nil {
		return contractx.FinalAnswer{}, []contractx.Violation{{Reason: "response is not valid JSON for a final answer"}}
	}

	var vs []contractx.Violation
	if strings.TrimSpace(ans.AnswerMarkdown) == "" {
		vs = append(vs, contractx.Violation{Field: "answer_markdown", Reason: "must be non-empty markdown"})
	}
	for i, c := range ans.Citations {
		if !Citation(c) {
			vs = append(vs, contractx.Violation{
				Field:  fmt.Sprintf("citations[%d]", i),
				Reason: fmt.Sprintf("%q does not match marketplace:topic:filename[#anchor]", c),
			})
		}
	}
	if len(vs) > 0 {
		return contractx.FinalAnswer{}, vs
	}
	return ans, nil
}
