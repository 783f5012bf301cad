package rules

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pmorten/a11y-auditor/internal/audit"
)

// Robust builds the evaluator for WCAG Principle 4. Only two success
// criteria remain active in WCAG 2.2 (4.1.1 Parsing is obsolete), so
// the budget is 2, topped up by a small bonus for ARIA usage.
func Robust() *Evaluator {
	return &Evaluator{
		Principle: audit.PrincipleRobust,
		Budget:    2,
		Bonus:     ariaUsageBonus,
		Checks: []Check{
			{Name: "4.1.2 Name, Role, Value", Run: checkNameRoleValue},
			{Name: "4.1.3 Status Messages", Run: checkStatusMessages},
		},
	}
}

func checkNameRoleValue(doc *goquery.Document) CheckResult {
	const component = "Name, Role, Value"
	controls := doc.Find("input, select, textarea, button")
	links := doc.Find("a[href]")
	total := controls.Length() + links.Length()
	if total == 0 {
		return vacuous(component, "1/1 interactive elements have proper names and roles")
	}

	named := 0
	controls.Each(func(_ int, el *goquery.Selection) {
		if elementHasAccessibleName(doc, el) {
			named++
		}
	})
	links.Each(func(_ int, a *goquery.Selection) {
		if trimmedText(a) != "" || hasAttr(a, "aria-label") || hasAttr(a, "aria-labelledby") || hasAttr(a, "title") {
			named++
		}
	})

	raw := float64(named) / float64(total)
	// Tiered credit: near-complete naming is treated as complete.
	score := raw
	switch {
	case raw >= 0.95:
		score = 1
	case raw >= 0.8:
		score = 0.8
	case raw >= 0.6:
		score = 0.6
	}
	return CheckResult{
		Score: score,
		Issue: audit.Issue{
			Component: component,
			Message:   fmt.Sprintf("%d/%d interactive elements have proper names and roles", named, total),
			Passed:    float64(named),
			Total:     float64(total),
		},
	}
}

func elementHasAccessibleName(doc *goquery.Document, el *goquery.Selection) bool {
	if id, ok := el.Attr("id"); ok && id != "" &&
		doc.Find(fmt.Sprintf("label[for=%q]", id)).Length() > 0 {
		return true
	}
	if el.ParentsFiltered("label").Length() > 0 {
		return true
	}
	if hasAttr(el, "aria-label") || hasAttr(el, "aria-labelledby") || hasAttr(el, "title") {
		return true
	}
	switch goquery.NodeName(el) {
	case "button":
		return trimmedText(el) != ""
	case "input":
		typ := el.AttrOr("type", "")
		if typ == "submit" || typ == "button" || typ == "reset" {
			return el.AttrOr("value", "") != ""
		}
	}
	return false
}

var statusRoles = map[string]bool{
	"status": true, "alert": true, "log": true, "marquee": true, "timer": true,
}

func checkStatusMessages(doc *goquery.Document) CheckResult {
	const component = "Status Messages"
	if doc.Find("script").Length() == 0 && doc.Find("form, input, select, textarea").Length() == 0 {
		return vacuous(component, "No dynamic content requiring status messages")
	}

	liveRegions := doc.Find("[aria-live]").Length()
	roleCount := 0
	doc.Find("[role]").Each(func(_ int, el *goquery.Selection) {
		if statusRoles[strings.ToLower(el.AttrOr("role", ""))] {
			roleCount++
		}
	})
	alertRoles := doc.Find("[role=alert]").Length()
	mechanisms := liveRegions + roleCount + alertRoles

	statusClasses := doc.Find("[class]").FilterFunction(func(_ int, el *goquery.Selection) bool {
		return attrContainsAny(el, "class", "status", "alert", "message", "notification", "toast")
	}).Length()
	errorClasses := doc.Find("[class]").FilterFunction(func(_ int, el *goquery.Selection) bool {
		return attrContainsAny(el, "class", "error")
	}).Length()
	successClasses := doc.Find("[class]").FilterFunction(func(_ int, el *goquery.Selection) bool {
		return attrContainsAny(el, "class", "success", "confirm", "complete")
	}).Length()

	msg := fmt.Sprintf("Found %d ARIA live regions/status roles and %d status-related elements",
		mechanisms, statusClasses)
	switch {
	case mechanisms > 0:
		return pass(component, msg, 1, 1)
	case statusClasses > 0 || errorClasses > 0 || successClasses > 0:
		// Partial credit: status elements exist but lack ARIA wiring.
		return scored(component, msg, 0.5)
	default:
		return scored(component, msg, 0)
	}
}

// ariaUsageBonus grants up to 20% of a criterion point for ARIA
// adoption across the page.
func ariaUsageBonus(doc *goquery.Document) float64 {
	usage := doc.Find("[role]").Length() +
		doc.Find("[aria-label]").Length() +
		doc.Find("[aria-describedby]").Length()
	bonus := float64(usage) * 0.02
	if bonus > 0.2 {
		bonus = 0.2
	}
	return bonus
}
