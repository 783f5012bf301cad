package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pmorten/a11y-auditor/internal/audit"
)

// Operable builds the evaluator for WCAG Principle 2: user interface
// components and navigation must be operable.
func Operable() *Evaluator {
	return &Evaluator{
		Principle: audit.PrincipleOperable,
		Checks: []Check{
			{Name: "2.1.1 Keyboard Accessible", Run: checkKeyboardAccessible},
			{Name: "2.1.2 No Keyboard Trap", Run: checkNoKeyboardTrap},
			{Name: "2.2.1 Timing Adjustable", Run: checkTimingAdjustable},
			{Name: "2.2.2 Pause Stop Hide", Run: checkPauseStopHide},
			{Name: "2.3.1 Three Flashes", Run: checkFlashingContent},
			{Name: "2.4.1 Bypass Blocks", Run: checkBypassBlocks},
			{Name: "2.4.2 Page Titled", Run: checkPageTitled},
			{Name: "2.4.3 Focus Order", Run: checkFocusOrder},
			{Name: "2.4.4 Link Purpose", Run: checkLinkPurpose},
			{Name: "2.4.6 Headings and Labels", Run: checkHeadingsAndLabels},
			{Name: "2.5.3 Label in Name", Run: checkLabelInName},
			{Name: "2.5.5 Target Size", Run: checkTargetSize},
		},
	}
}

func interactiveElements(doc *goquery.Document) *goquery.Selection {
	return doc.Find("a, button, input, select, textarea")
}

func checkKeyboardAccessible(doc *goquery.Document) CheckResult {
	const component = "2.1.1 Keyboard"
	elems := interactiveElements(doc)
	total := elems.Length()
	if total == 0 {
		return vacuous(component, "No interactive elements found. WCAG 2.1.1 Level A compliance: N/A")
	}

	accessible := 0
	elems.Each(func(_ int, el *goquery.Selection) {
		ti, ok := el.Attr("tabindex")
		if !ok {
			accessible++
			return
		}
		if n, err := strconv.Atoi(strings.TrimSpace(ti)); err == nil && n >= 0 {
			accessible++
		}
	})
	msg := fmt.Sprintf("%d/%d interactive elements are keyboard accessible. WCAG 2.1.1 Level A",
		accessible, total)
	return ratio(component, msg, accessible, total)
}

func checkNoKeyboardTrap(doc *goquery.Document) CheckResult {
	const component = "2.1.2 No Keyboard Trap"
	traps := 0
	doc.Find("[tabindex]").Each(func(_ int, el *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(el.AttrOr("tabindex", ""))); err == nil && n < -1 {
			traps++
		}
	})
	msg := fmt.Sprintf("Found %d potential keyboard traps. WCAG 2.1.2 Level A", traps)
	if traps == 0 {
		return pass(component, msg, 1, 1)
	}
	return scored(component, msg, 0)
}

func checkTimingAdjustable(doc *goquery.Document) CheckResult {
	const component = "2.2.1 Timing Adjustable"
	short := 0
	doc.Find(`meta[http-equiv]`).Each(func(_ int, m *goquery.Selection) {
		if !strings.EqualFold(m.AttrOr("http-equiv", ""), "refresh") {
			return
		}
		content := m.AttrOr("content", "")
		secs := content
		if i := strings.IndexAny(content, ";,"); i >= 0 {
			secs = content[:i]
		}
		if n, err := strconv.Atoi(strings.TrimSpace(secs)); err == nil && n < 72000 {
			short++
		}
	})
	msg := fmt.Sprintf("Found %d meta refresh directives below the 20-hour limit. WCAG 2.2.1 Level A", short)
	if short == 0 {
		return pass(component, msg, 1, 1)
	}
	return scored(component, msg, 0)
}

func checkPauseStopHide(doc *goquery.Document) CheckResult {
	const component = "2.2.2 Pause, Stop, Hide"
	moving := doc.Find("audio[autoplay], video[autoplay]").Length()
	animated := doc.Find("[style]").FilterFunction(func(_ int, el *goquery.Selection) bool {
		return strings.Contains(strings.ToLower(el.AttrOr("style", "")), "animation")
	}).Length()
	if animated > 5 {
		moving++
	}
	msg := fmt.Sprintf("Found %d sources of moving content without controls. WCAG 2.2.2 Level A", moving)
	return scored(component, msg, 1-float64(moving)*0.3)
}

func checkFlashingContent(doc *goquery.Document) CheckResult {
	const component = "2.3.1 Three Flashes or Below Threshold"
	flashing := doc.Find("[style], [class]").FilterFunction(func(_ int, el *goquery.Selection) bool {
		return attrContainsAny(el, "style", "blink", "flash", "strobe") ||
			attrContainsAny(el, "class", "blink", "flash", "strobe")
	}).Length()
	msg := fmt.Sprintf("Found %d potentially flashing elements. WCAG 2.3.1 Level A", flashing)
	if flashing == 0 {
		return pass(component, msg, 1, 1)
	}
	return scored(component, msg, 0)
}

func checkBypassBlocks(doc *goquery.Document) CheckResult {
	const component = "2.4.1 Bypass Blocks"
	headings := doc.Find("h1, h2, h3, h4, h5, h6").Length()
	if headings == 0 && interactiveElements(doc).Length() == 0 {
		return vacuous(component, "No repeated blocks to bypass. WCAG 2.4.1 Level A compliance: N/A")
	}

	skipLinks := doc.Find(`a[href^="#"]`).Length()
	landmarks := doc.Find("nav, main, header, footer, [role=navigation], [role=main], [role=banner], [role=contentinfo]").Length()
	if skipLinks > 0 || landmarks > 0 || headings > 0 {
		msg := fmt.Sprintf("Bypass mechanisms present: %d skip links, %d landmarks, %d headings. WCAG 2.4.1 Level A",
			skipLinks, landmarks, headings)
		return pass(component, msg, 1, 1)
	}
	return scored(component, "No skip links, landmarks, or headings found. WCAG 2.4.1 Level A", 0)
}

func checkPageTitled(doc *goquery.Document) CheckResult {
	const component = "2.4.2 Page Titled"
	if trimmedText(doc.Find("title")) != "" {
		return pass(component, "Page has a descriptive title. WCAG 2.4.2 Level A", 1, 1)
	}
	return scored(component, "Page title is missing or empty. WCAG 2.4.2 Level A", 0)
}

func checkFocusOrder(doc *goquery.Document) CheckResult {
	const component = "2.4.3 Focus Order"
	tabbed := doc.Find("[tabindex]")
	total := tabbed.Length()
	if total == 0 {
		return vacuous(component, "No explicit tab order set; natural DOM order applies. WCAG 2.4.3 Level A")
	}

	ordered := 0
	tabbed.Each(func(_ int, el *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(el.AttrOr("tabindex", ""))); err == nil && n >= 0 {
			ordered++
		}
	})
	msg := fmt.Sprintf("%d/%d tabindex values preserve a logical focus order. WCAG 2.4.3 Level A",
		ordered, total)
	return ratio(component, msg, ordered, total)
}

// Link texts that convey no purpose on their own.
var vagueLinkTexts = []string{"click here", "read more", "more", "link", "here", "this"}

func checkLinkPurpose(doc *goquery.Document) CheckResult {
	const component = "2.4.4 Link Purpose"
	links := doc.Find("a")
	total := links.Length()
	if total == 0 {
		return vacuous(component, "No links found. WCAG 2.4.4 Level A compliance: N/A")
	}

	descriptive := 0
	links.Each(func(_ int, a *goquery.Selection) {
		text := strings.ToLower(trimmedText(a))
		for _, vague := range vagueLinkTexts {
			if text == vague {
				return
			}
		}
		if hasAttr(a, "aria-label") || hasAttr(a, "title") || len(text) > 4 {
			descriptive++
		}
	})
	msg := fmt.Sprintf("%d/%d links have descriptive text. WCAG 2.4.4 Level A", descriptive, total)
	return ratio(component, msg, descriptive, total)
}

func checkHeadingsAndLabels(doc *goquery.Document) CheckResult {
	const component = "2.4.6 Headings and Labels"
	headings := doc.Find("h1, h2, h3, h4, h5, h6")
	labels := doc.Find("label")
	total := headings.Length() + labels.Length()
	if total == 0 {
		return vacuous(component, "No headings or labels found. WCAG 2.4.6 Level AA compliance: N/A")
	}

	descriptive := 0
	headings.Each(func(_ int, h *goquery.Selection) {
		if len(trimmedText(h)) > 2 {
			descriptive++
		}
	})
	labels.Each(func(_ int, l *goquery.Selection) {
		if len(trimmedText(l)) > 1 {
			descriptive++
		}
	})
	msg := fmt.Sprintf("%d/%d headings and labels are descriptive. WCAG 2.4.6 Level AA", descriptive, total)
	return ratio(component, msg, descriptive, total)
}

func checkLabelInName(doc *goquery.Document) CheckResult {
	const component = "2.5.3 Label in Name"
	labelled := doc.Find("[aria-label], [title]")
	total := labelled.Length()
	if total == 0 {
		return vacuous(component, "No elements with accessible name overrides found. WCAG 2.5.3 Level A compliance: N/A")
	}

	matching := 0
	labelled.Each(func(_ int, el *goquery.Selection) {
		visible := strings.ToLower(trimmedText(el))
		if visible == "" {
			matching++
			return
		}
		name := strings.ToLower(el.AttrOr("aria-label", el.AttrOr("title", "")))
		if strings.Contains(name, visible) || strings.Contains(visible, name) {
			matching++
		}
	})
	msg := fmt.Sprintf("%d/%d accessible names contain the visible label. WCAG 2.5.3 Level A", matching, total)
	return ratio(component, msg, matching, total)
}

func checkTargetSize(doc *goquery.Document) CheckResult {
	const component = "2.5.5 Target Size"
	tiny := doc.Find("a[style], button[style], input[style]").FilterFunction(func(_ int, el *goquery.Selection) bool {
		style := strings.ToLower(el.AttrOr("style", ""))
		return strings.Contains(style, "width:1") ||
			strings.Contains(style, "height:1") ||
			strings.Contains(style, "font-size:1")
	}).Length()
	msg := fmt.Sprintf("Found %d potentially undersized targets. WCAG 2.5.5 Level AAA", tiny)
	return scored(component, msg, 1-float64(tiny)*0.1)
}
