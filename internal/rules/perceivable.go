package rules

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pmorten/a11y-auditor/internal/audit"
)

// Perceivable builds the evaluator for WCAG Principle 1: information
// and user interface components must be presentable in ways users can
// perceive.
func Perceivable() *Evaluator {
	return &Evaluator{
		Principle: audit.PrinciplePerceivable,
		Checks: []Check{
			{Name: "1.1.1 Images with Alt Text", Run: checkImageAlt},
			{Name: "1.1.1 Form Controls Named", Run: checkFormControlsNamed},
			{Name: "1.2.1/1.2.2 Media Alternatives", Run: checkMediaAlternatives},
			{Name: "1.3.1 Heading Structure", Run: checkHeadingStructure},
			{Name: "1.3.1 List Structure", Run: checkListStructure},
			{Name: "1.3.1 Table Headers", Run: checkTableHeaders},
			{Name: "1.3.3 Sensory Characteristics", Run: checkSensoryLanguage},
			{Name: "1.4.1 Use of Colour", Run: checkColourOnlyLinks},
			{Name: "1.4.2 Audio Control", Run: checkAudioControl},
			{Name: "Language Declaration", Run: checkLangDeclared},
			{Name: "Page Title", Run: checkPageTitle},
		},
	}
}

func checkImageAlt(doc *goquery.Document) CheckResult {
	const component = "1.1.1 Non-text Content"
	imgs := doc.Find("img")
	total := imgs.Length()
	if total == 0 {
		return vacuous(component, "No images found. WCAG 1.1.1 Level A compliance: N/A")
	}

	withAlt, decorative := 0, 0
	imgs.Each(func(_ int, img *goquery.Selection) {
		alt, ok := img.Attr("alt")
		if !ok {
			return
		}
		withAlt++
		if alt == "" {
			decorative++
		}
	})
	msg := fmt.Sprintf("%d/%d images have alt attributes (%d decorative). WCAG 1.1.1 Level A",
		withAlt, total, decorative)
	return ratio(component, msg, withAlt, total)
}

func checkFormControlsNamed(doc *goquery.Document) CheckResult {
	const component = "1.1.1 Non-text Content (Controls)"
	controls := doc.Find("input, select, textarea, button").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("type", "") != "hidden"
	})
	total := controls.Length()
	if total == 0 {
		return vacuous(component, "No form controls found. WCAG 1.1.1 Level A compliance: N/A")
	}

	named := 0
	controls.Each(func(_ int, ctrl *goquery.Selection) {
		if controlHasLabel(doc, ctrl) {
			named++
		}
	})
	msg := fmt.Sprintf("%d/%d form controls have accessible names. WCAG 1.1.1 Level A", named, total)
	return ratio(component, msg, named, total)
}

func controlHasLabel(doc *goquery.Document, ctrl *goquery.Selection) bool {
	if id, ok := ctrl.Attr("id"); ok && id != "" {
		if doc.Find(fmt.Sprintf("label[for=%q]", id)).Length() > 0 {
			return true
		}
	}
	if hasAttr(ctrl, "aria-label") || hasAttr(ctrl, "aria-labelledby") || hasAttr(ctrl, "title") {
		return true
	}
	return goquery.NodeName(ctrl) == "button" && trimmedText(ctrl) != ""
}

func checkMediaAlternatives(doc *goquery.Document) CheckResult {
	const component = "1.2.1-1.2.2 Time-based Media"
	media := doc.Find("video, audio")
	total := media.Length()
	if total == 0 {
		return vacuous(component, "No media elements found. WCAG 1.2.1-1.2.2 Level A compliance: N/A")
	}

	compliant := 0
	media.Each(func(_ int, m *goquery.Selection) {
		if m.Find("track").Length() > 0 {
			compliant++
			return
		}
		// Transcript links adjacent to the player count as an
		// alternative.
		found := false
		m.Parent().Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			text := strings.ToLower(trimmedText(a))
			for _, word := range []string{"transcript", "caption", "subtitle"} {
				if strings.Contains(text, word) {
					found = true
					return false
				}
			}
			return true
		})
		if found {
			compliant++
		}
	})
	msg := fmt.Sprintf("%d/%d media elements have alternatives (captions/transcripts). WCAG 1.2.1-1.2.2 Level A",
		compliant, total)
	return ratio(component, msg, compliant, total)
}

func checkHeadingStructure(doc *goquery.Document) CheckResult {
	const component = "1.3.1 Info and Relationships (Headings)"
	headings := doc.Find("h1, h2, h3, h4, h5, h6")
	if headings.Length() == 0 {
		return vacuous(component, "No headings found. WCAG 1.3.1 Level A compliance: N/A")
	}

	score := 1.0
	var problems []string

	if h1Count := doc.Find("h1").Length(); h1Count != 1 {
		problems = append(problems, fmt.Sprintf("Found %d H1 tags, should be exactly 1", h1Count))
		score -= 0.3
	}

	lastLevel := 0
	headings.EachWithBreak(func(_ int, h *goquery.Selection) bool {
		name := goquery.NodeName(h)
		level := int(name[1] - '0')
		if level > lastLevel+1 {
			problems = append(problems,
				fmt.Sprintf("Heading hierarchy skips levels (found %s after h%d)", name, lastLevel))
			score -= 0.3
			return false
		}
		lastLevel = level
		return true
	})

	summary := "Proper heading hierarchy"
	if len(problems) > 0 {
		summary = strings.Join(problems, "; ")
	}
	return scored(component, fmt.Sprintf("Heading structure analysis: %s. WCAG 1.3.1 Level A", summary), score)
}

func checkListStructure(doc *goquery.Document) CheckResult {
	const component = "1.3.1 Info and Relationships (Lists)"
	lists := doc.Find("ul, ol, dl")
	total := lists.Length()
	if total == 0 {
		return vacuous(component, "No lists found. WCAG 1.3.1 Level A compliance: N/A")
	}

	proper := 0
	lists.Each(func(_ int, lst *goquery.Selection) {
		switch goquery.NodeName(lst) {
		case "ul", "ol":
			if lst.ChildrenFiltered("li").Length() > 0 {
				proper++
			}
		case "dl":
			if lst.ChildrenFiltered("dt").Length() > 0 && lst.ChildrenFiltered("dd").Length() > 0 {
				proper++
			}
		}
	})
	msg := fmt.Sprintf("%d/%d lists are properly structured. WCAG 1.3.1 Level A", proper, total)
	return ratio(component, msg, proper, total)
}

func checkTableHeaders(doc *goquery.Document) CheckResult {
	const component = "1.3.1 Info and Relationships (Tables)"
	tables := doc.Find("table")
	total := tables.Length()
	if total == 0 {
		return vacuous(component, "No tables found. WCAG 1.3.1 Level A compliance: N/A")
	}

	accessible := 0
	tables.Each(func(_ int, tbl *goquery.Selection) {
		if tbl.Find("th").Length() > 0 || tbl.Find("thead").Length() > 0 || tbl.Find("caption").Length() > 0 {
			accessible++
		}
	})
	msg := fmt.Sprintf("%d/%d tables have proper headers/structure. WCAG 1.3.1 Level A", accessible, total)
	return ratio(component, msg, accessible, total)
}

// Phrases that describe targets purely by sensory characteristics.
var sensoryPhrases = []string{
	"click here", "red button", "green link", "left side", "right side",
	"above", "below", "round button", "square icon",
}

func checkSensoryLanguage(doc *goquery.Document) CheckResult {
	const component = "1.3.3 Sensory Characteristics"
	text := strings.ToLower(doc.Find("body").Text())

	violations := 0
	for _, phrase := range sensoryPhrases {
		if strings.Contains(text, phrase) {
			violations++
		}
	}
	msg := fmt.Sprintf("Found %d potential sensory-only instructions. WCAG 1.3.3 Level A", violations)
	return scored(component, msg, 1-float64(violations)*0.1)
}

func checkColourOnlyLinks(doc *goquery.Document) CheckResult {
	const component = "1.4.1 Use of Colour"
	colourOnly := doc.Find("a[style]").FilterFunction(func(_ int, a *goquery.Selection) bool {
		style := strings.ToLower(a.AttrOr("style", ""))
		return strings.Contains(style, "color:") &&
			(strings.Contains(style, "text-decoration: none") || strings.Contains(style, "text-decoration:none"))
	}).Length()

	score := 1.0
	if colourOnly > 0 {
		score -= 0.3
	}
	msg := fmt.Sprintf("Colour usage analysis: %d links may rely on colour alone. WCAG 1.4.1 Level A", colourOnly)
	return scored(component, msg, score)
}

func checkAudioControl(doc *goquery.Document) CheckResult {
	const component = "1.4.2 Audio Control"
	autoplay := doc.Find("audio[autoplay], video[autoplay]").Length()
	msg := fmt.Sprintf("Found %d autoplay media elements. WCAG 1.4.2 Level A", autoplay)
	if autoplay == 0 {
		return pass(component, msg, 1, 1)
	}
	return CheckResult{Score: 0, Issue: audit.Issue{Component: component, Message: msg, Passed: 0, Total: 1}}
}

func checkLangDeclared(doc *goquery.Document) CheckResult {
	const component = "Language Declaration"
	if doc.Find("html").AttrOr("lang", "") != "" {
		return pass(component, "HTML lang attribute: Present. WCAG 3.1.1 Level A", 1, 1)
	}
	return CheckResult{Score: 0, Issue: audit.Issue{
		Component: component,
		Message:   "HTML lang attribute: Missing. WCAG 3.1.1 Level A",
		Passed:    0,
		Total:     1,
	}}
}

func checkPageTitle(doc *goquery.Document) CheckResult {
	const component = "Page Title"
	if trimmedText(doc.Find("title")) != "" {
		return pass(component, "Page title: Present. WCAG 2.4.2 Level A", 1, 1)
	}
	return CheckResult{Score: 0, Issue: audit.Issue{
		Component: component,
		Message:   "Page title: Missing. WCAG 2.4.2 Level A",
		Passed:    0,
		Total:     1,
	}}
}
