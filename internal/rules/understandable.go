package rules

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pmorten/a11y-auditor/internal/audit"
)

// Understandable builds the evaluator for WCAG Principle 3. HTML-only
// parsing has limited reach here; several criteria really need user
// testing, so the checks settle for structural proxies. Each criterion
// contributes one point to a fixed budget of 17.
func Understandable() *Evaluator {
	return &Evaluator{
		Principle: audit.PrincipleUnderstandable,
		Budget:    17,
		Checks: []Check{
			{Name: "3.1.1 Language of Page", Run: checkLanguageOfPage},
			{Name: "3.1.2 Language of Parts", Run: checkLanguageOfParts},
			{Name: "3.1.3 Unusual Words", Run: checkUnusualWords},
			{Name: "3.1.4 Abbreviations", Run: checkAbbreviations},
			{Name: "3.1.5 Reading Level", Run: checkReadingLevel},
			{Name: "3.1.6 Pronunciation", Run: checkPronunciation},
			{Name: "3.2.1 On Focus", Run: checkOnFocus},
			{Name: "3.2.2 On Input", Run: checkOnInput},
			{Name: "3.2.3 Consistent Navigation", Run: checkConsistentNavigation},
			{Name: "3.2.4 Consistent Identification", Run: checkConsistentIdentification},
			{Name: "3.2.5 Change on Request", Run: checkChangeOnRequest},
			{Name: "3.3.1 Error Identification", Run: checkErrorIdentification},
			{Name: "3.3.2 Labels or Instructions", Run: checkLabelsOrInstructions},
			{Name: "3.3.3 Error Suggestion", Run: checkErrorSuggestion},
			{Name: "3.3.4 Error Prevention", Run: checkErrorPrevention},
			{Name: "3.3.5 Help", Run: checkHelpAvailable},
			{Name: "3.3.6 Error Prevention (All)", Run: checkErrorPreventionAll},
		},
	}
}

func bodyText(doc *goquery.Document) string {
	return trimmedText(doc.Find("body"))
}

func formElements(doc *goquery.Document) *goquery.Selection {
	return doc.Find("input, select, textarea")
}

func checkLanguageOfPage(doc *goquery.Document) CheckResult {
	const component = "Language of Page"
	if lang := doc.Find("html").AttrOr("lang", ""); lang != "" {
		return pass(component, fmt.Sprintf("Page language declared: %s", lang), 1, 1)
	}
	return scored(component, "Missing lang attribute on <html> element", 0)
}

func checkLanguageOfParts(doc *goquery.Document) CheckResult {
	const component = "Language of Parts"
	n := doc.Find("[lang]").Length()
	if n > 0 {
		return pass(component, fmt.Sprintf("Found %d elements with language declarations", n), 1, 1)
	}
	return scored(component, "No language declarations found for content parts", 0)
}

func checkUnusualWords(doc *goquery.Document) CheckResult {
	const component = "Unusual Words"
	if bodyText(doc) == "" {
		return vacuous(component, "No text content to define terms for")
	}

	mechanisms := doc.Find("dl").Length()
	doc.Find("[title]").Each(func(_ int, el *goquery.Selection) {
		if len(el.AttrOr("title", "")) > 10 {
			mechanisms++
		}
	})
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if attrContainsAny(a, "href", "glossary", "definition", "define") {
			mechanisms++
		}
	})
	doc.Find("[class]").Each(func(_ int, el *goquery.Selection) {
		if attrContainsAny(el, "class", "definition", "tooltip", "glossary") {
			mechanisms++
		}
	})

	msg := fmt.Sprintf("Found %d definition mechanisms (glossaries, tooltips, definition lists)", mechanisms)
	if mechanisms > 0 {
		return pass(component, msg, 1, 1)
	}
	return scored(component, msg, 0)
}

func checkAbbreviations(doc *goquery.Document) CheckResult {
	const component = "Abbreviations"
	abbrs := doc.Find("abbr, acronym")
	total := abbrs.Length()
	if total == 0 {
		return vacuous(component, "No abbreviations found")
	}

	titled := 0
	abbrs.Each(func(_ int, a *goquery.Selection) {
		if a.AttrOr("title", "") != "" {
			titled++
		}
	})
	msg := fmt.Sprintf("%d/%d abbreviations have explanations", titled, total)
	if titled == total {
		return pass(component, msg, 1, 1)
	}
	return scored(component, msg, 0)
}

func checkReadingLevel(doc *goquery.Document) CheckResult {
	const component = "Reading Level"
	words := strings.Fields(doc.Text())
	avg := 0.0
	if len(words) > 0 {
		chars := 0
		for _, w := range words {
			chars += len(w)
		}
		avg = float64(chars) / float64(len(words))
	}
	msg := fmt.Sprintf("Average word length: %.1f characters", avg)
	if avg < 6 {
		return pass(component, msg, 1, 1)
	}
	return scored(component, msg, 0)
}

func checkPronunciation(doc *goquery.Document) CheckResult {
	const component = "Pronunciation"
	if bodyText(doc) == "" {
		return vacuous(component, "No text content requiring pronunciation guidance")
	}
	ruby := doc.Find("ruby").Length()
	msg := fmt.Sprintf("Found %d pronunciation guide elements", ruby)
	if ruby > 0 {
		return pass(component, msg, 1, 1)
	}
	return scored(component, msg, 0)
}

func handlerTriggersNavigation(val string) bool {
	val = strings.ToLower(val)
	return strings.Contains(val, "submit") || strings.Contains(val, "location")
}

func checkOnFocus(doc *goquery.Document) CheckResult {
	const component = "On Focus"
	issues := 0
	doc.Find("input, select, button").Each(func(_ int, el *goquery.Selection) {
		if handlerTriggersNavigation(el.AttrOr("onfocus", "")) {
			issues++
		}
	})
	msg := fmt.Sprintf("Found %d potential focus-triggered context changes", issues)
	if issues == 0 {
		return pass(component, msg, 1, 1)
	}
	return scored(component, msg, 0)
}

func checkOnInput(doc *goquery.Document) CheckResult {
	const component = "On Input"
	issues := 0
	doc.Find("input, select").Each(func(_ int, el *goquery.Selection) {
		if handlerTriggersNavigation(el.AttrOr("onchange", "")) {
			issues++
		}
	})
	msg := fmt.Sprintf("Found %d potential input-triggered context changes", issues)
	if issues == 0 {
		return pass(component, msg, 1, 1)
	}
	return scored(component, msg, 0)
}

func checkConsistentNavigation(doc *goquery.Document) CheckResult {
	const component = "Consistent Navigation"
	if doc.Find("a").Length() == 0 {
		return vacuous(component, "No navigation content found")
	}
	navs := doc.Find("nav").Length()
	msg := fmt.Sprintf("Found %d navigation landmarks", navs)
	if navs > 0 {
		return pass(component, msg, 1, 1)
	}
	return scored(component, msg, 0)
}

func checkConsistentIdentification(doc *goquery.Document) CheckResult {
	const component = "Consistent Identification"
	buttons := doc.Find("button").Length()
	links := doc.Find("a").Length()
	if buttons == 0 && links == 0 {
		return vacuous(component, "No repeated components requiring consistent identification")
	}
	return pass(component,
		fmt.Sprintf("Found %d buttons and %d links for consistency analysis", buttons, links), 1, 1)
}

func checkChangeOnRequest(doc *goquery.Document) CheckResult {
	const component = "Change on Request"
	auto := doc.Find(`meta[http-equiv]`).FilterFunction(func(_ int, m *goquery.Selection) bool {
		return strings.EqualFold(m.AttrOr("http-equiv", ""), "refresh")
	}).Length()
	if auto == 0 {
		return pass(component, "No automatic redirects or refreshes found", 1, 1)
	}
	return scored(component, "Automatic page changes detected", 0)
}

func errorMechanismCount(doc *goquery.Document) int {
	n := doc.Find("[role=alert]").Length()
	doc.Find("[class]").Each(func(_ int, el *goquery.Selection) {
		if attrContainsAny(el, "class", "error") {
			n++
		}
	})
	return n
}

func checkErrorIdentification(doc *goquery.Document) CheckResult {
	const component = "Error Identification"
	if formElements(doc).Length() == 0 {
		return vacuous(component, "No input fields requiring error identification")
	}
	n := errorMechanismCount(doc)
	msg := fmt.Sprintf("Found %d error identification elements", n)
	if n > 0 {
		return pass(component, msg, 1, 1)
	}
	return scored(component, msg, 0)
}

func checkLabelsOrInstructions(doc *goquery.Document) CheckResult {
	const component = "Labels or Instructions"
	fields := formElements(doc)
	total := fields.Length()
	if total == 0 {
		return vacuous(component, "No form elements found")
	}

	labelled := 0
	fields.Each(func(_ int, el *goquery.Selection) {
		if id, ok := el.Attr("id"); ok && id != "" &&
			doc.Find(fmt.Sprintf("label[for=%q]", id)).Length() > 0 {
			labelled++
			return
		}
		if el.ParentsFiltered("label").Length() > 0 {
			labelled++
			return
		}
		if hasAttr(el, "aria-label") || hasAttr(el, "aria-labelledby") {
			labelled++
			return
		}
		typ := el.AttrOr("type", "")
		if hasAttr(el, "placeholder") && (typ == "text" || typ == "email" || typ == "password") {
			labelled++
		}
	})
	msg := fmt.Sprintf("%d/%d form elements have labels or instructions", labelled, total)
	if labelled == total {
		return pass(component, msg, 1, 1)
	}
	return scored(component, msg, 0)
}

func checkErrorSuggestion(doc *goquery.Document) CheckResult {
	const component = "Error Suggestion"
	if formElements(doc).Length() == 0 {
		return vacuous(component, "No input fields requiring error suggestions")
	}
	// Identified errors are assumed to carry correction suggestions.
	if errorMechanismCount(doc) > 0 {
		return pass(component, "Error suggestion mechanisms available", 1, 1)
	}
	return scored(component, "No error suggestion mechanisms found", 0)
}

func confirmationTextPresent(doc *goquery.Document) bool {
	text := strings.ToLower(doc.Text())
	return strings.Contains(text, "confirm") || strings.Contains(text, "verify")
}

func checkErrorPrevention(doc *goquery.Document) CheckResult {
	const component = "Error Prevention"
	if formElements(doc).Length() == 0 {
		return vacuous(component, "No data entry requiring error prevention")
	}
	if confirmationTextPresent(doc) {
		return pass(component, "Found confirmation/verification elements", 1, 1)
	}
	return scored(component, "Found 0 confirmation/verification elements", 0)
}

func checkHelpAvailable(doc *goquery.Document) CheckResult {
	const component = "Help"
	if formElements(doc).Length() == 0 {
		return vacuous(component, "No input requiring contextual help")
	}
	helpText := strings.Contains(strings.ToLower(doc.Text()), "help")
	helpLinks := doc.Find("a[href]").FilterFunction(func(_ int, a *goquery.Selection) bool {
		return attrContainsAny(a, "href", "help")
	}).Length()
	if helpText || helpLinks > 0 {
		return pass(component, fmt.Sprintf("Found help content (%d help links)", helpLinks), 1, 1)
	}
	return scored(component, "No help content found", 0)
}

func checkErrorPreventionAll(doc *goquery.Document) CheckResult {
	const component = "Error Prevention (All)"
	submits := doc.Find(`input[type=submit], button[type=submit]`).Length()
	if submits == 0 {
		return vacuous(component, "No submissions requiring enhanced error prevention")
	}
	if confirmationTextPresent(doc) {
		return pass(component, "Enhanced error prevention mechanisms found", 1, 1)
	}
	return scored(component, "No enhanced error prevention found", 0)
}
