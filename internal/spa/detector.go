// Package spa detects single-page applications from server-rendered
// HTML. SPA shells carry almost no static markup, so checklist scores
// computed from them understate the real page; detection lets the
// scorer soften the penalty.
package spa

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Framework fingerprints looked for in script sources, inline script
// bodies, and meta tags.
var frameworkNames = []string{
	"react", "vue", "angular", "next", "gatsby", "svelte", "ember", "backbone",
}

// Detect reports whether the document looks like a client-rendered
// application shell. raw is the payload doc was parsed from; an
// effectively empty payload is a shell before any markup signal is
// consulted. Any single indicator is enough.
func Detect(doc *goquery.Document, raw []byte) bool {
	if len(bytes.TrimSpace(raw)) == 0 {
		return true
	}
	if len(strings.TrimSpace(doc.Find("body").Text())) < 100 {
		return true
	}
	if strings.TrimSpace(doc.Find("title").Text()) == "" {
		return true
	}
	if doc.Find("a, button, input, form").Length() == 0 {
		return true
	}
	if doc.Find("h1, h2, h3, h4, h5, h6").Length() == 0 {
		return true
	}
	return usesFramework(doc)
}

func usesFramework(doc *goquery.Document) bool {
	found := false
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := strings.ToLower(s.AttrOr("src", ""))
		body := strings.ToLower(s.Text())
		for _, name := range frameworkNames {
			if strings.Contains(src, name) || strings.Contains(body, name) {
				found = true
				return false
			}
		}
		return true
	})
	if found {
		return true
	}
	doc.Find("meta[name=generator], meta[name=framework]").EachWithBreak(func(_ int, m *goquery.Selection) bool {
		content := strings.ToLower(m.AttrOr("content", ""))
		for _, name := range frameworkNames {
			if strings.Contains(content, name) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}
