// Package textnorm turns rendered HTML or extracted PDF text into clean,
// single-spaced plain text that keeps Portuguese diacritics.
package textnorm

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// DefaultRemoveSelectors lists the boilerplate regions dropped before text
// extraction.
var DefaultRemoveSelectors = []string{
	"nav",
	"header",
	"footer",
	".cookie-banner",
	".cookie-notice",
	".navigation",
	".breadcrumb",
	".social-media",
	".advertisement",
	`[class*="cookie"]`,
	`[id*="cookie"]`,
}

// ContentSelectors are tried in order; the first match with text wins.
var ContentSelectors = []string{
	"main",
	`[role="main"]`,
	".main-content",
	".content",
	".page-content",
	"article",
	".article-content",
}

const noiseSelector = "script, style, noscript"

var (
	spaceRun      = regexp.MustCompile(`[\s\p{Z}]+`)
	disallowed    = regexp.MustCompile(`[^\w\s\x{00C0}-\x{017F}.,!?;:()\-"']`)
	punctuationRn = regexp.MustCompile(`[.,!?;:]{2,}`)
)

// Normalizer cleans HTML and plain text.
type Normalizer struct {
	removeSelectors []string
}

// New builds a Normalizer. An empty selector list falls back to
// DefaultRemoveSelectors.
func New(removeSelectors []string) *Normalizer {
	sel := make([]string, 0, len(removeSelectors))
	for _, s := range removeSelectors {
		if s = strings.TrimSpace(s); s != "" {
			sel = append(sel, s)
		}
	}
	if len(sel) == 0 {
		sel = append(sel, DefaultRemoveSelectors...)
	}
	return &Normalizer{removeSelectors: sel}
}

// NormalizeHTML strips noise from markup, picks the main content region and
// cleans its text. Unparseable markup yields an empty string.
func (n *Normalizer) NormalizeHTML(markup string) string {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	stripComments(root)
	doc := goquery.NewDocumentFromNode(root)

	// Noise goes first so fallback text never contains it.
	for _, sel := range n.removeSelectors {
		doc.Find(sel).Remove()
	}
	doc.Find(noiseSelector).Remove()

	return NormalizeText(mainText(doc))
}

func stripComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			stripComments(c)
		}
		c = next
	}
}

func mainText(doc *goquery.Document) string {
	for _, sel := range ContentSelectors {
		if text := doc.Find(sel).Text(); strings.TrimSpace(text) != "" {
			return text
		}
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return body.Text()
	}
	return doc.Text()
}

// NormalizeText applies the character whitelist, collapses whitespace and
// punctuation runs, and trims. It is idempotent.
func NormalizeText(text string) string {
	text = spaceRun.ReplaceAllString(text, " ")
	text = disallowed.ReplaceAllString(text, "")
	text = spaceRun.ReplaceAllString(text, " ")
	text = punctuationRn.ReplaceAllString(text, ".")
	return strings.TrimSpace(text)
}
