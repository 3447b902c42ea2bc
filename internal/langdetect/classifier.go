// Package langdetect tags crawled text as Portuguese or English.
package langdetect

import (
	"net/url"
	"strings"

	"github.com/abadojack/whatlanggo"

	"github.com/JakeFAU/bank-content-crawler/internal/crawler"
)

// Undetermined is returned by an Identifier that cannot decide.
const Undetermined = "und"

// Identifier is the statistical language detector. It returns an ISO 639-3
// code or Undetermined.
type Identifier interface {
	Identify(text string) string
}

// englishSegments are path markers for the English section of the site.
var englishSegments = []string{"/en/", "/english/"}

// Classifier maps detector output onto the supported languages, with a URL
// path fallback.
type Classifier struct {
	identifier Identifier
}

// New returns a Classifier backed by whatlanggo.
func New() *Classifier {
	return &Classifier{identifier: Whatlang{}}
}

// NewWithIdentifier swaps the detector, mainly for tests. A nil identifier
// forces the URL fallback.
func NewWithIdentifier(identifier Identifier) *Classifier {
	return &Classifier{identifier: identifier}
}

// Classify returns pt or en. Portuguese and English detections map directly,
// an undetermined result defaults to pt, and anything else (or no detector)
// falls back to the URL path.
func (c *Classifier) Classify(text, sourceURL string) crawler.Language {
	if c.identifier != nil {
		switch c.identifier.Identify(text) {
		case "por":
			return crawler.LanguagePortuguese
		case "eng":
			return crawler.LanguageEnglish
		case Undetermined:
			return crawler.LanguagePortuguese
		}
	}
	return FromURL(sourceURL)
}

// FromURL returns en when the path carries an English marker segment and pt
// otherwise.
func FromURL(sourceURL string) crawler.Language {
	path := sourceURL
	if u, err := url.Parse(sourceURL); err == nil && u.Path != "" {
		path = u.Path
	}
	path = strings.ToLower(path)
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	for _, seg := range englishSegments {
		if strings.Contains(path, seg) {
			return crawler.LanguageEnglish
		}
	}
	return crawler.LanguagePortuguese
}

// Whatlang adapts whatlanggo to Identifier.
type Whatlang struct{}

// Identify runs trigram detection over text.
func (Whatlang) Identify(text string) string {
	info := whatlanggo.Detect(text)
	switch {
	case info.Script == nil || info.Lang < 0:
		return Undetermined
	case info.Lang == whatlanggo.Por:
		return "por"
	case info.Lang == whatlanggo.Eng:
		return "eng"
	default:
		return info.Lang.String()
	}
}
