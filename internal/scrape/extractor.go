package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extractor resolves one logical field from a rendered node. An empty
// result means "not found here, try the next one".
type Extractor func(*goquery.Selection) string

// Attr reads attribute attr of the first descendant matching selector.
func Attr(selector, attr string) Extractor {
	return func(s *goquery.Selection) string {
		v, _ := s.Find(selector).First().Attr(attr)
		return strings.TrimSpace(v)
	}
}

// Text reads the text of the first descendant matching selector.
func Text(selector string) Extractor {
	return func(s *goquery.Selection) string {
		return strings.TrimSpace(s.Find(selector).First().Text())
	}
}

// FirstNonEmpty runs chain in order and returns the first non-empty result.
func FirstNonEmpty(s *goquery.Selection, chain ...Extractor) string {
	for _, extract := range chain {
		if v := extract(s); v != "" {
			return v
		}
	}
	return ""
}

// UnknownChat is the display name used when no extractor finds one.
const UnknownChat = "Unknown Chat"

// titleChain resolves a chat entry's display name.
var titleChain = []Extractor{
	Attr("span[title]", "title"),
	Text(`[data-testid="contact-name"]`),
	Text("span[dir=auto]"),
}
