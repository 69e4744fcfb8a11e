package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/matheus3301/wppscrape/internal/archive"
)

// parseMessages extracts message bubbles from the message pane's outerHTML
// in render order. Bubbles without text (media, stickers) are dropped.
func parseMessages(markup string, loc Locators) ([]archive.Message, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	timeChain := []Extractor{prePlainTime(loc.PrePlainTextAttr), Text(loc.MessageMeta)}

	var msgs []archive.Message
	doc.Find(loc.MessageNode).Each(func(_ int, node *goquery.Selection) {
		text := strings.TrimSpace(node.Find(loc.MessageText).First().Text())
		if text == "" {
			return
		}
		dir := archive.Received
		if node.HasClass(loc.OutgoingClass) {
			dir = archive.Sent
		}
		msgs = append(msgs, archive.Message{
			Text: text,
			Time: FirstNonEmpty(node, timeChain...),
			Type: dir,
		})
	})
	return msgs, nil
}

// prePlainTime reads the bracketed part of a copyable-text prefix such as
// "[10:42, 3/1/2024] Alice: ", yielding "10:42, 3/1/2024".
func prePlainTime(attr string) Extractor {
	return func(s *goquery.Selection) string {
		v, ok := s.Attr(attr)
		if !ok {
			v, _ = s.Find("[" + attr + "]").First().Attr(attr)
		}
		v = strings.TrimSpace(v)
		if !strings.HasPrefix(v, "[") {
			return ""
		}
		end := strings.Index(v, "]")
		if end < 0 {
			return ""
		}
		return strings.TrimSpace(v[1:end])
	}
}
