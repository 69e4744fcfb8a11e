package scrape

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// UnreadStrategy decides whether a chat entry has unread messages. The
// unread badge markup has changed over time, so each known shape is kept
// as a named version and selected by config.
type UnreadStrategy struct {
	Version string
	// Markers are tried in order; the first match is the unread badge.
	Markers []string
}

// DefaultUnreadStrategy is the version used when none is configured.
const DefaultUnreadStrategy = "v3"

var unreadStrategies = map[string]UnreadStrategy{
	"v1": {Version: "v1", Markers: []string{
		`span[aria-label*="unread message"]`,
	}},
	"v2": {Version: "v2", Markers: []string{
		`span[aria-label*="unread message"]`,
		`span[aria-label*="messages unread"]`,
	}},
	"v3": {Version: "v3", Markers: []string{
		`span[aria-label*="unread message"]`,
		`span[aria-label*="messages unread"]`,
		`[data-testid="icon-unread-count"]`,
		`span[data-icon="unread-count"]`,
	}},
}

// LookupUnreadStrategy returns the strategy registered under version.
// An empty version selects DefaultUnreadStrategy.
func LookupUnreadStrategy(version string) (UnreadStrategy, error) {
	if version == "" {
		version = DefaultUnreadStrategy
	}
	s, ok := unreadStrategies[version]
	if !ok {
		return UnreadStrategy{}, fmt.Errorf("unknown unread strategy %q (known: %s)",
			version, strings.Join(UnreadStrategyVersions(), ", "))
	}
	return s, nil
}

// UnreadStrategyVersions lists the registered versions.
func UnreadStrategyVersions() []string {
	versions := make([]string, 0, len(unreadStrategies))
	for v := range unreadStrategies {
		versions = append(versions, v)
	}
	slices.Sort(versions)
	return versions
}

var digits = regexp.MustCompile(`\d+`)

// Match returns the unread count of item, or ok=false when it carries no
// unread marker. The count comes from the first digit run of the marker's
// aria-label, then its text, and defaults to 1. A marker reading zero is
// not unread; one too large for an int saturates at math.MaxInt.
func (s UnreadStrategy) Match(item *goquery.Selection) (count int, ok bool) {
	for _, sel := range s.Markers {
		marker := item.Find(sel).First()
		if marker.Length() == 0 {
			continue
		}
		label, _ := marker.Attr("aria-label")
		for _, src := range []string{label, marker.Text()} {
			if d := digits.FindString(src); d != "" {
				n, err := strconv.Atoi(d)
				if errors.Is(err, strconv.ErrRange) {
					return math.MaxInt, true
				}
				if err != nil || n < 1 {
					return 0, false
				}
				return n, true
			}
		}
		return 1, true
	}
	return 0, false
}
