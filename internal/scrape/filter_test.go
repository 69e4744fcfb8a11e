package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/wppscrape/internal/page/pagetest"
	"go.uber.org/zap"
)

func testFilters(d *pagetest.Driver) *FilterController {
	return NewFilterController(d, loc, time.Second, fastSettle(), zap.NewNop())
}

func TestParseFilterMode(t *testing.T) {
	tests := []struct {
		in      string
		want    FilterMode
		wantErr bool
	}{
		{"unread", FilterUnread, false},
		{"  Group\n", FilterGroup, false},
		{"ALL", FilterAll, false},
		{"favorites", FilterFavorites, false},
		{"archived", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFilterMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFilterMode(%q) = %q, %v; want %q, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestSelectFilter(t *testing.T) {
	d := fakeWhatsApp(chatList(), nil)
	var clicked []any
	d.OnEvaluate(func(_ string, args []any) (any, error) {
		clicked = append(clicked, args...)
		return true, nil
	})
	f := testFilters(d)

	if err := f.SelectFilter(context.Background(), FilterGroup); err != nil {
		t.Fatalf("SelectFilter() error = %v", err)
	}
	if f.Active() != FilterGroup {
		t.Errorf("Active() = %q, want group", f.Active())
	}
	if len(clicked) != 1 || clicked[0] != "#group-filter" {
		t.Errorf("clicked %v, want [#group-filter]", clicked)
	}
}

func TestSelectFilterMissingControls(t *testing.T) {
	tests := []struct {
		name  string
		setup func(d *pagetest.Driver)
	}{
		{"no tablist", func(d *pagetest.Driver) { d.Hide(loc.FilterTabs) }},
		{"no button", func(d *pagetest.Driver) { d.Hide(loc.FilterButtonFor(FilterUnread)) }},
		{"click found nothing", func(d *pagetest.Driver) {
			d.OnEvaluate(func(string, []any) (any, error) { return false, nil })
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := fakeWhatsApp(chatList(), nil)
			tt.setup(d)
			f := testFilters(d)

			err := f.SelectFilter(context.Background(), FilterUnread)
			if !errors.Is(err, ErrFilterNotFound) {
				t.Errorf("SelectFilter() error = %v, want ErrFilterNotFound", err)
			}
			if f.Active() != "" {
				t.Errorf("Active() = %q after failure, want empty", f.Active())
			}
		})
	}
}
