package scrape

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/matheus3301/wppscrape/internal/page"
	"go.uber.org/zap"
)

// ChatSummary is one unread chat entry as rendered in the chat list.
// UnreadCount is always at least 1.
type ChatSummary struct {
	Name            string `json:"name"`
	UnreadCount     int    `json:"unread_count"`
	IsGroup         bool   `json:"is_group"`
	IsMuted         bool   `json:"is_muted"`
	LastMessage     string `json:"last_message,omitempty"`
	LastMessageTime string `json:"last_message_time,omitempty"`
}

// Scanner enumerates unread chats in the rendered chat list.
type Scanner struct {
	driver  page.Driver
	loc     Locators
	unread  UnreadStrategy
	timeout time.Duration
	logger  *zap.Logger
}

// NewScanner creates a scanner. timeout bounds the wait for the list.
func NewScanner(d page.Driver, loc Locators, unread UnreadStrategy, timeout time.Duration, logger *zap.Logger) *Scanner {
	return &Scanner{
		driver:  d,
		loc:     loc,
		unread:  unread,
		timeout: timeout,
		logger:  logger,
	}
}

// Scan returns the unread chats, most unread first. It never fails: a list
// that has not rendered yields an empty result.
func (s *Scanner) Scan(ctx context.Context) []ChatSummary {
	var markup string
	err := isolate(s.logger, "scan", func() error {
		if err := s.driver.WaitForSelector(ctx, s.loc.ChatList, s.timeout); err != nil {
			return fmt.Errorf("%w: %v", ErrNotLoaded, err)
		}
		var err error
		markup, err = s.driver.HTML(ctx, s.loc.ChatList)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNotLoaded, err)
		}
		return nil
	})
	if err != nil {
		return nil
	}

	chats := s.parse(markup)
	s.logger.Debug("chat list scanned", zap.Int("unread", len(chats)), zap.String("strategy", s.unread.Version))
	return chats
}

// parse extracts unread entries from the chat list's outerHTML.
func (s *Scanner) parse(markup string) []ChatSummary {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		s.logger.Warn("failed to parse chat list", zap.Error(err))
		return nil
	}

	var chats []ChatSummary
	doc.Find(s.loc.ChatItem).Each(func(i int, item *goquery.Selection) {
		var (
			chat ChatSummary
			ok   bool
		)
		err := isolate(s.logger, "scan_entry", func() error {
			chat, ok = s.summarize(item)
			return nil
		}, zap.Int("entry", i))
		if err == nil && ok {
			chats = append(chats, chat)
		}
	})

	slices.SortStableFunc(chats, func(a, b ChatSummary) int {
		return b.UnreadCount - a.UnreadCount
	})
	return chats
}

func (s *Scanner) summarize(item *goquery.Selection) (ChatSummary, bool) {
	count, ok := s.unread.Match(item)
	if !ok {
		return ChatSummary{}, false
	}
	name := FirstNonEmpty(item, titleChain...)
	if name == "" {
		name = UnknownChat
	}
	return ChatSummary{
		Name:            name,
		UnreadCount:     count,
		IsGroup:         item.Find(s.loc.GroupMarker).Length() > 0,
		IsMuted:         item.Find(s.loc.MutedMarker).Length() > 0,
		LastMessage:     Text(s.loc.LastMessage)(item),
		LastMessageTime: Text(s.loc.LastMessageTime)(item),
	}, true
}
