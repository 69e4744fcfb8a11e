// Package archive persists scraped chats into one JSON document per
// calendar day. Repeated writes on the same day merge by chat name, fully
// replacing the previous record for that chat.
package archive

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the format of DailyArchive.Date.
const DateLayout = "2006-01-02"

const (
	filePrefix = "messages-"
	fileSuffix = ".json"
)

// Direction tells who sent a message.
type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "received"
)

// Message is one scraped message bubble. Time is the UI-rendered
// timestamp, kept verbatim.
type Message struct {
	Text string    `json:"text"`
	Time string    `json:"time"`
	Type Direction `json:"type"`
}

// ChatRecord holds the most recent successful scrape of one chat.
type ChatRecord struct {
	ChatName    string    `json:"chatName"`
	IsGroup     bool      `json:"isGroup"`
	LastUpdated time.Time `json:"last_updated"`
	Messages    []Message `json:"messages"`
}

// DailyArchive is the persisted document for one day.
type DailyArchive struct {
	Date        string                 `json:"date"`
	LastUpdated time.Time              `json:"last_updated"`
	Chats       map[string]*ChatRecord `json:"chats"`
}

// DateOf returns the local calendar day of t.
func DateOf(t time.Time) string {
	return t.Local().Format(DateLayout)
}

// FileName returns the document name for date, e.g. messages-2024-03-01.json.
func FileName(date string) string {
	return filePrefix + date + fileSuffix
}

// DateFromFileName is the inverse of FileName.
func DateFromFileName(name string) (string, bool) {
	date, ok := strings.CutPrefix(name, filePrefix)
	if !ok {
		return "", false
	}
	date, ok = strings.CutSuffix(date, fileSuffix)
	if !ok {
		return "", false
	}
	if err := validateDate(date); err != nil {
		return "", false
	}
	return date, true
}

func validateDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("invalid archive date %q: %w", date, err)
	}
	return nil
}
