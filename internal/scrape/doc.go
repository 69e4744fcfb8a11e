// Package scrape walks the WhatsApp Web chat list: it switches the list
// filter, finds chats with unread messages, opens each through search,
// extracts its messages into the archive and backs out to the list again.
//
// Every selector lives in Locators and every step runs through one
// isolate-and-report wrapper, so a chat that misbehaves costs only itself.
package scrape
