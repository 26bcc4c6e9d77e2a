// Package notifier contains the core domain types for the forum search notification service.
package notifier

import "time"

// MinTermLength is the shortest search term the forum accepts.
const MinTermLength = 3

// Posting represents a single thread row from a search listing.
type Posting struct {
	PostedAt time.Time // Forum-local time, carries the Europe/London zone
	Title    string
	Link     string // Empty when the row had no anchor
}

// Event is a posting judged recent enough to notify about for a search term.
type Event struct {
	Posting *Posting
	Term    string
}

// Key identifies the event within a single run.
func (e *Event) Key() string {
	if e.Posting.Link != "" {
		return e.Term + "|" + e.Posting.Link
	}
	return e.Term + "|" + e.Posting.Title + "|" + e.Posting.PostedAt.UTC().Format(time.RFC3339)
}
