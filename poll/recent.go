package poll

import (
	"edforum-notifier/pkg/notifier"
	"time"
)

// DefaultWindow is how far back a posting may be and still count as new.
const DefaultWindow = time.Hour

// SelectRecent returns the postings made at or after now-window, in input order.
// A non-positive window means DefaultWindow.
func SelectRecent(postings []*notifier.Posting, now time.Time, window time.Duration) []*notifier.Posting {
	if window <= 0 {
		window = DefaultWindow
	}
	cutoff := now.Add(-window)

	var recent []*notifier.Posting
	for _, p := range postings {
		if !p.PostedAt.Before(cutoff) {
			recent = append(recent, p)
		}
	}
	return recent
}
