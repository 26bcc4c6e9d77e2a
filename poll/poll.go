// Package poll runs one pass over the search terms and dispatches notifications.
package poll

import (
	"context"
	"edforum-notifier/pkg/notifier"
	"edforum-notifier/scraper"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Scraper interface for fetching search listings.
type Scraper interface {
	Listing(ctx context.Context, term string) (*scraper.Listing, error)
}

// Emailer interface for sending notifications.
type Emailer interface {
	SendNotification(ctx context.Context, event *notifier.Event) error
}

// TermResult is the outcome of polling a single search term.
type TermResult struct {
	Err      error
	Term     string
	Found    int // Non-reply postings in the listing
	Recent   int // Postings inside the recency window
	Notified int // Notifications sent successfully
}

// Report aggregates the results of a PollAll pass, in term order.
type Report struct {
	Results []TermResult
}

// Failed returns the results that ended with an error.
func (r *Report) Failed() []TermResult {
	var failed []TermResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Notified returns the total number of notifications sent.
func (r *Report) Notified() int {
	n := 0
	for _, res := range r.Results {
		n += res.Notified
	}
	return n
}

// Monitor handles polling logic for a batch of search terms.
type Monitor struct {
	scraper     Scraper
	emailer     Emailer
	logger      *slog.Logger
	now         func() time.Time
	window      time.Duration
	concurrency int
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithWindow sets the recency window.
func WithWindow(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.window = d
		}
	}
}

// WithConcurrency sets how many terms are polled at once.
func WithConcurrency(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithClock overrides the time source used to anchor the recency window.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// New creates a new poll monitor.
func New(scraper Scraper, emailer Emailer, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		scraper:     scraper,
		emailer:     emailer,
		logger:      logger,
		now:         time.Now,
		window:      DefaultWindow,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PollAll checks every term and notifies about recent postings.
// Failures are recorded per term and never stop the other terms.
func (m *Monitor) PollAll(ctx context.Context, terms []string) *Report {
	now := m.now()
	m.logger.Info("Polling search terms",
		"count", len(terms),
		"window", m.window.String(),
		"timestamp", now.Format(time.RFC3339))

	report := &Report{Results: make([]TermResult, len(terms))}

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, term := range terms {
		g.Go(func() error {
			report.Results[i] = m.pollTerm(ctx, term, now)
			return nil
		})
	}
	_ = g.Wait() // pollTerm reports through TermResult

	failed := report.Failed()
	for _, res := range failed {
		m.logger.Warn("Search term failed", "term", res.Term, "error", res.Err)
	}

	m.logger.Info("Poll pass completed",
		"terms", len(terms),
		"failed", len(failed),
		"notified", report.Notified())

	return report
}

func (m *Monitor) pollTerm(ctx context.Context, term string, now time.Time) TermResult {
	res := TermResult{Term: term}

	m.logger.Info("Starting term check", "term", term)

	listing, err := m.scraper.Listing(ctx, term)
	if err != nil {
		if errors.Is(err, scraper.ErrInvalidSearchTerm) {
			res.Err = err
		} else {
			res.Err = fmt.Errorf("fetch listing: %w", err)
		}
		return res
	}
	res.Found = len(listing.Postings)

	recent := SelectRecent(listing.Postings, now, m.window)
	res.Recent = len(recent)

	m.logger.Info("Listing filtered",
		"term", term,
		"postings", res.Found,
		"recent", res.Recent)

	seen := make(map[string]bool, len(recent))
	var sendErrs []error
	for _, posting := range recent {
		event := &notifier.Event{Term: term, Posting: posting}
		key := event.Key()
		if seen[key] {
			m.logger.Debug("Skipping duplicate posting", "term", term, "title", posting.Title)
			continue
		}
		seen[key] = true

		if err := m.emailer.SendNotification(ctx, event); err != nil {
			m.logger.Warn("Notification failed", "term", term, "title", posting.Title, "error", err)
			sendErrs = append(sendErrs, fmt.Errorf("notify %q: %w", posting.Title, err))
			continue
		}
		res.Notified++
	}
	res.Err = errors.Join(sendErrs...)

	return res
}
