package poll

import (
	"context"
	"edforum-notifier/pkg/notifier"
	"edforum-notifier/scraper"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeScraper struct {
	mu       sync.Mutex
	listings map[string]*scraper.Listing
	errs     map[string]error
	calls    []string
}

func (f *fakeScraper) Listing(_ context.Context, term string) (*scraper.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := scraper.BuildListingURL(term); err != nil {
		return nil, err
	}
	f.calls = append(f.calls, term)
	if err, ok := f.errs[term]; ok {
		return nil, err
	}
	if l, ok := f.listings[term]; ok {
		return l, nil
	}
	return &scraper.Listing{}, nil
}

type fakeEmailer struct {
	mu     sync.Mutex
	events []*notifier.Event
	failOn string // Title that fails to send
}

func (f *fakeEmailer) SendNotification(_ context.Context, event *notifier.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && event.Posting.Title == f.failOn {
		return errors.New("mail service unavailable")
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEmailer) titlesFor(term string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var titles []string
	for _, e := range f.events {
		if e.Term == term {
			titles = append(titles, e.Posting.Title)
		}
	}
	return titles
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var testNow = time.Date(2024, time.March, 5, 15, 45, 0, 0, scraper.ForumLocation)

func fixedClock() time.Time { return testNow }

func TestPollAllSkipsInvalidTerm(t *testing.T) {
	fs := &fakeScraper{
		listings: map[string]*scraper.Listing{
			"garden furniture": {Postings: []*notifier.Posting{
				posting("Garden table and chairs", testNow.Add(-20*time.Minute)),
			}},
		},
	}
	fe := &fakeEmailer{}
	m := New(fs, fe, testLogger(), WithClock(fixedClock))

	report := m.PollAll(context.Background(), []string{"ab", "garden furniture"})

	if len(report.Results) != 2 {
		t.Fatalf("Results = %d, want 2", len(report.Results))
	}
	if !errors.Is(report.Results[0].Err, scraper.ErrInvalidSearchTerm) {
		t.Errorf("Results[0].Err = %v, want ErrInvalidSearchTerm", report.Results[0].Err)
	}
	if report.Results[1].Err != nil {
		t.Errorf("Results[1].Err = %v, want nil", report.Results[1].Err)
	}
	if len(fs.calls) != 1 || fs.calls[0] != "garden furniture" {
		t.Errorf("scraper fetched %v, want only garden furniture", fs.calls)
	}
	if got := fe.titlesFor("garden furniture"); len(got) != 1 || got[0] != "Garden table and chairs" {
		t.Errorf("notified %v", got)
	}
	if report.Notified() != 1 {
		t.Errorf("Notified() = %d, want 1", report.Notified())
	}
}

func TestPollAllIsolatesFetchFailures(t *testing.T) {
	fs := &fakeScraper{
		errs: map[string]error{
			"king bed": &scraper.FetchError{URL: "https://example.test", StatusCode: 503},
		},
		listings: map[string]*scraper.Listing{
			"lost cat": {Postings: []*notifier.Posting{
				posting("Lost cat near Lordship Lane", time.Date(2024, time.March, 5, 14, 30, 0, 0, scraper.ForumLocation)),
				posting("Cat found on Grove Vale", time.Date(2024, time.March, 5, 15, 0, 0, 0, scraper.ForumLocation)),
			}},
		},
	}
	fe := &fakeEmailer{}
	m := New(fs, fe, testLogger(), WithClock(fixedClock))

	report := m.PollAll(context.Background(), []string{"king bed", "lost cat"})

	kingBed, lostCat := report.Results[0], report.Results[1]
	if !scraper.IsFetchError(kingBed.Err) {
		t.Errorf("king bed Err = %v, want fetch failure", kingBed.Err)
	}
	if kingBed.Notified != 0 {
		t.Errorf("king bed Notified = %d, want 0", kingBed.Notified)
	}

	if lostCat.Err != nil {
		t.Fatalf("lost cat Err = %v", lostCat.Err)
	}
	if lostCat.Found != 2 || lostCat.Recent != 1 || lostCat.Notified != 1 {
		t.Errorf("lost cat = %+v, want found=2 recent=1 notified=1", lostCat)
	}
	if got := fe.titlesFor("lost cat"); len(got) != 1 || got[0] != "Cat found on Grove Vale" {
		t.Errorf("notified %v, want only the 15:00 posting", got)
	}

	if failed := report.Failed(); len(failed) != 1 || failed[0].Term != "king bed" {
		t.Errorf("Failed() = %+v", failed)
	}
}

func TestPollAllContinuesAfterSendFailure(t *testing.T) {
	fs := &fakeScraper{
		listings: map[string]*scraper.Listing{
			"bike": {Postings: []*notifier.Posting{
				posting("Bike stolen", testNow.Add(-5*time.Minute)),
				posting("Bike for sale", testNow.Add(-10*time.Minute)),
			}},
		},
	}
	fe := &fakeEmailer{failOn: "Bike stolen"}
	m := New(fs, fe, testLogger(), WithClock(fixedClock))

	report := m.PollAll(context.Background(), []string{"bike"})

	res := report.Results[0]
	if res.Err == nil || !strings.Contains(res.Err.Error(), "Bike stolen") {
		t.Errorf("Err = %v, want send failure naming the posting", res.Err)
	}
	if res.Notified != 1 {
		t.Errorf("Notified = %d, want 1", res.Notified)
	}
	if got := fe.titlesFor("bike"); len(got) != 1 || got[0] != "Bike for sale" {
		t.Errorf("notified %v", got)
	}
}

func TestPollAllDeduplicatesWithinTerm(t *testing.T) {
	dup := posting("Piano free to good home", testNow.Add(-5*time.Minute))
	fs := &fakeScraper{
		listings: map[string]*scraper.Listing{
			"piano": {Postings: []*notifier.Posting{dup, dup}},
			"free to good home": {Postings: []*notifier.Posting{dup}},
		},
	}
	fe := &fakeEmailer{}
	m := New(fs, fe, testLogger(), WithClock(fixedClock))

	report := m.PollAll(context.Background(), []string{"piano", "free to good home"})

	if got := fe.titlesFor("piano"); len(got) != 1 {
		t.Errorf("piano notified %d times, want 1", len(got))
	}
	// A posting matching two terms is reported once for each term.
	if got := fe.titlesFor("free to good home"); len(got) != 1 {
		t.Errorf("free to good home notified %d times, want 1", len(got))
	}
	if report.Notified() != 2 {
		t.Errorf("Notified() = %d, want 2", report.Notified())
	}
}

func TestPollAllWindowOption(t *testing.T) {
	fs := &fakeScraper{
		listings: map[string]*scraper.Listing{
			"pram": {Postings: []*notifier.Posting{
				posting("Pram", testNow.Add(-90*time.Minute)),
			}},
		},
	}
	fe := &fakeEmailer{}

	New(fs, fe, testLogger(), WithClock(fixedClock)).PollAll(context.Background(), []string{"pram"})
	if len(fe.events) != 0 {
		t.Fatalf("default window notified %d events, want 0", len(fe.events))
	}

	New(fs, fe, testLogger(), WithClock(fixedClock), WithWindow(2*time.Hour)).PollAll(context.Background(), []string{"pram"})
	if len(fe.events) != 1 {
		t.Errorf("two hour window notified %d events, want 1", len(fe.events))
	}
}

func TestPollAllManyTermsConcurrently(t *testing.T) {
	fs := &fakeScraper{listings: map[string]*scraper.Listing{}}
	var terms []string
	for _, term := range []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel"} {
		terms = append(terms, term)
		fs.listings[term] = &scraper.Listing{Postings: []*notifier.Posting{
			posting(term+" posting", testNow.Add(-time.Minute)),
		}}
	}
	fe := &fakeEmailer{}
	m := New(fs, fe, testLogger(), WithClock(fixedClock), WithConcurrency(3))

	report := m.PollAll(context.Background(), terms)

	for i, res := range report.Results {
		if res.Term != terms[i] {
			t.Errorf("Results[%d].Term = %q, want %q (input order)", i, res.Term, terms[i])
		}
	}
	if report.Notified() != len(terms) {
		t.Errorf("Notified() = %d, want %d", report.Notified(), len(terms))
	}

	if len(fs.calls) != len(terms) {
		t.Errorf("scraper called %d times, want %d", len(fs.calls), len(terms))
	}
}
