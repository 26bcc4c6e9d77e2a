package scraper

import (
	"edforum-notifier/pkg/notifier"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // Europe/London must resolve in images without zoneinfo

	"github.com/PuerkitoBio/goquery"
)

const (
	// TimestampLayout is the forum's dd/MM/yyyy HH:mm date column format.
	TimestampLayout = "02/01/2006 15:04"

	// ReplyMarker appears in the title of every reply row.
	ReplyMarker = "Re: "

	rowSelector   = ".PhorumStdBlock > .PhorumRowBlock"
	dateSelector  = ".PhorumColumnFloatLarge"
	titleSelector = ".PhorumLargeFont"
	linkSelector  = ".PhorumLargeFont > a"
)

// ForumLocation is the civil time zone the forum renders timestamps in.
var ForumLocation = mustLoadLocation("Europe/London")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load location %s: %v", name, err))
	}
	return loc
}

// Listing is the parsed result of one search results page.
type Listing struct {
	Postings  []*notifier.Posting
	Anomalies []Anomaly
}

// Anomaly records a row that did not match the expected markup.
type Anomaly struct {
	Reason string
	Text   string // Offending text, if any
	Row    int    // Zero-based row index within the listing
}

func (a Anomaly) String() string {
	if a.Text == "" {
		return fmt.Sprintf("row %d: %s", a.Row, a.Reason)
	}
	return fmt.Sprintf("row %d: %s (%q)", a.Row, a.Reason, a.Text)
}

// ParseListing extracts non-reply postings from a search results page.
// Relative links are resolved against base when it is non-nil.
func ParseListing(body io.Reader, base *url.URL) (*Listing, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	listing := &Listing{}
	doc.Find(rowSelector).Each(func(i int, row *goquery.Selection) {
		title := strings.TrimSpace(row.Find(titleSelector).First().Text())
		if title == "" {
			listing.Anomalies = append(listing.Anomalies, Anomaly{Row: i, Reason: "missing title"})
			return
		}
		if strings.Contains(title, ReplyMarker) {
			return
		}

		rawTime := strings.TrimSpace(row.Find(dateSelector).First().Text())
		postedAt, err := time.ParseInLocation(TimestampLayout, rawTime, ForumLocation)
		if err != nil {
			listing.Anomalies = append(listing.Anomalies, Anomaly{Row: i, Reason: "unparseable timestamp", Text: rawTime})
			return
		}

		link, ok := row.Find(linkSelector).First().Attr("href")
		link = strings.TrimSpace(link)
		if !ok || link == "" {
			listing.Anomalies = append(listing.Anomalies, Anomaly{Row: i, Reason: "missing link", Text: title})
		} else {
			link = resolveLink(base, link)
		}

		listing.Postings = append(listing.Postings, &notifier.Posting{
			PostedAt: postedAt,
			Title:    title,
			Link:     link,
		})
	})

	return listing, nil
}

func resolveLink(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
