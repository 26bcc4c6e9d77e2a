// Package scraper handles fetching and parsing East Dulwich Forum search listings.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const userAgent = "edforum-notifier/1.0 (+https://www.eastdulwichforum.co.uk/forum/)"

// FetchError indicates the listing page could not be retrieved.
type FetchError struct {
	Err        error // Transport error, nil for HTTP status failures
	URL        string
	StatusCode int // Zero for transport failures
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError checks if an error is a listing fetch failure.
func IsFetchError(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr)
}

// Scraper fetches and parses forum search listings.
type Scraper struct {
	client *http.Client
	logger *slog.Logger
	query  Query
}

// New creates a new scraper for DefaultQuery.
func New(client *http.Client, logger *slog.Logger) *Scraper {
	return &Scraper{
		client: client,
		logger: logger,
		query:  DefaultQuery,
	}
}

// WithQuery returns a copy of the scraper that builds URLs from q.
func (s *Scraper) WithQuery(q Query) *Scraper {
	c := *s
	c.query = q
	return &c
}

// Listing builds the search URL for term and fetches its listing.
func (s *Scraper) Listing(ctx context.Context, term string) (*Listing, error) {
	listingURL, err := s.query.URL(term)
	if err != nil {
		return nil, err
	}
	return s.Fetch(ctx, listingURL)
}

// Fetch retrieves and parses one listing page. Failures are not retried.
func (s *Scraper) Fetch(ctx context.Context, listingURL string) (*Listing, error) {
	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}

	s.logger.Info("HTTP request starting",
		"method", "GET",
		"url", listingURL,
		"purpose", "fetch_search_listing")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	startTime := time.Now()
	resp, err := s.client.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Warn("HTTP request failed",
			"url", listingURL,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return nil, &FetchError{URL: listingURL, Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	s.logger.Info("HTTP request completed",
		"url", listingURL,
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
		"content_length", resp.ContentLength)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("HTTP request returned non-2xx status", "url", listingURL, "status_code", resp.StatusCode)
		return nil, &FetchError{URL: listingURL, StatusCode: resp.StatusCode}
	}

	listing, err := ParseListing(resp.Body, base)
	if err != nil {
		// A body that breaks mid-read is a transport failure, not bad markup.
		return nil, &FetchError{URL: listingURL, Err: err}
	}

	for _, a := range listing.Anomalies {
		s.logger.Warn("Malformed listing row",
			"url", listingURL,
			"row", a.Row,
			"reason", a.Reason,
			"text", a.Text)
	}

	s.logger.Info("Search listing parsed successfully",
		"url", listingURL,
		"postings_found", len(listing.Postings),
		"anomalies", len(listing.Anomalies))

	return listing, nil
}
