package scraper

import (
	"edforum-notifier/pkg/notifier"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// ErrInvalidSearchTerm is returned for terms the forum search would reject.
var ErrInvalidSearchTerm = errors.New("invalid search term")

// Query holds the fixed parameters of a Phorum search request.
type Query struct {
	BaseURL    string // search.php endpoint
	MatchType  string
	MatchForum string
	ForumID    int
	Page       int
	MatchDays  int // How far back the forum itself searches
}

// DefaultQuery searches the East Dulwich Forum's main section.
var DefaultQuery = Query{
	BaseURL:    "https://www.eastdulwichforum.co.uk/forum/search.php",
	ForumID:    9,
	Page:       1,
	MatchType:  "ALL",
	MatchDays:  30,
	MatchForum: "THISONE",
}

// BuildListingURL builds the search listing URL for term using DefaultQuery.
func BuildListingURL(term string) (string, error) {
	return DefaultQuery.URL(term)
}

// URL builds the search listing URL for term.
//
// Phorum takes its parameters comma-separated after the forum ID rather than
// as key=value pairs joined by '&', e.g.
// search.php?9,search=king+bed,page=1,match_type=ALL,match_dates=30,match_forum=THISONE
func (q Query) URL(term string) (string, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < notifier.MinTermLength {
		return "", fmt.Errorf("%w: %q is shorter than %d characters", ErrInvalidSearchTerm, term, notifier.MinTermLength)
	}

	// QueryEscape maps every space to '+' and percent-encodes ',' so the term
	// cannot split the parameter list.
	search := url.QueryEscape(term)

	return fmt.Sprintf("%s?%d,search=%s,page=%d,match_type=%s,match_dates=%d,match_forum=%s",
		q.BaseURL, q.ForumID, search, q.Page, q.MatchType, q.MatchDays, q.MatchForum), nil
}
