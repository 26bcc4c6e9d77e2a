// Package storage loads the search term list from local disk or Cloud Storage.
package storage

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
)

const gcsScheme = "gs://"

// ErrNotFound indicates the term list does not exist.
var ErrNotFound = errors.New("term list not found")

// Store reads term lists.
type Store struct {
	client *storage.Client // Nil when only local paths are used
	logger *slog.Logger
}

// New creates a new term list store. client may be nil.
func New(client *storage.Client, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		logger: logger,
	}
}

// IsGCS reports whether location names a Cloud Storage object.
func IsGCS(location string) bool {
	return strings.HasPrefix(location, gcsScheme)
}

// ParseGCS splits a gs://bucket/object location.
func ParseGCS(location string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(location, gcsScheme)
	if !ok {
		return "", "", fmt.Errorf("not a gs:// location: %q", location)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("invalid gs:// location %q: want gs://bucket/object", location)
	}
	return bucket, object, nil
}

// Terms loads the term list at location, a local path or gs://bucket/object.
func (s *Store) Terms(ctx context.Context, location string) ([]string, error) {
	var data []byte

	if IsGCS(location) {
		var err error
		data, err = s.readGCS(ctx, location)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		data, err = os.ReadFile(location)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
			}
			return nil, fmt.Errorf("read from local storage: %w", err)
		}
	}

	terms, err := ReadTerms(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read terms from %s: %w", location, err)
	}

	s.logger.Info("Search terms loaded", "location", location, "count", len(terms))
	return terms, nil
}

func (s *Store) readGCS(ctx context.Context, location string) ([]byte, error) {
	bucket, object, err := ParseGCS(location)
	if err != nil {
		return nil, err
	}
	if s.client == nil {
		return nil, errors.New("cloud storage client not configured")
	}

	var data []byte
	notFound := false
	err = retry.Do(
		func() error {
			r, openErr := s.client.Bucket(bucket).Object(object).NewReader(ctx)
			if openErr != nil {
				// Don't retry on "not found" errors
				if errors.Is(openErr, storage.ErrObjectNotExist) || errors.Is(openErr, storage.ErrBucketNotExist) {
					notFound = true
					return retry.Unrecoverable(openErr)
				}
				return fmt.Errorf("open storage reader: %w", openErr)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					s.logger.Warn("Failed to close storage reader", "error", closeErr)
				}
			}()

			var readErr error
			data, readErr = io.ReadAll(r)
			if readErr != nil {
				return fmt.Errorf("read from storage: %w", readErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying term list load after error", "attempt", n, "location", location, "error", retryErr)
		}),
	)
	if notFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
	}
	if err != nil {
		return nil, fmt.Errorf("load after retries: %w", err)
	}
	return data, nil
}

// ReadTerms parses one search term per line. Blank lines and lines starting
// with '#' are skipped; short terms are kept so the poller can report them.
func ReadTerms(r io.Reader) ([]string, error) {
	var terms []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		terms = append(terms, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return terms, nil
}

// IsNotFound checks if an error indicates the term list was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
