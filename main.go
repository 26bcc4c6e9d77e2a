// Package main runs one polling pass over East Dulwich Forum search listings
// and emails a notification for every new thread posted in the recency window.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"edforum-notifier/email"
	"edforum-notifier/poll"
	"edforum-notifier/scraper"
	"edforum-notifier/storage"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func main() {
	ctx := context.Background()

	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Startup failed", "error", err)
		os.Exit(1)
	}
}

// run wires the collaborators and performs one pass. Only startup failures
// are returned; per-term failures are logged in the report.
func run(ctx context.Context, cfg *config, logger *slog.Logger) error {
	var storageClient *gcs.Client
	if storage.IsGCS(cfg.TermsFile) {
		var err error
		storageClient, err = gcs.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("initialize storage client: %w", err)
		}
		defer func() {
			if err := storageClient.Close(); err != nil {
				logger.Warn("Failed to close storage client", "error", err)
			}
		}()
	}

	terms, err := storage.New(storageClient, logger).Terms(ctx, cfg.TermsFile)
	if err != nil {
		return fmt.Errorf("load search terms: %w", err)
	}

	provider, err := newProvider(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize %s mail provider: %w", cfg.MailProvider, err)
	}

	monitor := poll.New(
		scraper.New(&http.Client{Timeout: cfg.FetchTimeout}, logger),
		email.New(provider, logger, cfg.NotifyTo, cfg.NotifyFrom),
		logger,
		poll.WithWindow(cfg.Window),
		poll.WithConcurrency(cfg.Concurrency),
	)

	report := monitor.PollAll(ctx, terms)
	for _, res := range report.Results {
		logger.Info("Search term result",
			"term", res.Term,
			"found", res.Found,
			"recent", res.Recent,
			"notified", res.Notified,
			"ok", res.Err == nil)
	}

	return nil
}

func newProvider(ctx context.Context, cfg *config, logger *slog.Logger) (email.Provider, error) {
	switch cfg.MailProvider {
	case providerBrevo:
		logger.Info("Using Brevo email provider", "from", cfg.NotifyFrom)
		return email.NewBrevoProvider(cfg.BrevoAPIKey, cfg.NotifyFrom, cfg.FromName, logger), nil
	case providerGmail:
		service, err := initGmailService(ctx, cfg.GoogleCreds)
		if err != nil {
			return nil, err
		}
		logger.Info("Using Gmail email provider", "from", cfg.NotifyFrom)
		return email.NewGmailProvider(service, cfg.NotifyFrom, logger), nil
	case providerMock:
		logger.Info("Mock email mode enabled, notifications are only logged")
		return email.NewMockProvider(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.MailProvider)
	}
}

// isCloudRun checks if we're running in a GCP environment by querying the metadata server.
func isCloudRun(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://metadata.google.internal/computeMetadata/v1/project/project-id", http.NoBody)
	if err != nil {
		return false
	}
	req.Header.Set("Metadata-Flavor", "Google")

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	return resp.StatusCode == http.StatusOK
}

func initGmailService(ctx context.Context, credsJSON string) (*gmail.Service, error) {
	if credsJSON != "" {
		return gmail.NewService(ctx, option.WithCredentialsJSON([]byte(credsJSON)), option.WithScopes(gmail.GmailSendScope))
	}

	// Cloud Run service accounts authenticate through Application Default Credentials.
	if isCloudRun(ctx) {
		return gmail.NewService(ctx, option.WithScopes(gmail.GmailSendScope))
	}

	return nil, errors.New("GOOGLE_CREDENTIALS_JSON required when not running in Cloud Run")
}
