package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"edforum-notifier/poll"
)

// Mail providers selectable with MAIL_PROVIDER.
const (
	providerBrevo = "brevo"
	providerGmail = "gmail"
	providerMock  = "mock"
)

type config struct {
	TermsFile    string
	NotifyTo     string
	NotifyFrom   string
	FromName     string
	MailProvider string
	BrevoAPIKey  string
	GoogleCreds  string
	Window       time.Duration
	FetchTimeout time.Duration
	Concurrency  int
	LogLevel     slog.Level
}

// loadConfig reads configuration through getenv, reporting every problem at once.
func loadConfig(getenv func(string) string) (*config, error) {
	cfg := &config{
		TermsFile:    envOr(getenv, "TERMS_FILE", "terms.txt"),
		NotifyTo:     strings.TrimSpace(getenv("NOTIFY_TO")),
		NotifyFrom:   strings.TrimSpace(getenv("NOTIFY_FROM")),
		FromName:     envOr(getenv, "NOTIFY_FROM_NAME", "East Dulwich Forum Alerts"),
		MailProvider: strings.ToLower(envOr(getenv, "MAIL_PROVIDER", providerBrevo)),
		BrevoAPIKey:  strings.TrimSpace(getenv("BREVO_API_KEY")),
		GoogleCreds:  getenv("GOOGLE_CREDENTIALS_JSON"),
		Window:       poll.DefaultWindow,
		FetchTimeout: 30 * time.Second,
		Concurrency:  4,
		LogLevel:     slog.LevelInfo,
	}

	var errs []error

	if cfg.NotifyTo == "" {
		errs = append(errs, errors.New("NOTIFY_TO environment variable required"))
	} else if _, err := mail.ParseAddress(cfg.NotifyTo); err != nil {
		errs = append(errs, fmt.Errorf("NOTIFY_TO: %w", err))
	}
	if cfg.NotifyFrom == "" {
		errs = append(errs, errors.New("NOTIFY_FROM environment variable required"))
	} else if _, err := mail.ParseAddress(cfg.NotifyFrom); err != nil {
		errs = append(errs, fmt.Errorf("NOTIFY_FROM: %w", err))
	}

	switch cfg.MailProvider {
	case providerBrevo:
		if cfg.BrevoAPIKey == "" {
			errs = append(errs, errors.New("BREVO_API_KEY environment variable required for the brevo provider"))
		}
	case providerGmail, providerMock:
		// Gmail credentials are resolved at startup, possibly from Cloud Run.
	default:
		errs = append(errs, fmt.Errorf("MAIL_PROVIDER %q: want %s, %s or %s", cfg.MailProvider, providerBrevo, providerGmail, providerMock))
	}

	if v := getenv("RECENCY_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("RECENCY_WINDOW %q: want a positive duration such as 1h", v))
		} else {
			cfg.Window = d
		}
	}
	if v := getenv("FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("FETCH_TIMEOUT %q: want a positive duration such as 30s", v))
		} else {
			cfg.FetchTimeout = d
		}
	}
	if v := getenv("POLL_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errs = append(errs, fmt.Errorf("POLL_CONCURRENCY %q: want an integer of at least 1", v))
		} else {
			cfg.Concurrency = n
		}
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envOr(getenv func(string) string, key, fallback string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return fallback
}
