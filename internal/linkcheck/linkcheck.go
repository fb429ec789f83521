// Package linkcheck verifies that a URL answers a HEAD request.
package linkcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

var ErrUnreachable = errors.New("the image URL is not valid, please check it and try again")

type Config struct {
	Timeout time.Duration
}

type Checker struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Checker {
	return &Checker{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// Check returns ErrUnreachable unless rawURL is an absolute http(s) URL that
// answers HEAD with a 2xx status.
func (c *Checker) Check(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrUnreachable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Driftwood/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Debug("image check failed", "url", rawURL, "error", err)
		return ErrUnreachable
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("image check rejected", "url", rawURL, "status", resp.StatusCode)
		return ErrUnreachable
	}
	return nil
}
