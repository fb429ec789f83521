package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const maxResponseSize = 16 << 20

// HTTPConfig holds settings for the HTTP transport.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration // zero leaves calls unbounded
}

// HTTP sends each command as a JSON POST to <base>/invoke/<command>.
type HTTP struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

func NewHTTP(cfg HTTPConfig, logger *slog.Logger) *HTTP {
	return &HTTP{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

func (h *HTTP) Invoke(ctx context.Context, command Command, args Args) (json.RawMessage, error) {
	if args == nil {
		args = NoArgs()
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}

	url := fmt.Sprintf("%s/invoke/%s", h.baseURL, command)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Driftwood/1.0")

	start := time.Now()
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	h.logger.Debug("command round trip",
		"command", command,
		"http_status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", time.Since(start),
	)

	// Application failures arrive as envelopes with any status code; only a
	// reply that is not JSON at all is a transport failure.
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("empty response: status %d", resp.StatusCode)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("decode response: invalid JSON (status %d)", resp.StatusCode)
	}

	return json.RawMessage(body), nil
}
