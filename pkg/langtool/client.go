// Package langtool is a client for LanguageTool-compatible grammar servers
// and the correction planner that turns reported matches into an applied,
// fully corrected text.
package langtool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/config"
)

// checkLanguage is fixed: the engine only corrects French text.
const checkLanguage = "fr"

// Match is one issue reported by the checker. Offset and Length count UTF-16
// code units, which for French text coincide with rune offsets.
type Match struct {
	Message      string        `json:"message"`
	ShortMessage string        `json:"shortMessage"`
	Offset       int           `json:"offset"`
	Length       int           `json:"length"`
	Replacements []Replacement `json:"replacements"`
	Rule         Rule          `json:"rule"`
}

// Replacement is one suggested substitution for a match.
type Replacement struct {
	Value string `json:"value"`
}

// Rule identifies the checker rule behind a match.
type Rule struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	IssueType   string   `json:"issueType"`
	Category    Category `json:"category"`
}

// Category groups rules (typography, grammar, spelling...).
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type checkResponse struct {
	Matches []Match `json:"matches"`
}

// Client talks to a LanguageTool-compatible HTTP server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewClient creates a grammar checker client from configuration.
func NewClient(cfg config.LanguageToolConfig, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(config.ResolveURLForDocker(cfg.BaseURL), "/"),
		logger:     logger.Named("langtool"),
	}
}

// Check submits text and returns the reported matches.
func (c *Client) Check(ctx context.Context, text string) ([]Match, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("language", checkLanguage)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/check",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build check request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("grammar check failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("grammar check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("grammar checker returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode check response: %w", err)
	}

	c.logger.Debug("grammar check",
		zap.Int("text_len", len(text)),
		zap.Int("matches", len(parsed.Matches)),
		zap.Duration("elapsed", time.Since(start)))

	return parsed.Matches, nil
}

// Ping verifies the checker is reachable. Used by health reporting.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/languages", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("grammar checker unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("grammar checker returned status %d", resp.StatusCode)
	}
	return nil
}
