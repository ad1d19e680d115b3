package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mtlprog/agentdesk/internal/domain"
)

// MaxPageBytes caps a fetched page body.
const MaxPageBytes = 10 << 20

// Page is a fetched web document reduced to text.
type Page struct {
	Title string
	Text  string
}

// Scraper fetches a URL and returns its readable text. With an API key it uses
// Firecrawl's scrape endpoint (markdown output); without one it issues a plain GET.
type Scraper struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewScraper creates a Scraper. An empty apiKey selects the direct-fetch mode.
func NewScraper(apiKey, baseURL string, client *http.Client) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Scraper{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  slog.Default().With("component", "scraper"),
	}
}

// ValidateURL accepts absolute http(s) URLs only.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: url must be an absolute http(s) address", domain.ErrValidation)
	}
	return nil
}

// Scrape fetches pageURL.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) (*Page, error) {
	if err := ValidateURL(pageURL); err != nil {
		return nil, err
	}
	if s.apiKey != "" {
		return s.scrapeFirecrawl(ctx, pageURL)
	}
	return s.fetch(ctx, pageURL)
}

type firecrawlRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			Title string `json:"title"`
		} `json:"metadata"`
	} `json:"data"`
}

func (s *Scraper) scrapeFirecrawl(ctx context.Context, pageURL string) (*Page, error) {
	body, err := json.Marshal(firecrawlRequest{URL: pageURL, Formats: []string{"markdown"}, OnlyMainContent: true})
	if err != nil {
		return nil, fmt.Errorf("encode scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build scrape request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: firecrawl: %v", domain.ErrUpstreamFailed, err)
	}
	defer resp.Body.Close()

	var out firecrawlResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, MaxPageBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: firecrawl: decode response (status %d): %v", domain.ErrUpstreamFailed, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		msg := out.Error
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("%w: firecrawl: %s", domain.ErrUpstreamFailed, msg)
	}

	s.logger.Debug("page scraped", "url", pageURL, "bytes", len(out.Data.Markdown))
	return &Page{Title: out.Data.Metadata.Title, Text: out.Data.Markdown}, nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("User-Agent", "agentdesk-ingest/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", domain.ErrUpstreamFailed, pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: fetch %s: %s", domain.ErrUpstreamFailed, pageURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxPageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	if len(body) > MaxPageBytes {
		return nil, errors.Join(domain.ErrFileTooLarge, fmt.Errorf("page %s exceeds %d bytes", pageURL, MaxPageBytes))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	docType, err := DetectType(pageURL, contentType)
	if err != nil {
		docType = DocTypeHTML
	}

	var text string
	switch docType {
	case DocTypePDF:
		text, err = ExtractPDF(body)
	case DocTypeText:
		text = string(bytes.ToValidUTF8(body, nil))
	default:
		text, err = ExtractHTML(bytes.NewReader(body))
	}
	if err != nil {
		return nil, err
	}
	return &Page{Text: text}, nil
}
