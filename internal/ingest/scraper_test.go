package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL(t *testing.T) {
	require.NoError(t, ValidateURL("https://example.com/docs"))
	require.ErrorIs(t, ValidateURL("ftp://example.com"), domain.ErrValidation)
	require.ErrorIs(t, ValidateURL("/relative"), domain.ErrValidation)
	require.ErrorIs(t, ValidateURL("::"), domain.ErrValidation)
}

func TestScraper_Firecrawl(t *testing.T) {
	var got firecrawlRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/scrape", r.URL.Path)
		assert.Equal(t, "Bearer fc-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"data":{"markdown":"# Docs\n\nHello.","metadata":{"title":"Docs"}}}`)
	}))
	defer server.Close()

	s := NewScraper("fc-key", server.URL+"/", server.Client())
	page, err := s.Scrape(context.Background(), "https://example.com/docs")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/docs", got.URL)
	assert.Equal(t, []string{"markdown"}, got.Formats)
	assert.Equal(t, "Docs", page.Title)
	assert.Equal(t, "# Docs\n\nHello.", page.Text)
}

func TestScraper_FirecrawlFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"success":false,"error":"insufficient credits"}`)
	}))
	defer server.Close()

	s := NewScraper("fc-key", server.URL, server.Client())
	_, err := s.Scrape(context.Background(), "https://example.com")
	require.ErrorIs(t, err, domain.ErrUpstreamFailed)
	assert.Contains(t, err.Error(), "insufficient credits")
}

func TestScraper_DirectFetchHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><p>Plain fetch.</p><script>x()</script></body></html>`)
	}))
	defer server.Close()

	s := NewScraper("", "", server.Client())
	page, err := s.Scrape(context.Background(), server.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "Plain fetch.", page.Text)
}

func TestScraper_DirectFetchText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "raw <b>text</b>")
	}))
	defer server.Close()

	s := NewScraper("", "", server.Client())
	page, err := s.Scrape(context.Background(), server.URL+"/notes")
	require.NoError(t, err)
	assert.Equal(t, "raw <b>text</b>", page.Text)
}

func TestScraper_DirectFetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	s := NewScraper("", "", server.Client())
	_, err := s.Scrape(context.Background(), server.URL)
	require.ErrorIs(t, err, domain.ErrUpstreamFailed)
}
