// Package fetch turns URLs into cleaned plain-text content plus
// metadata, dispatching on the response format.
package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"veilleur/internal/core"
)

// ContentType identifies the extraction path used for a URL.
type ContentType string

const (
	ContentTypeHTML  ContentType = "html"
	ContentTypePDF   ContentType = "pdf"
	ContentTypePlain ContentType = "plain"
)

// Extracted is the raw output of one fetch before stage-level filtering.
type Extracted struct {
	Title         string
	Author        string
	Content       string
	PublishedDate *time.Time
	ContentType   ContentType
	FetchedAt     time.Time
}

// Fetcher retrieves and extracts content from URLs.
type Fetcher struct {
	client           *http.Client
	maxContentLength int
	userAgent        string
}

// Options configures a Fetcher.
type Options struct {
	Timeout          time.Duration
	MaxContentLength int
}

// NewFetcher creates a Fetcher with the given per-request timeout and
// content length cap.
func NewFetcher(opts Options) *Fetcher {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxLen := opts.MaxContentLength
	if maxLen == 0 {
		maxLen = 50000
	}
	return &Fetcher{
		client:           &http.Client{Timeout: timeout},
		maxContentLength: maxLen,
		userAgent:        "veilleur/1.0 (research pipeline)",
	}
}

// Fetch retrieves a URL, detects its format and extracts cleaned text
// with whatever metadata the document exposes.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Extracted, error) {
	if err := core.ValidateURL(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status code %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", rawURL, err)
	}

	contentType := detectContentType(resp.Header.Get("Content-Type"), rawURL)

	var extracted *Extracted
	switch contentType {
	case ContentTypePDF:
		extracted, err = extractPDF(body)
	case ContentTypeHTML:
		extracted, err = extractHTML(body)
	default:
		extracted = &Extracted{Content: string(body), ContentType: ContentTypePlain}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s content from %s: %w", contentType, rawURL, err)
	}

	extracted.ContentType = contentType
	extracted.FetchedAt = time.Now().UTC()
	extracted.Content = CleanText(extracted.Content, f.maxContentLength)
	return extracted, nil
}

// detectContentType picks the extraction path from the response header,
// falling back to the URL path extension.
func detectContentType(header, rawURL string) ContentType {
	if header != "" {
		if mediaType, _, err := mime.ParseMediaType(header); err == nil {
			switch {
			case mediaType == "application/pdf":
				return ContentTypePDF
			case mediaType == "text/html" || mediaType == "application/xhtml+xml":
				return ContentTypeHTML
			case strings.HasPrefix(mediaType, "text/"):
				return ContentTypePlain
			}
		}
	}

	switch strings.ToLower(path.Ext(strings.SplitN(rawURL, "?", 2)[0])) {
	case ".pdf":
		return ContentTypePDF
	case ".txt", ".md":
		return ContentTypePlain
	default:
		return ContentTypeHTML
	}
}
