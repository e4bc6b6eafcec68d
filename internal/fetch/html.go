package fetch

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// mainContentSelectors is tried in order; the first non-empty match wins.
var mainContentSelectors = []string{
	"article",
	"[role='main']",
	"main",
	".content",
	".post-content",
	".entry-content",
	".article-content",
	"#content",
	".main-content",
}

var authorSelectors = []string{".author", ".byline", ".post-author", ".article-author"}

// extractHTML strips boilerplate from an HTML document and extracts
// plain text plus title, author and publication date.
func extractHTML(body []byte) (*Extracted, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := extractTitle(doc)
	author := extractAuthor(doc)
	published := extractPublishedDate(doc)

	doc.Find("script, style, nav, header, footer, aside, form, iframe, noscript").Remove()

	var container *goquery.Selection
	for _, selector := range mainContentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			container = sel
			break
		}
	}
	if container == nil {
		container = doc.Find("body")
	}

	var textBuilder strings.Builder
	blocks := container.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre")
	if blocks.Length() == 0 {
		textBuilder.WriteString(container.Text())
	} else {
		blocks.Each(func(_ int, block *goquery.Selection) {
			text := strings.TrimSpace(block.Text())
			if text == "" {
				return
			}
			textBuilder.WriteString(text)
			textBuilder.WriteString("\n\n")
		})
	}

	return &Extracted{
		Title:         title,
		Author:        author,
		Content:       textBuilder.String(),
		PublishedDate: published,
	}, nil
}

// extractTitle tries <title>, then og:title, then the first h1.
func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("head title").First().Text()); title != "" {
		return title
	}
	if ogTitle, _ := doc.Find("meta[property='og:title']").Attr("content"); strings.TrimSpace(ogTitle) != "" {
		return strings.TrimSpace(ogTitle)
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return ""
}

// extractAuthor tries the author meta tag, schema.org markup, then a
// handful of conventional class names.
func extractAuthor(doc *goquery.Document) string {
	if author, _ := doc.Find("meta[name='author']").Attr("content"); strings.TrimSpace(author) != "" {
		return strings.TrimSpace(author)
	}
	if author := strings.TrimSpace(doc.Find("[itemprop='author']").First().Text()); author != "" {
		return author
	}
	for _, selector := range authorSelectors {
		if author := strings.TrimSpace(doc.Find(selector).First().Text()); author != "" {
			return author
		}
	}
	return ""
}

// extractPublishedDate tries article:published_time then schema.org
// datePublished, parsing permissively.
func extractPublishedDate(doc *goquery.Document) *time.Time {
	candidates := []string{}
	if raw, ok := doc.Find("meta[property='article:published_time']").Attr("content"); ok {
		candidates = append(candidates, raw)
	}
	if raw, ok := doc.Find("[itemprop='datePublished']").Attr("content"); ok {
		candidates = append(candidates, raw)
	}
	if raw, ok := doc.Find("[itemprop='datePublished']").Attr("datetime"); ok {
		candidates = append(candidates, raw)
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"02/01/2006",
		"January 2, 2006",
	}
	for _, raw := range candidates {
		raw = strings.TrimSpace(raw)
		for _, layout := range layouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return &ts
			}
		}
	}
	return nil
}
