package fetch

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"veilleur/internal/logger"
)

// extractPDF concatenates the extracted text of each page.
func extractPDF(body []byte) (*Extracted, error) {
	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("failed to extract PDF page text", "page", i, "error", err.Error())
			continue
		}
		textBuilder.WriteString(pageText)
		textBuilder.WriteString("\n\n")
	}

	content := textBuilder.String()
	return &Extracted{
		Title:   pdfTitle(content),
		Content: content,
	}, nil
}

// pdfTitle uses the first substantial line as the document title.
func pdfTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if len(line) >= 10 && len(line) <= 200 {
			return line
		}
	}
	return ""
}
