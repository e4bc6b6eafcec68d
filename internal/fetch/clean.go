package fetch

import (
	"regexp"
	"strings"
)

// TruncationMarker is appended whenever content is cut at the
// configured maximum length.
const TruncationMarker = "... [Contenu tronqué]"

var (
	controlCharRe = regexp.MustCompile(`[\x00-\x08\x0B-\x1F\x7F]`)
	spaceRunRe    = regexp.MustCompile(`[ \t]+`)
	newlineRunRe  = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes extracted text: control characters are removed
// (tab and newline excepted), space runs collapse to one space, three
// or more newlines collapse to two, and every line is trimmed. Content
// longer than maxLength is truncated with an explicit marker.
func CleanText(text string, maxLength int) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = controlCharRe.ReplaceAllString(text, "")
	text = spaceRunRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	text = newlineRunRe.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	if maxLength > 0 && len(text) > maxLength {
		text = text[:maxLength] + TruncationMarker
	}
	return text
}
