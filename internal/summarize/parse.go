package summarize

import (
	"regexp"
	"strconv"
	"strings"

	"veilleur/internal/core"
)

// parseBullets extracts `- ` and `• ` list lines from a response.
func parseBullets(text string) []string {
	var bullets []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		var item string
		switch {
		case strings.HasPrefix(line, "- "):
			item = strings.TrimSpace(line[2:])
		case strings.HasPrefix(line, "• "):
			item = strings.TrimSpace(strings.TrimPrefix(line, "• "))
		default:
			continue
		}
		if item != "" {
			bullets = append(bullets, item)
		}
	}
	return bullets
}

// parseKeyPoints turns bullet lines into KeyPoints with the default
// importance, capped at maxPoints.
func parseKeyPoints(text string, maxPoints int) []core.KeyPoint {
	bullets := parseBullets(text)
	if len(bullets) > maxPoints {
		bullets = bullets[:maxPoints]
	}

	points := make([]core.KeyPoint, 0, len(bullets))
	for _, bullet := range bullets {
		title := bullet
		if len(title) > 60 {
			title = title[:60]
		}
		points = append(points, core.KeyPoint{
			Title:      title,
			Content:    bullet,
			Importance: 0.8,
		})
	}
	return points
}

var positiveWords = []string{"positif", "positive", "optimiste", "favorable", "encourageant"}
var negativeWords = []string{"négatif", "negative", "pessimiste", "défavorable", "alarmant", "critique"}

// classifySentiment maps a free-text tone answer onto the three-way
// classification, defaulting to neutral.
func classifySentiment(text string) core.Sentiment {
	lower := strings.ToLower(text)
	for _, word := range negativeWords {
		if strings.Contains(lower, word) {
			return core.SentimentNegative
		}
	}
	for _, word := range positiveWords {
		if strings.Contains(lower, word) {
			return core.SentimentPositive
		}
	}
	return core.SentimentNeutral
}

// credibilityRe matches, in order of preference: an explicit
// "crédibilité: X" statement, an "X/10" rating, or a percentage.
var credibilityRe = regexp.MustCompile(`(?i)cr[eé]dibilit[eé]\s*:?\s*(\d+(?:[.,]\d+)?)|(\d+(?:[.,]\d+)?)\s*/\s*10|(\d+(?:[.,]\d+)?)\s*%`)

// parseCredibility recovers a credibility score from a sentiment
// response and normalizes it to [0,1]. Absent a match it returns 0.5.
func parseCredibility(text string) *float64 {
	score := 0.5

	if m := credibilityRe.FindStringSubmatch(text); m != nil {
		raw := ""
		percent := false
		switch {
		case m[1] != "":
			raw = m[1]
		case m[2] != "":
			raw = m[2]
		case m[3] != "":
			raw = m[3]
			percent = true
		}
		if value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64); err == nil {
			switch {
			case percent:
				value /= 100
			case value > 1:
				value /= 10
			}
			if value < 0 {
				value = 0
			}
			if value > 1 {
				value = 1
			}
			score = value
		}
	}

	return &score
}

// sectionMarker names a labeled section and the lowercase keywords
// that identify its heading line.
type sectionMarker struct {
	name     string
	keywords []string
}

// splitLabeledSections walks a response line by line and groups the
// body under the last matched section heading. Heading lines are short
// lines containing one of a section's keywords.
func splitLabeledSections(text string, markers []sectionMarker) map[string]string {
	sections := make(map[string]string)
	var bodies = make(map[string]*strings.Builder)
	current := ""

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)

		matched := ""
		isBullet := strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "• ")
		if len(trimmed) <= 60 && !isBullet {
			for _, marker := range markers {
				for _, kw := range marker.keywords {
					if strings.Contains(lower, kw) {
						matched = marker.name
						break
					}
				}
				if matched != "" {
					break
				}
			}
		}
		if matched != "" {
			current = matched
			if bodies[current] == nil {
				bodies[current] = &strings.Builder{}
			}
			// Keep any content that follows the label on the same line.
			if idx := strings.Index(trimmed, ":"); idx >= 0 && idx+1 < len(trimmed) {
				rest := strings.TrimSpace(trimmed[idx+1:])
				if rest != "" {
					bodies[current].WriteString(rest)
					bodies[current].WriteString("\n")
				}
			}
			continue
		}

		if current != "" && trimmed != "" {
			bodies[current].WriteString(trimmed)
			bodies[current].WriteString("\n")
		}
	}

	for name, body := range bodies {
		sections[name] = strings.TrimSpace(body.String())
	}
	return sections
}
