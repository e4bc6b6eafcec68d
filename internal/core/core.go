package core

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// SearchDepth controls how aggressively the researcher expands a query.
type SearchDepth string

const (
	SearchDepthBasic    SearchDepth = "basic"
	SearchDepthAdvanced SearchDepth = "advanced"
)

// DocType classifies a fetched document.
type DocType string

const (
	DocTypeArticle       DocType = "article"
	DocTypeBlogPost      DocType = "blog_post"
	DocTypeAcademicPaper DocType = "academic_paper"
	DocTypeNews          DocType = "news"
	DocTypeReport        DocType = "report"
	DocTypeOther         DocType = "other"
)

// Sentiment is the summarizer's overall tone classification for a document.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ResearchQuery is the immutable input to one pipeline run.
type ResearchQuery struct {
	Topic       string      `json:"topic"`
	Keywords    []string    `json:"keywords"`
	MaxResults  int         `json:"max_results"`
	SearchDepth SearchDepth `json:"search_depth"`
}

// NewResearchQuery validates and normalizes the pipeline inputs.
// Keywords already present in the topic (case-insensitive) are dropped,
// as are case-insensitive duplicates among the keywords themselves.
func NewResearchQuery(topic string, keywords []string, maxResults int, depth SearchDepth) (ResearchQuery, error) {
	topic = strings.TrimSpace(topic)
	if len(topic) < 3 {
		return ResearchQuery{}, fmt.Errorf("%w: topic must be at least 3 characters", ErrValidation)
	}
	if maxResults < 1 || maxResults > 20 {
		return ResearchQuery{}, fmt.Errorf("%w: max_results must be between 1 and 20, got %d", ErrValidation, maxResults)
	}
	if depth == "" {
		depth = SearchDepthBasic
	}
	if depth != SearchDepthBasic && depth != SearchDepthAdvanced {
		return ResearchQuery{}, fmt.Errorf("%w: unknown search depth %q", ErrValidation, depth)
	}

	topicLower := strings.ToLower(topic)
	seen := make(map[string]bool)
	var deduped []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lower := strings.ToLower(kw)
		if seen[lower] || strings.Contains(topicLower, lower) {
			continue
		}
		seen[lower] = true
		deduped = append(deduped, kw)
	}

	return ResearchQuery{
		Topic:       topic,
		Keywords:    deduped,
		MaxResults:  maxResults,
		SearchDepth: depth,
	}, nil
}

// Fingerprint returns the cache key for whole-pipeline memoization.
// Topic and keywords determine the fingerprint; result count and depth do not.
func (q ResearchQuery) Fingerprint() string {
	kws := make([]string, len(q.Keywords))
	for i, kw := range q.Keywords {
		kws[i] = strings.ToLower(kw)
	}
	sort.Strings(kws)
	sum := md5.Sum([]byte(strings.ToLower(q.Topic) + "|" + strings.Join(kws, ",")))
	return hex.EncodeToString(sum[:])
}

// SearchResult is one candidate source produced by the researcher.
type SearchResult struct {
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	Snippet       string     `json:"snippet"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	Source        string     `json:"source"` // Host name of the result
	Score         float64    `json:"score"`  // Relevance in [0,1]
}

// ResearchOutput is the researcher stage result.
type ResearchOutput struct {
	Query        ResearchQuery  `json:"query"`
	Results      []SearchResult `json:"results"`
	SearchEngine string         `json:"search_engine"`
	ElapsedTime  time.Duration  `json:"elapsed_time"`
}

// Document is a fetched and cleaned source.
type Document struct {
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	Content       string     `json:"content"`
	DocType       DocType    `json:"doc_type"`
	Author        string     `json:"author,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	WordCount     int        `json:"word_count"`
	Language      string     `json:"language"`
}

// NewDocument builds a Document with derived fields populated.
// Content is assumed to be already cleaned by the extractor.
func NewDocument(title, url, content string, docType DocType) Document {
	if docType == "" {
		docType = DocTypeOther
	}
	return Document{
		Title:     title,
		URL:       url,
		Content:   content,
		DocType:   docType,
		WordCount: len(strings.Fields(content)),
		Language:  "fr",
	}
}

// ExtractionResult is the extractor stage result.
type ExtractionResult struct {
	Documents             []Document        `json:"documents"`
	FailedURLs            []string          `json:"failed_urls"`
	TotalURLs             int               `json:"total_urls"`
	SuccessfulExtractions int               `json:"successful_extractions"`
	FailedExtractions     int               `json:"failed_extractions"`
	ElapsedTime           time.Duration     `json:"elapsed_time"`
	Stats                 map[string]string `json:"stats,omitempty"`
}

// KeyPoint is one salient point extracted from a document summary.
type KeyPoint struct {
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Importance float64 `json:"importance"` // In [0,1]
	Category   string  `json:"category,omitempty"`
}

// DocumentSummary is the per-document analytic output of the summarizer.
type DocumentSummary struct {
	DocumentID       string        `json:"document_id"`
	Title            string        `json:"title"`
	URL              string        `json:"url"`
	ExecutiveSummary string        `json:"executive_summary"`
	DetailedSummary  string        `json:"detailed_summary"`
	KeyPoints        []KeyPoint    `json:"key_points"`
	Sentiment        Sentiment     `json:"sentiment,omitempty"`
	CredibilityScore *float64      `json:"credibility_score,omitempty"`
	ProcessedAt      time.Time     `json:"processed_at"`
	ProcessingTime   time.Duration `json:"processing_time"`
}

// DocumentID derives the stable identifier for a document summary.
func DocumentID(url, title string) string {
	sum := md5.Sum([]byte(url + title))
	return hex.EncodeToString(sum[:])[:16]
}

// SummarizationOutput aggregates per-document summaries with
// cross-document analysis.
type SummarizationOutput struct {
	Summaries           []DocumentSummary `json:"summaries"`
	TotalDocuments      int               `json:"total_documents"`
	TotalProcessingTime time.Duration     `json:"total_processing_time"`
	AverageCredibility  *float64          `json:"average_credibility,omitempty"`
	CommonThemes        []string          `json:"common_themes"`
	ConsensusPoints     []string          `json:"consensus_points"`
	ConflictingViews    []string          `json:"conflicting_views"`
}

// ExecutiveSummary is the structured opening block of a final report.
type ExecutiveSummary struct {
	KeyFindings     []string `json:"key_findings"`
	MainInsights    []string `json:"main_insights"`
	Recommendations []string `json:"recommendations"`
	SummaryText     string   `json:"summary_text"`
}

// ReportSection is one ordered section of the final report body.
type ReportSection struct {
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	Order       int             `json:"order"`
	Subsections []ReportSection `json:"subsections,omitempty"`
}

// SourceReference cites one input summary in the final report.
type SourceReference struct {
	Title            string     `json:"title"`
	URL              string     `json:"url"`
	PublishedDate    *time.Time `json:"published_date,omitempty"`
	CredibilityScore *float64   `json:"credibility_score,omitempty"`
	CitationCount    int        `json:"citation_count"`
}

// Methodology describes how the report was produced.
type Methodology struct {
	ResearchApproach      string   `json:"research_approach"`
	SourcesCount          int      `json:"sources_count"`
	AnalysisMethods       []string `json:"analysis_methods"`
	Limitations           []string `json:"limitations"`
	DataQualityAssessment string   `json:"data_quality_assessment"`
}

// FinalReport is the terminal artifact of a pipeline run.
type FinalReport struct {
	ReportID              string            `json:"report_id"`
	Title                 string            `json:"title"`
	Topic                 string            `json:"topic"`
	ReportType            string            `json:"report_type"`
	ReportFormat          string            `json:"report_format"`
	ExecutiveSummary      ExecutiveSummary  `json:"executive_summary"`
	Introduction          string            `json:"introduction"`
	MainSections          []ReportSection   `json:"main_sections"`
	Conclusion            string            `json:"conclusion"`
	KeyThemes             []string          `json:"key_themes"`
	ConsensusPoints       []string          `json:"consensus_points"`
	ConflictingViewpoints []string          `json:"conflicting_viewpoints"`
	EmergingTrends        []string          `json:"emerging_trends"`
	Methodology           Methodology       `json:"methodology"`
	Sources               []SourceReference `json:"sources"`
	ConfidenceScore       float64           `json:"confidence_score"`
	CompletenessScore     float64           `json:"completeness_score"`
	WordCount             int               `json:"word_count"`
	FormattedOutputs      map[string]string `json:"formatted_outputs"`
	GeneratedAt           time.Time         `json:"generated_at"`
}

// ReportID derives the report identifier from the topic and creation time.
func ReportID(topic string, at time.Time) string {
	sum := md5.Sum([]byte(topic))
	return fmt.Sprintf("rpt_%s_%s", at.Format("20060102_1504"), hex.EncodeToString(sum[:])[:8])
}

// GlobalSynthesisOutput is the synthesizer stage result.
type GlobalSynthesisOutput struct {
	Report           FinalReport   `json:"report"`
	ReliabilityScore float64       `json:"reliability_score"`
	CoherenceScore   float64       `json:"coherence_score"`
	ElapsedTime      time.Duration `json:"elapsed_time"`
}

// StoredItem is one record in the memory subsystem's vector store.
type StoredItem struct {
	ID        string       `json:"id"`
	Content   string       `json:"content"`
	Metadata  ItemMetadata `json:"metadata"`
	Embedding []float32    `json:"embedding,omitempty"`
}

// ItemMetadata carries the indexed fields of a stored item.
type ItemMetadata struct {
	Title       string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	Source      string    `json:"source"` // "research", "summary" or "synthesis"
	Timestamp   time.Time `json:"timestamp"`
	ContentHash string    `json:"content_hash"`
	WordCount   int       `json:"word_count"`
}

// ConversationEntry is one exchange recorded in the bounded history.
type ConversationEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	User      string            `json:"user"`
	Assistant string            `json:"assistant"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ContentHash returns the MD5 fingerprint used for exact-duplicate detection.
func ContentHash(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ValidateURL reports whether raw is a well-formed absolute http(s) URL
// with a non-empty host.
func ValidateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid URL %q: %v", ErrValidation, raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: URL %q must use http or https", ErrValidation, raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: URL %q has no host", ErrValidation, raw)
	}
	return nil
}
