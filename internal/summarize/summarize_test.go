package summarize

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veilleur/internal/core"
	"veilleur/internal/llm"
)

// fakeClient routes prompts to canned responses by substring.
type fakeClient struct {
	mu      sync.Mutex
	routes  map[string]string // prompt substring -> response
	failOn  string            // prompt substring that errors
	prompts []string
}

func (f *fakeClient) Completion(_ context.Context, prompt, _ string, _ *llm.Params) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.failOn != "" && strings.Contains(prompt, f.failOn) {
		return "", fmt.Errorf("%w: boom", core.ErrLLMFailure)
	}
	for substr, response := range f.routes {
		if strings.Contains(prompt, substr) {
			return response, nil
		}
	}
	return "réponse générique", nil
}

func (f *fakeClient) Batch(ctx context.Context, prompts []string, system string, params *llm.Params) []string {
	results := make([]string, len(prompts))
	for i, prompt := range prompts {
		text, err := f.Completion(ctx, prompt, system, params)
		if err != nil {
			results[i] = fmt.Sprintf("ERROR: %v", err)
		} else {
			results[i] = text
		}
	}
	return results
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func testDoc(title, url string) core.Document {
	content := strings.TrimSpace(strings.Repeat("Une phrase sur la politique climatique européenne. ", 10))
	return core.NewDocument(title, url, content, core.DocTypeArticle)
}

func TestStandardPathFullAnalysis(t *testing.T) {
	client := &fakeClient{routes: map[string]string{
		"résumé exécutif":   "Un résumé clair du document.",
		"analyse détaillée": "Analyse complète.\n- Premier point clé\n- Deuxième point clé\n- Troisième point clé",
		"ton général":       "Le ton est positif. crédibilité: 8/10",
	}}

	s := NewSummarizer(client, Options{DetailedAnalysis: true, IncludeSentiment: true, MaxKeyPoints: 2})
	out, err := s.Run(context.Background(), []core.Document{testDoc("Doc A", "https://a.test")})
	require.NoError(t, err)
	require.Len(t, out.Summaries, 1)

	summary := out.Summaries[0]
	assert.Equal(t, core.DocumentID("https://a.test", "Doc A"), summary.DocumentID)
	assert.Equal(t, "Un résumé clair du document.", summary.ExecutiveSummary)
	assert.Contains(t, summary.DetailedSummary, "Premier point clé")

	// Key points capped at the configured maximum, default importance.
	require.Len(t, summary.KeyPoints, 2)
	assert.Equal(t, "Premier point clé", summary.KeyPoints[0].Content)
	assert.Equal(t, 0.8, summary.KeyPoints[0].Importance)

	assert.Equal(t, core.SentimentPositive, summary.Sentiment)
	require.NotNil(t, summary.CredibilityScore)
	assert.InDelta(t, 0.8, *summary.CredibilityScore, 0.001)

	require.NotNil(t, out.AverageCredibility)
	assert.InDelta(t, 0.8, *out.AverageCredibility, 0.001)
}

func TestStandardPathMinimal(t *testing.T) {
	client := &fakeClient{routes: map[string]string{
		"résumé exécutif": "Un résumé.",
	}}

	s := NewSummarizer(client, Options{})
	out, err := s.Run(context.Background(), []core.Document{testDoc("Doc A", "https://a.test")})
	require.NoError(t, err)

	// Only the executive summary call is issued.
	assert.Equal(t, 1, client.callCount())
	summary := out.Summaries[0]
	assert.Empty(t, summary.DetailedSummary)
	assert.Empty(t, summary.KeyPoints)
	assert.Nil(t, summary.CredibilityScore)
	assert.Nil(t, out.AverageCredibility)
}

func TestDocumentFailureYieldsErrorSummary(t *testing.T) {
	client := &fakeClient{
		routes: map[string]string{"résumé exécutif": "Un résumé."},
		failOn: "Doc B",
	}

	s := NewSummarizer(client, Options{})
	docs := []core.Document{testDoc("Doc A", "https://a.test"), testDoc("Doc B", "https://b.test")}
	out, err := s.Run(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, out.Summaries, 2)

	assert.Equal(t, "Un résumé.", out.Summaries[0].ExecutiveSummary)
	assert.Contains(t, out.Summaries[1].ExecutiveSummary, "Erreur")
	assert.Nil(t, out.Summaries[1].CredibilityScore)
	assert.Equal(t, "https://b.test", out.Summaries[1].URL)
}

func TestCrossDocumentAnalysis(t *testing.T) {
	client := &fakeClient{routes: map[string]string{
		"résumé exécutif": "Un résumé.",
		"THÈMES COMMUNS": "THÈMES COMMUNS:\n- La transition énergétique\nPOINTS DE CONSENSUS:\n- Les émissions doivent baisser\nPOINTS CONTRADICTOIRES:\n- Le rythme de sortie du charbon",
	}}

	s := NewSummarizer(client, Options{})
	docs := []core.Document{testDoc("Doc A", "https://a.test"), testDoc("Doc B", "https://b.test")}
	out, err := s.Run(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, []string{"La transition énergétique"}, out.CommonThemes)
	assert.Equal(t, []string{"Les émissions doivent baisser"}, out.ConsensusPoints)
	assert.Equal(t, []string{"Le rythme de sortie du charbon"}, out.ConflictingViews)
}

func TestCrossDocumentAnalysisFailure(t *testing.T) {
	client := &fakeClient{
		routes: map[string]string{"résumé exécutif": "Un résumé."},
		failOn: "THÈMES COMMUNS",
	}

	s := NewSummarizer(client, Options{})
	docs := []core.Document{testDoc("Doc A", "https://a.test"), testDoc("Doc B", "https://b.test")}
	out, err := s.Run(context.Background(), docs)
	require.NoError(t, err)

	assert.Empty(t, out.CommonThemes)
	assert.Empty(t, out.ConsensusPoints)
	assert.Empty(t, out.ConflictingViews)
}

func TestSingleDocumentSkipsCrossAnalysis(t *testing.T) {
	client := &fakeClient{routes: map[string]string{"résumé exécutif": "Un résumé."}}

	s := NewSummarizer(client, Options{})
	_, err := s.Run(context.Background(), []core.Document{testDoc("Doc A", "https://a.test")})
	require.NoError(t, err)

	for _, prompt := range client.prompts {
		assert.NotContains(t, prompt, "THÈMES COMMUNS")
	}
}

func TestLargeDocumentPath(t *testing.T) {
	client := &fakeClient{routes: map[string]string{
		"Résume cette partie": "Résumé de la partie.",
		"Fusionne ces résumés": "RÉSUMÉ EXÉCUTIF:\nSynthèse globale du document.\n" +
			"RÉSUMÉ DÉTAILLÉ:\nDétails complets.\n" +
			"POINTS CLÉS:\n- Point un\n- Point deux\n" +
			"SENTIMENT ET CRÉDIBILITÉ:\nTon neutre, crédibilité: 6/10",
	}}

	s := NewSummarizer(client, Options{ChunkThreshold: 100})
	out, err := s.Run(context.Background(), []core.Document{testDoc("Grand Doc", "https://a.test")})
	require.NoError(t, err)

	summary := out.Summaries[0]
	assert.Equal(t, "Synthèse globale du document.", summary.ExecutiveSummary)
	assert.Equal(t, "Détails complets.", summary.DetailedSummary)
	require.Len(t, summary.KeyPoints, 2)
	assert.Equal(t, core.SentimentNeutral, summary.Sentiment)
	require.NotNil(t, summary.CredibilityScore)
	assert.InDelta(t, 0.6, *summary.CredibilityScore, 0.001)
}

func TestLargeDocumentFallbackOnParseFailure(t *testing.T) {
	client := &fakeClient{routes: map[string]string{
		"Résume cette partie":  "Résumé de la partie.",
		"Fusionne ces résumés": "Une réponse sans aucune structure repérable.",
	}}

	s := NewSummarizer(client, Options{ChunkThreshold: 100})
	out, err := s.Run(context.Background(), []core.Document{testDoc("Grand Doc", "https://a.test")})
	require.NoError(t, err)
	assert.Contains(t, out.Summaries[0].ExecutiveSummary, "Résumé de la partie.")
}

func TestChunkingDisabledUsesStandardPath(t *testing.T) {
	client := &fakeClient{routes: map[string]string{"résumé exécutif": "Un résumé."}}

	s := NewSummarizer(client, Options{ChunkThreshold: 100, DisableChunking: true})
	out, err := s.Run(context.Background(), []core.Document{testDoc("Doc", "https://a.test")})
	require.NoError(t, err)
	assert.Equal(t, "Un résumé.", out.Summaries[0].ExecutiveSummary)
}

func TestRunValidation(t *testing.T) {
	s := NewSummarizer(&fakeClient{}, Options{})

	_, err := s.Run(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrValidation)

	docs := make([]core.Document, MaxDocuments+1)
	for i := range docs {
		docs[i] = testDoc("Doc", "https://a.test")
	}
	_, err = s.Run(context.Background(), docs)
	assert.ErrorIs(t, err, core.ErrValidation)

	empty := core.NewDocument("Vide", "https://a.test", "   ", core.DocTypeArticle)
	_, err = s.Run(context.Background(), []core.Document{empty})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestAverageCredibility(t *testing.T) {
	score := func(v float64) *float64 { return &v }

	assert.Nil(t, averageCredibility([]core.DocumentSummary{{}, {}}))

	avg := averageCredibility([]core.DocumentSummary{
		{CredibilityScore: score(0.6)},
		{},
		{CredibilityScore: score(1.0)},
	})
	require.NotNil(t, avg)
	assert.InDelta(t, 0.8, *avg, 0.001)
}

func TestParseCredibility(t *testing.T) {
	cases := []struct {
		text string
		want float64
	}{
		{"crédibilité: 7", 0.7},
		{"credibilite : 0.9", 0.9},
		{"je donne 8/10 à cette source", 0.8},
		{"fiabilité estimée à 85%", 0.85},
		{"aucune note ici", 0.5},
	}
	for _, tc := range cases {
		got := parseCredibility(tc.text)
		require.NotNil(t, got, tc.text)
		assert.InDelta(t, tc.want, *got, 0.001, tc.text)
	}
}

func TestClassifySentiment(t *testing.T) {
	assert.Equal(t, core.SentimentPositive, classifySentiment("Le ton est plutôt positif et optimiste."))
	assert.Equal(t, core.SentimentNegative, classifySentiment("Une vision très pessimiste."))
	assert.Equal(t, core.SentimentNeutral, classifySentiment("Un exposé factuel."))
	// Negative markers win over positive ones.
	assert.Equal(t, core.SentimentNegative, classifySentiment("Un regard critique mais favorable."))
}

func TestParseBullets(t *testing.T) {
	text := "Intro\n- premier\n• deuxième\n-pas une puce\nrien"
	assert.Equal(t, []string{"premier", "deuxième"}, parseBullets(text))
}

func TestSplitLabeledSections(t *testing.T) {
	text := "Préambule ignoré\nRÉSUMÉ EXÉCUTIF: Début du résumé.\nSuite du résumé.\nPOINTS CLÉS:\n- un\n- deux"
	sections := splitLabeledSections(text, []sectionMarker{
		{name: "executive", keywords: []string{"résumé exécutif"}},
		{name: "keypoints", keywords: []string{"points clés"}},
	})
	assert.Equal(t, "Début du résumé.\nSuite du résumé.", sections["executive"])
	assert.Equal(t, "- un\n- deux", sections["keypoints"])
}
