package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResearchQuery(t *testing.T) {
	q, err := NewResearchQuery("politique climatique", []string{"climat", "Politique Climatique", "carbone", "carbone"}, 5, "")
	require.NoError(t, err)

	assert.Equal(t, "politique climatique", q.Topic)
	assert.Equal(t, SearchDepthBasic, q.SearchDepth)
	// "climat" is a substring of the topic and the duplicates collapse.
	assert.Equal(t, []string{"carbone"}, q.Keywords)
}

func TestNewResearchQueryValidation(t *testing.T) {
	_, err := NewResearchQuery("ab", nil, 5, SearchDepthBasic)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewResearchQuery("valid topic", nil, 0, SearchDepthBasic)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewResearchQuery("valid topic", nil, 21, SearchDepthBasic)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewResearchQuery("valid topic", nil, 5, SearchDepth("deep"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFingerprintIgnoresKeywordOrderAndCase(t *testing.T) {
	a, err := NewResearchQuery("energie solaire", []string{"photovoltaïque", "rendement"}, 5, SearchDepthBasic)
	require.NoError(t, err)
	b, err := NewResearchQuery("Energie Solaire", []string{"Rendement", "Photovoltaïque"}, 10, SearchDepthAdvanced)
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c, err := NewResearchQuery("energie solaire", []string{"stockage"}, 5, SearchDepthBasic)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestNewDocument(t *testing.T) {
	doc := NewDocument("Titre", "https://example.com/a", "un deux trois quatre", "")
	assert.Equal(t, 4, doc.WordCount)
	assert.Equal(t, "fr", doc.Language)
	assert.Equal(t, DocTypeOther, doc.DocType)
}

func TestDocumentIDStable(t *testing.T) {
	id1 := DocumentID("https://example.com/a", "Titre")
	id2 := DocumentID("https://example.com/a", "Titre")
	id3 := DocumentID("https://example.com/b", "Titre")

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)
	assert.Len(t, id1, 16)
}

func TestReportID(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 0, 0, time.UTC)
	id := ReportID("transition énergétique", at)
	assert.True(t, strings.HasPrefix(id, "rpt_20250314_0926_"))
	assert.Len(t, id, len("rpt_20060102_1504_")+8)
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://example.com/article"))
	assert.NoError(t, ValidateURL("http://example.com"))
	assert.Error(t, ValidateURL("ftp://example.com"))
	assert.Error(t, ValidateURL("not a url"))
	assert.Error(t, ValidateURL("https://"))
}

func TestErrorKinds(t *testing.T) {
	assert.Equal(t, "RateLimitExceeded", ErrorKind(ErrRateLimited))
	assert.Equal(t, "LLMFailure", ErrorKind(ErrLLMFailure))
	assert.Equal(t, "SearchFailure", ErrorKind(ErrSearchFailure))
	assert.Equal(t, "Error", ErrorKind(errors.New("other")))

	// A rate limit error is still an LLM failure.
	assert.ErrorIs(t, ErrRateLimited, ErrLLMFailure)
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, ContentHash("abc"), ContentHash("abc"))
	assert.NotEqual(t, ContentHash("abc"), ContentHash("abd"))
	assert.Len(t, ContentHash("abc"), 32)
}
