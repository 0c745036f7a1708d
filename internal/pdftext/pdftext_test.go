package pdftext

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/pdfdesk/internal/testdata"
)

func TestExtractAllPagesWithMetadata(t *testing.T) {
	doc := testdata.Doc{
		Title:  "Quarterly report",
		Author: "Jask",
		Pages:  []string{"Alpha page", "Omega page"},
	}
	res, err := NewExtractor().Extract(doc.Bytes())
	require.NoError(t, err)
	require.Equal(t, 2, res.Metadata.Pages)
	require.Equal(t, "Quarterly report", res.Metadata.Title)
	require.Equal(t, "Jask", res.Metadata.Author)
	require.Contains(t, res.Text, "Alpha page")
	require.Contains(t, res.Text, "Omega page")
	require.NotContains(t, res.Text, "\n")
	require.Equal(t, len([]rune(res.Text)), res.Stats.Characters)
}

func TestExtractRejectsInvalid(t *testing.T) {
	_, err := NewExtractor().Extract([]byte("not a pdf"))
	require.ErrorIs(t, err, ErrInvalidPDF)

	_, err = NewExtractor().Extract(nil)
	require.ErrorIs(t, err, ErrInvalidPDF)
}

func TestCleanAndCount(t *testing.T) {
	raw := "  Hello\t world \n\n second   line\n \n"
	cleaned := Clean(raw)
	require.Equal(t, "Hello world second line", cleaned)
	require.Equal(t, Stats{Characters: 23, Words: 4, Lines: 2}, Count(raw, cleaned))
	require.Equal(t, Stats{}, Count("", ""))
}
