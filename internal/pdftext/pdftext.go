// Package pdftext extracts and cleans the text of a PDF for the extraction
// endpoint.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrInvalidPDF is returned for documents that cannot be parsed.
var ErrInvalidPDF = errors.New("invalid or corrupted PDF file")

// Metadata is the document information reported alongside the text.
type Metadata struct {
	Title  string
	Author string
	Pages  int
}

// Stats counts the extracted text.
type Stats struct {
	Characters int
	Words      int
	Lines      int
}

// Result is a cleaned extraction.
type Result struct {
	Text     string
	Metadata Metadata
	Stats    Stats
}

// Extractor pulls text out of PDF bytes.
type Extractor struct {
	conf *model.Configuration
}

func NewExtractor() *Extractor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Extractor{conf: conf}
}

// Extract validates data, reads the text of every page and cleans it.
func (e *Extractor) Extract(data []byte) (res Result, err error) {
	if len(data) == 0 {
		return Result{}, fmt.Errorf("%w: empty document", ErrInvalidPDF)
	}
	if err := api.Validate(bytes.NewReader(data), e.conf); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}

	defer func() {
		// ledongthuc/pdf panics on some malformed content streams.
		if rec := recover(); rec != nil {
			res, err = Result{}, fmt.Errorf("%w: %v", ErrInvalidPDF, rec)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}

	var raw strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return Result{}, fmt.Errorf("page %d: %w", i, err)
		}
		if text != "" {
			raw.WriteString(text)
			raw.WriteString("\n")
		}
	}

	cleaned := Clean(raw.String())
	res = Result{
		Text: cleaned,
		Metadata: Metadata{
			Pages: r.NumPage(),
		},
		Stats: Count(raw.String(), cleaned),
	}
	info := r.Trailer().Key("Info")
	if !info.IsNull() {
		res.Metadata.Title = strings.TrimSpace(info.Key("Title").Text())
		res.Metadata.Author = strings.TrimSpace(info.Key("Author").Text())
	}
	return res, nil
}

// Clean collapses every whitespace run to a single space.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Count computes stats: characters and words of the cleaned text, non-blank
// lines of the raw text.
func Count(raw, cleaned string) Stats {
	lines := 0
	for _, l := range strings.Split(raw, "\n") {
		if strings.TrimSpace(l) != "" {
			lines++
		}
	}
	return Stats{
		Characters: len([]rune(cleaned)),
		Words:      len(strings.Fields(cleaned)),
		Lines:      lines,
	}
}
