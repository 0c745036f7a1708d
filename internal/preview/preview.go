// Package preview renders the first page of a PDF for the terminal: page
// geometry from pdfcpu and the first page's text laid out line by line.
package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// FailureMessage is shown in place of the preview when rendering fails.
const FailureMessage = "Could not render preview — corrupted or encrypted file"

// ErrRender wraps every rendering failure.
var ErrRender = errors.New("render preview")

// Page is a rendered first page.
type Page struct {
	PageCount int
	Width     float64 // points
	Height    float64 // points
	Lines     []string
	Truncated bool
}

// Renderer produces first-page previews. It holds no per-document state.
type Renderer struct {
	maxLines int
	width    int
	conf     *model.Configuration
}

func NewRenderer(maxLines, width int) *Renderer {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Renderer{maxLines: maxLines, width: width, conf: conf}
}

// Render lays out the first page of data.
func (r *Renderer) Render(ctx context.Context, data []byte) (page Page, err error) {
	defer func() {
		// ledongthuc/pdf panics on some malformed streams.
		if rec := recover(); rec != nil {
			page, err = Page{}, fmt.Errorf("%w: %v", ErrRender, rec)
		}
	}()
	if len(data) == 0 {
		return Page{}, fmt.Errorf("%w: empty document", ErrRender)
	}
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	count, err := api.PageCount(bytes.NewReader(data), r.conf)
	if err != nil {
		return Page{}, fmt.Errorf("%w: page count: %v", ErrRender, err)
	}
	if count < 1 {
		return Page{}, fmt.Errorf("%w: document has no pages", ErrRender)
	}
	page.PageCount = count

	dims, err := api.PageDims(bytes.NewReader(data), r.conf)
	if err == nil && len(dims) > 0 {
		page.Width, page.Height = dims[0].Width, dims[0].Height
	}

	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	text, err := firstPageText(data)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrRender, err)
	}
	page.Lines, page.Truncated = layout(text, r.width, r.maxLines)
	return page, nil
}

func firstPageText(data []byte) (string, error) {
	rd, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	if rd.NumPage() < 1 {
		return "", nil
	}
	p := rd.Page(1)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}

// layout wraps text to width and keeps at most maxLines non-blank lines.
func layout(text string, width, maxLines int) ([]string, bool) {
	var out []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		wrapped := ansi.Wordwrap(line, width, "")
		for _, l := range strings.Split(wrapped, "\n") {
			if len(out) == maxLines {
				return out, true
			}
			out = append(out, strings.TrimRight(l, " "))
		}
	}
	return out, false
}

// SizeLabel names common page sizes, falling back to points.
func (p Page) SizeLabel() string {
	if p.Width <= 0 || p.Height <= 0 {
		return ""
	}
	w, h := p.Width, p.Height
	orient := "portrait"
	if w > h {
		w, h = h, w
		orient = "landscape"
	}
	name := fmt.Sprintf("%.0f×%.0f pt", p.Width, p.Height)
	switch {
	case near(w, 595) && near(h, 842):
		name = "A4"
	case near(w, 612) && near(h, 792):
		name = "Letter"
	case near(w, 612) && near(h, 1008):
		name = "Legal"
	case near(w, 842) && near(h, 1191):
		name = "A3"
	}
	return name + " " + orient
}

func near(a, b float64) bool {
	d := a - b
	return d > -2 && d < 2
}
