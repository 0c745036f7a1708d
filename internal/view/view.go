// Package view projects session state into the three rendered fragments of
// the screen: the file-tab strip, the content-tab strip and the detail pane.
//
// Projection is a pure function of its inputs. It never mutates the session
// and calling it twice with the same inputs yields the same frame.
package view

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/jask/pdfdesk/internal/preview"
	"github.com/jask/pdfdesk/internal/session"
)

// Placeholder strings.
const (
	NoPDFLoaded      = "No PDF loaded"
	NoExtractedText  = "No extracted text yet"
	EmptyPreview     = "⏺ No PDF loaded — upload to preview"
	EmptyText        = "⬅ Upload a PDF to extract & display text (press o)"
	RenderingPreview = "Rendering preview…"
	Extracting       = "Extracting text…"
	NoTextExtracted  = "[No text extracted]"
	BlankFirstPage   = "[No text on the first page]"
	LoadingBadge     = "loading…"
	ErrorBadge       = "error"
)

// Status glyphs on content tabs.
const (
	GlyphPending = "…"
	GlyphDone    = "✓"
	GlyphError   = "✗"
	GlyphClose   = "✕"
	activeMarker = "▸ "
)

// Source is the read view of a session the projector needs.
type Source interface {
	Documents() []*session.Document
	ActiveID() session.Identity
	Result(id session.Identity) (session.ExtractionResult, bool)
	Status(id session.Identity) session.Status
}

// PreviewState is the lifecycle of the active document's preview.
type PreviewState int

const (
	PreviewPending PreviewState = iota
	PreviewReady
	PreviewFailed
)

// Preview is the transient preview of one document. It only shows while ID
// is the active document; any other preview projects as pending.
type Preview struct {
	ID      session.Identity
	State   PreviewState
	Page    preview.Page
	Message string
}

// Layout carries the UI-only geometry.
type Layout struct {
	Width      int // 0 = unbounded
	NameWidth  int // tab name cells before truncation; 0 = no truncation
	TextHeight int // visible text lines; 0 = all
	Scroll     int // first visible text line
}

// Frame is one projection.
type Frame struct {
	FileTabs    string
	ContentTabs string
	Detail      string
	// TextLines is the wrapped length of the text area, for scroll clamping.
	TextLines int
}

// Project renders src.
func Project(src Source, pv Preview, l Layout) Frame {
	docs := src.Documents()
	if len(docs) == 0 {
		return Frame{
			FileTabs:    MutedStyle.Render(NoPDFLoaded),
			ContentTabs: MutedStyle.Render(NoExtractedText),
			Detail:      emptyDetail(l),
		}
	}
	active := src.ActiveID()
	text, total := textArea(src, active, l)
	return Frame{
		FileTabs:    fileTabs(docs, active, l),
		ContentTabs: contentTabs(src, docs, active, l),
		Detail:      detail(src, docs, active, pv, l, text),
		TextLines:   total,
	}
}

func fileTabs(docs []*session.Document, active session.Identity, l Layout) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		label := TruncateName(d.Name, l.NameWidth) + " " + closeStyle.Render(GlyphClose)
		if d.ID == active {
			parts = append(parts, activeTabStyle.Render(activeMarker+label))
		} else {
			parts = append(parts, inactiveTabStyle.Render(label))
		}
	}
	return fit(strings.Join(parts, tabSepStyle.Render("│")), l.Width)
}

func contentTabs(src Source, docs []*session.Document, active session.Identity, l Layout) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		glyph := StatusGlyph(src.Status(d.ID))
		label := glyph + " " + TruncateName(d.Name, l.NameWidth)
		if d.ID == active {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, inactiveTabStyle.Render(label))
		}
	}
	return fit(strings.Join(parts, tabSepStyle.Render("│")), l.Width)
}

// StatusGlyph is the content-tab marker for st.
func StatusGlyph(st session.Status) string {
	switch st {
	case session.StatusDone:
		return doneStyle.Render(GlyphDone)
	case session.StatusError:
		return failedStyle.Render(GlyphError)
	default:
		return pendingStyle.Render(GlyphPending)
	}
}

func detail(src Source, docs []*session.Document, active session.Identity, pv Preview, l Layout, text string) string {
	var doc *session.Document
	for _, d := range docs {
		if d.ID == active {
			doc = d
			break
		}
	}
	if doc == nil {
		return emptyDetail(l)
	}

	res, hasResult := src.Result(doc.ID)
	if pv.ID != doc.ID {
		pv = Preview{ID: doc.ID, State: PreviewPending}
	}

	meta := metaNameStyle.Render(TruncateName(doc.Name, 2*l.NameWidth)) + "  " +
		metaSizeStyle.Render(FormatSize(doc.Size)) + "  " +
		pageBadge(res, hasResult, pv)

	sections := []string{
		fit(meta, l.Width),
		section("Preview", previewArea(pv, l), l),
		section("Extracted text", text, l),
	}
	return strings.Join(sections, "\n")
}

func emptyDetail(l Layout) string {
	return strings.Join([]string{
		section("Preview", placeholderStyle.Render(EmptyPreview), l),
		section("Extracted text", placeholderStyle.Render(EmptyText), l),
	}, "\n")
}

// PageBadge applies the badge precedence: extraction failure, extraction page
// count, preview page count, then loading.
func PageBadge(res session.ExtractionResult, hasResult bool, pv Preview) string {
	switch {
	case hasResult && !res.OK():
		return ErrorBadge
	case hasResult && res.Pages > 0:
		return PagesLabel(res.Pages)
	case pv.State == PreviewReady && pv.Page.PageCount > 0:
		return PagesLabel(pv.Page.PageCount)
	default:
		return LoadingBadge
	}
}

func pageBadge(res session.ExtractionResult, hasResult bool, pv Preview) string {
	label := PageBadge(res, hasResult, pv)
	if label == ErrorBadge {
		return badgeErrStyle.Render(label)
	}
	return badgeStyle.Render(label)
}

// PagesLabel pluralizes a page count.
func PagesLabel(n int) string {
	if n == 1 {
		return "1 page"
	}
	return fmt.Sprintf("%d pages", n)
}

func previewArea(pv Preview, l Layout) string {
	switch pv.State {
	case PreviewFailed:
		msg := Sanitize(pv.Message)
		if msg == "" {
			msg = preview.FailureMessage
		}
		return ErrorStyle.Render(msg)
	case PreviewReady:
		head := fmt.Sprintf("Page 1 of %d", pv.Page.PageCount)
		if label := pv.Page.SizeLabel(); label != "" {
			head += " · " + label
		}
		lines := []string{MutedStyle.Render(head)}
		if len(pv.Page.Lines) == 0 {
			lines = append(lines, placeholderStyle.Render(BlankFirstPage))
		}
		for _, line := range pv.Page.Lines {
			lines = append(lines, previewStyle.Render(fit(Sanitize(line), innerWidth(l))))
		}
		if pv.Page.Truncated {
			lines = append(lines, MutedStyle.Render("…"))
		}
		return strings.Join(lines, "\n")
	default:
		return placeholderStyle.Render(RenderingPreview)
	}
}

// textArea renders the extracted text window and reports the wrapped length.
func textArea(src Source, active session.Identity, l Layout) (string, int) {
	res, ok := src.Result(active)
	switch {
	case !ok:
		return placeholderStyle.Render(Extracting), 1
	case !res.OK():
		return ErrorStyle.Render("Failed to extract text: " + Sanitize(res.Message)), 1
	}
	text := Sanitize(res.Text)
	if strings.TrimSpace(text) == "" {
		return placeholderStyle.Render(NoTextExtracted), 1
	}
	if w := innerWidth(l); w > 0 {
		text = ansi.Wrap(text, w, "")
	}
	lines := strings.Split(text, "\n")
	total := len(lines)
	if l.TextHeight > 0 && total > l.TextHeight {
		start := ClampScroll(l.Scroll, total, l.TextHeight)
		lines = lines[start : start+l.TextHeight]
	}
	return strings.Join(lines, "\n"), total
}

// ClampScroll bounds a scroll offset to the scrollable range.
func ClampScroll(scroll, total, height int) int {
	if height <= 0 || total <= height {
		return 0
	}
	if scroll > total-height {
		scroll = total - height
	}
	if scroll < 0 {
		scroll = 0
	}
	return scroll
}

func section(title, content string, l Layout) string {
	w := innerWidth(l)
	rule := ruleStyle.Render(strings.Repeat("─", max(w, len(title))))
	body := TitleStyle.Render(title) + "\n" + rule + "\n" + content
	if l.Width <= 0 {
		return boxStyle.Render(body)
	}
	return boxStyle.Width(l.Width - 2).Render(body)
}

// innerWidth is the usable width inside a section box.
func innerWidth(l Layout) int {
	if l.Width <= 0 {
		return 0
	}
	return max(1, l.Width-boxStyle.GetHorizontalFrameSize())
}

func fit(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, "…")
}

// TruncateName sanitizes name and shortens it to width cells, marking the
// cut with "…".
func TruncateName(name string, width int) string {
	name = Sanitize(name)
	if width <= 0 || ansi.StringWidth(name) <= width {
		return name
	}
	return ansi.Truncate(name, width, "…")
}

// FormatSize renders a byte count as B, KB or MB with one decimal.
func FormatSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1<<20:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	}
}

// Sanitize makes untrusted text safe to write to a terminal. Escape
// sequences and carriage returns are removed, tabs become spaces, and any
// other C0 or C1 control character becomes U+FFFD. Newlines are kept.
func Sanitize(s string) string {
	s = ansi.Strip(s)
	clean := true
	for _, r := range s {
		if r != '\n' && isControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteRune(r)
		case r == '\r':
		case r == '\t':
			b.WriteByte(' ')
		case isControl(r):
			b.WriteRune(utf8.RuneError)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f || (r >= 0x80 && r <= 0x9f)
}
