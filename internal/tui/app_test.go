package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/require"

	"github.com/jask/pdfdesk/internal/extract"
	"github.com/jask/pdfdesk/internal/preview"
	"github.com/jask/pdfdesk/internal/session"
	"github.com/jask/pdfdesk/internal/testdata"
	"github.com/jask/pdfdesk/internal/view"
)

type fakeExtractor struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (f *fakeExtractor) Extract(_ context.Context, name string, _ []byte) (extract.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if err := f.errs[name]; err != nil {
		return extract.Response{}, err
	}
	return extract.Response{
		Text:     "text of " + name,
		Metadata: &extract.Metadata{Title: "T " + name, Pages: 2},
		Stats:    &extract.Stats{Characters: 7 + len(name), Words: 3, Lines: 1},
	}, nil
}

func (f *fakeExtractor) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeRenderer numbers its renders so tests can tell them apart.
type fakeRenderer struct {
	mu    sync.Mutex
	count int
	fail  bool
}

func (f *fakeRenderer) Render(context.Context, []byte) (preview.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	if f.fail {
		return preview.Page{}, errors.New("broken xref")
	}
	return preview.Page{PageCount: f.count, Width: 595, Height: 842, Lines: []string{fmt.Sprintf("render %d", f.count)}}, nil
}

func newTestApp(t *testing.T) (*App, *fakeExtractor, *fakeRenderer) {
	t.Helper()
	ex := &fakeExtractor{errs: map[string]error{}}
	rd := &fakeRenderer{}
	a := New(context.Background(), Options{
		Extractor: ex,
		Renderer:  rd,
		NameWidth: 18,
		StartDir:  t.TempDir(),
	})
	a.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return a, ex, rd
}

func pdfFile(name string) session.File {
	return session.NewFile(name, testdata.PDF("body of "+name))
}

func textFile(name string) session.File {
	return session.NewFile(name, []byte("just some notes\n"))
}

func keyPress(k string) tea.KeyMsg {
	switch k {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func apply(a *App, msg tea.Msg) tea.Cmd {
	_, cmd := a.Update(msg)
	return cmd
}

// collect runs cmd and every batched command, returning the leaf messages
// without feeding them back.
func collect(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	var out []tea.Msg
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 256, "command fan-out too deep")
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch m := c().(type) {
		case nil:
		case tea.BatchMsg:
			queue = append(queue, m...)
		default:
			out = append(out, m)
		}
	}
	return out
}

// drain feeds every resulting message back into the app until quiet.
func drain(t *testing.T, a *App, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 256, "command chain too deep")
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch m := c().(type) {
		case nil, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, m...)
		default:
			queue = append(queue, apply(a, m))
		}
	}
}

func extractionsIn(msgs []tea.Msg) []extractionDoneMsg {
	var out []extractionDoneMsg
	for _, m := range msgs {
		if e, ok := m.(extractionDoneMsg); ok {
			out = append(out, e)
		}
	}
	return out
}

func previewsIn(msgs []tea.Msg) []previewDoneMsg {
	var out []previewDoneMsg
	for _, m := range msgs {
		if p, ok := m.(previewDoneMsg); ok {
			out = append(out, p)
		}
	}
	return out
}

func screen(a *App) string { return ansi.Strip(a.View()) }

func TestBatchAddIssuesOneExtractionPerDocument(t *testing.T) {
	a, ex, _ := newTestApp(t)

	msgs := collect(t, apply(a, filesReadMsg{Files: []session.File{pdfFile("a.pdf"), pdfFile("b.pdf")}}))
	require.Equal(t, []string{"a.pdf", "b.pdf"}, ex.Calls())
	require.Len(t, extractionsIn(msgs), 2)
	require.Len(t, previewsIn(msgs), 1)

	docs := a.session.Documents()
	require.Len(t, docs, 2)
	require.Equal(t, docs[0].ID, a.session.ActiveID())
	require.Equal(t, docs[0].ID, previewsIn(msgs)[0].ID)

	for _, m := range msgs {
		apply(a, m)
	}
	require.Equal(t, session.StatusDone, a.session.Status(docs[0].ID))
	require.Equal(t, session.StatusDone, a.session.Status(docs[1].ID))
	require.Equal(t, view.PreviewReady, a.pv.State)

	out := screen(a)
	require.Contains(t, out, "text of a.pdf")
	require.NotContains(t, out, "text of b.pdf")
	require.Contains(t, out, "2 pages")
}

func TestBackgroundCompletionWhileAnotherIsActive(t *testing.T) {
	a, ex, _ := newTestApp(t)
	msgs := collect(t, apply(a, filesReadMsg{Files: []session.File{pdfFile("a.pdf"), pdfFile("b.pdf")}}))
	docs := a.session.Documents()
	aID, bID := docs[0].ID, docs[1].ID

	for _, m := range previewsIn(msgs) {
		apply(a, m)
	}
	for _, e := range extractionsIn(msgs) {
		if e.ID == bID {
			apply(a, e)
		}
	}
	require.Equal(t, aID, a.session.ActiveID())
	require.Equal(t, session.StatusPending, a.session.Status(aID))
	require.Equal(t, session.StatusDone, a.session.Status(bID))
	out := screen(a)
	require.Contains(t, out, view.Extracting)
	require.Contains(t, out, view.GlyphDone+" b.pdf")

	// Activating b shows its stored text without a second extraction.
	next := collect(t, apply(a, keyPress("tab")))
	require.Equal(t, bID, a.session.ActiveID())
	require.Empty(t, extractionsIn(next))
	require.Len(t, previewsIn(next), 1)
	require.Len(t, ex.Calls(), 2)
	require.Contains(t, screen(a), "text of b.pdf")
}

func TestRemovingOnlyDocumentDiscardsLateResult(t *testing.T) {
	a, _, _ := newTestApp(t)
	msgs := collect(t, apply(a, filesReadMsg{Files: []session.File{pdfFile("a.pdf")}}))
	id := a.session.ActiveID()

	require.Nil(t, apply(a, keyPress("x")))
	require.Zero(t, a.session.Len())
	require.Equal(t, session.Identity(""), a.session.ActiveID())
	require.Equal(t, view.Preview{}, a.pv)
	require.Empty(t, a.inflight)

	for _, m := range msgs {
		apply(a, m)
	}
	_, ok := a.session.Result(id)
	require.False(t, ok)
	require.Zero(t, a.session.Len())
	require.Contains(t, screen(a), view.NoPDFLoaded)
}

func TestMixedBatchKeepsOnlyPDFs(t *testing.T) {
	a, ex, _ := newTestApp(t)
	drain(t, a, apply(a, filesReadMsg{Files: []session.File{textFile("notes.txt"), pdfFile("a.pdf")}}))

	require.Equal(t, 1, a.session.Len())
	require.Equal(t, "a.pdf", a.session.Active().Name)
	require.Equal(t, []string{"a.pdf"}, ex.Calls())
	require.False(t, a.statusErr)
	require.Equal(t, "Added 1 PDF", a.status)
}

func TestLoneNonPDFIsRejected(t *testing.T) {
	a, ex, _ := newTestApp(t)
	require.Nil(t, apply(a, filesReadMsg{Files: []session.File{textFile("notes.txt")}}))
	require.Zero(t, a.session.Len())
	require.Empty(t, ex.Calls())
	require.True(t, a.statusErr)
	require.Contains(t, screen(a), invalidTypeStatus)
}

func TestStalePreviewIsDropped(t *testing.T) {
	a, _, _ := newTestApp(t)
	first := previewsIn(collect(t, apply(a, filesReadMsg{Files: []session.File{pdfFile("a.pdf"), pdfFile("b.pdf")}})))
	require.Len(t, first, 1)

	toB := previewsIn(collect(t, apply(a, keyPress("tab"))))
	backToA := previewsIn(collect(t, apply(a, keyPress("shift+tab"))))
	require.Len(t, toB, 1)
	require.Len(t, backToA, 1)
	require.Equal(t, first[0].ID, backToA[0].ID)

	// Same identity, older generation.
	apply(a, first[0])
	require.Equal(t, view.PreviewPending, a.pv.State)
	// Different identity.
	apply(a, toB[0])
	require.Equal(t, view.PreviewPending, a.pv.State)

	apply(a, backToA[0])
	require.Equal(t, view.PreviewReady, a.pv.State)
	require.Equal(t, 3, a.pv.Page.PageCount)
	require.Contains(t, screen(a), "render 3")
}

func TestExtractionFailureBecomesResult(t *testing.T) {
	a, ex, _ := newTestApp(t)
	ex.errs["bad.pdf"] = &extract.Error{Status: 400, Message: "Invalid or corrupted PDF file"}
	drain(t, a, apply(a, filesReadMsg{Files: []session.File{pdfFile("bad.pdf")}}))

	id := a.session.ActiveID()
	require.Equal(t, session.StatusError, a.session.Status(id))
	r, ok := a.session.Result(id)
	require.True(t, ok)
	require.Equal(t, "Invalid or corrupted PDF file", r.Message)

	out := screen(a)
	require.Contains(t, out, "Failed to extract text: Invalid or corrupted PDF file")
	require.Contains(t, out, view.GlyphError+" bad.pdf")
	require.Contains(t, out, view.ErrorBadge)
}

func TestPreviewFailureShowsOnlyWhileActive(t *testing.T) {
	a, _, rd := newTestApp(t)
	rd.fail = true
	drain(t, a, apply(a, filesReadMsg{Files: []session.File{pdfFile("a.pdf"), pdfFile("b.pdf")}}))
	require.Equal(t, view.PreviewFailed, a.pv.State)
	require.Contains(t, screen(a), preview.FailureMessage)

	rd.fail = false
	drain(t, a, apply(a, keyPress("tab")))
	require.Equal(t, view.PreviewReady, a.pv.State)
	require.NotContains(t, screen(a), preview.FailureMessage)
}

func TestCloseActivatesSamePositionThenLast(t *testing.T) {
	a, _, _ := newTestApp(t)
	drain(t, a, apply(a, filesReadMsg{Files: []session.File{pdfFile("a.pdf"), pdfFile("b.pdf"), pdfFile("c.pdf")}}))

	drain(t, a, apply(a, keyPress("2")))
	require.Equal(t, "b.pdf", a.session.Active().Name)

	drain(t, a, apply(a, keyPress("x")))
	require.Equal(t, "c.pdf", a.session.Active().Name)
	require.Equal(t, a.session.ActiveID(), a.pv.ID)
	require.Equal(t, "Closed b.pdf", a.status)

	drain(t, a, apply(a, keyPress("x")))
	require.Equal(t, "a.pdf", a.session.Active().Name)
	require.Equal(t, 1, a.session.Len())
}

func TestCloseBackgroundTabKeepsActiveDocument(t *testing.T) {
	a, ex, rd := newTestApp(t)
	cmd := apply(a, filesReadMsg{Files: []session.File{pdfFile("a.pdf"), pdfFile("b.pdf"), pdfFile("c.pdf")}})
	msgs := collect(t, cmd)
	for _, p := range previewsIn(msgs) {
		apply(a, p)
	}
	pending := extractionsIn(msgs)
	require.Len(t, pending, 3)
	require.Equal(t, "a.pdf", a.session.Active().Name)
	pv := a.pv
	b := a.session.At(1)

	closeSecond := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'2'}, Alt: true}
	require.Nil(t, apply(a, closeSecond), "closing a background tab issues no preview")
	require.Equal(t, "a.pdf", a.session.Active().Name)
	require.Equal(t, pv, a.pv)
	require.False(t, a.session.Contains(b.ID))
	require.NotContains(t, a.inflight, b.ID)
	require.Equal(t, "Closed b.pdf", a.status)

	for _, e := range pending {
		apply(a, e)
	}
	_, ok := a.session.Result(b.ID)
	require.False(t, ok, "late result for a closed tab is discarded")
	require.Equal(t, 2, a.session.Len())
	require.Len(t, ex.Calls(), 3)
	require.Equal(t, 1, rd.count)

	out := screen(a)
	require.NotContains(t, out, "b.pdf ✕")
	require.Contains(t, out, "c.pdf")

	require.Nil(t, apply(a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'9'}, Alt: true}))
	require.Equal(t, 2, a.session.Len())
}

func TestNavigationKeys(t *testing.T) {
	a, ex, _ := newTestApp(t)
	drain(t, a, apply(a, filesReadMsg{Files: []session.File{pdfFile("a.pdf"), pdfFile("b.pdf"), pdfFile("c.pdf")}}))

	drain(t, a, apply(a, keyPress("3")))
	require.Equal(t, "c.pdf", a.session.Active().Name)
	drain(t, a, apply(a, keyPress("tab")))
	require.Equal(t, "a.pdf", a.session.Active().Name, "next wraps around")
	drain(t, a, apply(a, keyPress("shift+tab")))
	require.Equal(t, "c.pdf", a.session.Active().Name, "prev wraps around")
	drain(t, a, apply(a, keyPress("9")))
	require.Equal(t, "c.pdf", a.session.Active().Name, "out of range jump is ignored")

	// Re-selecting the active document issues nothing.
	require.Nil(t, apply(a, keyPress("3")))
	require.Len(t, ex.Calls(), 3)
}

func TestClearAllResets(t *testing.T) {
	a, _, _ := newTestApp(t)
	msgs := collect(t, apply(a, filesReadMsg{Files: []session.File{pdfFile("a.pdf"), pdfFile("b.pdf")}}))
	require.Len(t, a.inflight, 2)

	drain(t, a, apply(a, keyPress("X")))
	require.Zero(t, a.session.Len())
	require.Empty(t, a.inflight)
	require.Equal(t, view.Preview{}, a.pv)

	for _, m := range msgs {
		apply(a, m)
	}
	require.Zero(t, a.session.Len())
	require.Contains(t, screen(a), view.EmptyPreview)
}

func TestDetailScrollResetsOnActivation(t *testing.T) {
	a, _, _ := newTestApp(t)
	drain(t, a, apply(a, filesReadMsg{Files: []session.File{pdfFile("a.pdf"), pdfFile("b.pdf")}}))
	long := session.Succeeded(fmt.Sprintf("%0500d", 0), 1)
	for i := 0; i < 6; i++ {
		long.Text += " " + long.Text
	}
	require.True(t, a.session.RecordResult(a.session.ActiveID(), long))

	drain(t, a, apply(a, keyPress("down")))
	drain(t, a, apply(a, keyPress("down")))
	require.Equal(t, 2, a.scroll)
	drain(t, a, apply(a, keyPress("up")))
	require.Equal(t, 1, a.scroll)

	drain(t, a, apply(a, keyPress("tab")))
	require.Zero(t, a.scroll)
}

func writePDF(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, testdata.PDF("page of "+name), 0o644))
	return path
}

func TestPasteDropLoadsBatch(t *testing.T) {
	a, ex, _ := newTestApp(t)
	dir := t.TempDir()
	p1 := writePDF(t, dir, "first doc.pdf")
	p2 := writePDF(t, dir, "second.pdf")

	paste := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("'" + p1 + "' " + p2 + " " + filepath.Join(dir, "missing.pdf")), Paste: true}
	drain(t, a, apply(a, paste))

	require.Equal(t, 2, a.session.Len())
	require.Equal(t, []string{"first doc.pdf", "second.pdf"}, ex.Calls())
	require.True(t, a.statusErr)
	require.Contains(t, a.status, "missing.pdf")
}

func TestInitLoadsCommandLinePaths(t *testing.T) {
	dir := t.TempDir()
	ex := &fakeExtractor{errs: map[string]error{}}
	a := New(context.Background(), Options{
		Extractor: ex,
		Renderer:  &fakeRenderer{},
		Paths:     []string{writePDF(t, dir, "a.pdf"), writePDF(t, dir, "b.pdf")},
	})
	drain(t, a, a.Init())
	require.Equal(t, 2, a.session.Len())
	require.Equal(t, "a.pdf", a.session.Active().Name)
	require.Equal(t, []string{"a.pdf", "b.pdf"}, ex.Calls())
}

func TestPickerSelectsMultipleFiles(t *testing.T) {
	a, ex, _ := newTestApp(t)
	dir := a.pickerDir
	writePDF(t, dir, "a.pdf")
	writePDF(t, dir, "b.pdf")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("notes"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	drain(t, a, apply(a, keyPress("o")))
	require.NotNil(t, a.picker)
	require.Contains(t, screen(a), "Open PDFs")

	for _, r := range "pdf" {
		drain(t, a, apply(a, keyPress(string(r))))
	}
	require.Len(t, a.picker.filtered, 2)

	drain(t, a, apply(a, keyPress(" ")))
	drain(t, a, apply(a, keyPress("down")))
	drain(t, a, apply(a, keyPress(" ")))
	drain(t, a, apply(a, keyPress("enter")))

	require.Nil(t, a.picker)
	require.Equal(t, 2, a.session.Len())
	require.Equal(t, []string{"a.pdf", "b.pdf"}, ex.Calls())
}

func TestPickerEntersFolderAndCancels(t *testing.T) {
	a, _, _ := newTestApp(t)
	sub := filepath.Join(a.pickerDir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writePDF(t, sub, "inner.pdf")

	drain(t, a, apply(a, keyPress("o")))
	for _, r := range "sub" {
		drain(t, a, apply(a, keyPress(string(r))))
	}
	drain(t, a, apply(a, keyPress("enter")))
	require.NotNil(t, a.picker)
	require.Equal(t, sub, a.picker.dir)

	drain(t, a, apply(a, keyPress("esc")))
	require.Nil(t, a.picker)
	require.Zero(t, a.session.Len())
}
