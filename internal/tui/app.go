// Package tui is the interactive front end. App owns the session and is the
// only code that mutates it; every slow operation runs as a tea.Cmd whose
// completion comes back through Update as a message keyed by document
// identity.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/jask/pdfdesk/internal/extract"
	"github.com/jask/pdfdesk/internal/preview"
	"github.com/jask/pdfdesk/internal/session"
	"github.com/jask/pdfdesk/internal/view"
)

const invalidTypeStatus = "Please select a valid PDF document"

// Extractor sends a document to the extraction endpoint.
type Extractor interface {
	Extract(ctx context.Context, name string, data []byte) (extract.Response, error)
}

// PreviewRenderer renders the first page of a document.
type PreviewRenderer interface {
	Render(ctx context.Context, data []byte) (preview.Page, error)
}

// Options wires an App.
type Options struct {
	Extractor Extractor
	Renderer  PreviewRenderer
	Logger    *zap.Logger
	NameWidth int
	StartDir  string
	// Paths are loaded as one batch on start.
	Paths []string
}

// App is the Bubble Tea model.
type App struct {
	ctx       context.Context
	session   *session.Session
	extractor Extractor
	renderer  PreviewRenderer
	logger    *zap.Logger

	keys       keyMap
	pickerKeys pickerKeyMap
	help       help.Model
	picker     *pickerState
	pickerDir  string
	initial    []string

	pv            view.Preview
	previewGen    uint64
	previewCancel context.CancelFunc
	inflight      map[session.Identity]context.CancelFunc

	scroll    int
	nameWidth int
	width     int
	height    int
	status    string
	statusErr bool
}

func New(ctx context.Context, opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := opts.StartDir
	if dir == "" {
		if wd, err := os.Getwd(); err == nil {
			dir = wd
		} else {
			dir = "."
		}
	}
	return &App{
		ctx:        ctx,
		session:    session.New(),
		extractor:  opts.Extractor,
		renderer:   opts.Renderer,
		logger:     logger,
		keys:       defaultKeys(),
		pickerKeys: defaultPickerKeys(),
		help:       help.New(),
		pickerDir:  dir,
		initial:    append([]string(nil), opts.Paths...),
		inflight:   make(map[session.Identity]context.CancelFunc),
		nameWidth:  opts.NameWidth,
	}
}

func (a *App) Init() tea.Cmd {
	if len(a.initial) == 0 {
		return nil
	}
	return readFilesCmd(a.initial)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
		a.help.Width = m.Width
		a.scrollBy(0)
	case tea.KeyMsg:
		if m.Paste {
			return a, a.drop(string(m.Runes))
		}
		if a.picker != nil {
			return a, a.handlePickerKey(m)
		}
		return a, a.handleKey(m)
	case filesReadMsg:
		return a, a.intake(m)
	case extractionDoneMsg:
		a.onExtraction(m)
	case previewDoneMsg:
		a.onPreview(m)
	case dirListedMsg:
		if m.Err != nil {
			a.setError("cannot open folder: " + m.Err.Error())
			return a, nil
		}
		a.pickerDir = m.Dir
		a.picker = newPicker(m.Dir, m.Items)
	case statusMsg:
		a.setStatus(string(m))
	case errMsg:
		a.setError("error: " + m.Error())
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(m, a.keys.Quit):
		a.cancelAll()
		return tea.Quit
	case key.Matches(m, a.keys.Open):
		return listDirCmd(a.pickerDir)
	case key.Matches(m, a.keys.NextTab):
		return a.step(1)
	case key.Matches(m, a.keys.PrevTab):
		return a.step(-1)
	case key.Matches(m, a.keys.JumpTab):
		idx := int(m.String()[0] - '1')
		if doc := a.session.At(idx); doc != nil {
			return a.setActive(doc.ID)
		}
	case key.Matches(m, a.keys.CloseTab):
		k := m.String()
		return a.closeDoc(a.session.At(int(k[len(k)-1] - '1')))
	case key.Matches(m, a.keys.Close):
		return a.closeDoc(a.session.Active())
	case key.Matches(m, a.keys.ClearAll):
		return a.clearAll()
	case key.Matches(m, a.keys.Up):
		a.scrollBy(-1)
	case key.Matches(m, a.keys.Down):
		a.scrollBy(1)
	case key.Matches(m, a.keys.PageUp):
		a.scrollBy(-max(1, a.layout().TextHeight-1))
	case key.Matches(m, a.keys.PageDown):
		a.scrollBy(max(1, a.layout().TextHeight-1))
	case key.Matches(m, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll
	}
	return nil
}

func (a *App) handlePickerKey(m tea.KeyMsg) tea.Cmd {
	if m.String() == "ctrl+c" {
		a.cancelAll()
		return tea.Quit
	}
	res := a.picker.HandleKey(m.String())
	switch res.Action {
	case pickerActionCancelled:
		a.picker = nil
	case pickerActionEnterDir:
		return listDirCmd(res.Dir)
	case pickerActionSubmitted:
		a.picker = nil
		a.setStatus("Reading " + pluralize(len(res.Paths), "file", "files") + "…")
		return readFilesCmd(res.Paths)
	}
	return nil
}

// drop loads pasted paths as one batch.
func (a *App) drop(text string) tea.Cmd {
	paths := parseDrop(text)
	if len(paths) == 0 {
		return nil
	}
	a.picker = nil
	a.setStatus("Reading " + pluralize(len(paths), "file", "files") + "…")
	return readFilesCmd(paths)
}

// intake adds a batch, issues one extraction per added document and, when
// the batch activated a document, its preview.
func (a *App) intake(m filesReadMsg) tea.Cmd {
	var readNote string
	if len(m.Failed) > 0 {
		readNote = "could not read " + strings.Join(m.Failed, "; ")
		a.logger.Warn("intake read failures", zap.Strings("errors", m.Failed))
	}
	if len(m.Files) == 0 {
		if readNote != "" {
			a.setError(readNote)
		}
		return nil
	}

	res, err := a.session.AddDocuments(m.Files)
	if len(res.Rejected) > 0 {
		a.logger.Debug("dropped non-pdf files", zap.Strings("names", res.Rejected))
	}
	if errors.Is(err, session.ErrInvalidFileType) {
		a.setError(invalidTypeStatus)
		return nil
	}

	cmds := make([]tea.Cmd, 0, len(res.Added)+1)
	for _, doc := range res.Added {
		cmds = append(cmds, a.startExtraction(doc))
	}
	if res.Activated != nil {
		cmds = append(cmds, a.activate(res.Activated))
	}
	status := "Added " + pluralize(len(res.Added), "PDF", "PDFs")
	if readNote != "" {
		a.setError(status + "; " + readNote)
	} else {
		a.setStatus(status)
	}
	a.logger.Info("documents added", zap.Int("added", len(res.Added)), zap.Int("total", a.session.Len()))
	return tea.Batch(cmds...)
}

func (a *App) startExtraction(doc *session.Document) tea.Cmd {
	ctx, cancel := context.WithCancel(a.ctx)
	a.inflight[doc.ID] = cancel
	return a.extractCmd(ctx, doc)
}

func (a *App) onExtraction(m extractionDoneMsg) {
	if cancel, ok := a.inflight[m.ID]; ok {
		cancel()
		delete(a.inflight, m.ID)
	}
	if !a.session.RecordResult(m.ID, m.Result) {
		a.logger.Debug("discarded extraction for removed document", zap.String("id", string(m.ID)))
		return
	}
	if !m.Result.OK() {
		a.logger.Info("extraction failed", zap.String("id", string(m.ID)), zap.String("message", m.Result.Message))
	}
}

// activate points the preview at doc under a fresh generation. A nil doc
// resets the preview for an empty session.
func (a *App) activate(doc *session.Document) tea.Cmd {
	a.scroll = 0
	if a.previewCancel != nil {
		a.previewCancel()
		a.previewCancel = nil
	}
	a.previewGen++
	if doc == nil {
		a.pv = view.Preview{}
		return nil
	}
	ctx, cancel := context.WithCancel(a.ctx)
	a.previewCancel = cancel
	a.pv = view.Preview{ID: doc.ID, State: view.PreviewPending}
	return a.previewCmd(ctx, doc, a.previewGen)
}

func (a *App) onPreview(m previewDoneMsg) {
	if m.Gen != a.previewGen || m.ID != a.session.ActiveID() {
		a.logger.Debug("dropped stale preview", zap.String("id", string(m.ID)), zap.Uint64("gen", m.Gen))
		return
	}
	if a.previewCancel != nil {
		a.previewCancel()
		a.previewCancel = nil
	}
	if m.Err != nil {
		a.logger.Info("preview failed", zap.String("id", string(m.ID)), zap.Error(m.Err))
		a.pv = view.Preview{ID: m.ID, State: view.PreviewFailed, Message: preview.FailureMessage}
		return
	}
	a.pv = view.Preview{ID: m.ID, State: view.PreviewReady, Page: m.Page}
}

func (a *App) setActive(id session.Identity) tea.Cmd {
	if doc := a.session.SetActive(id); doc != nil {
		return a.activate(doc)
	}
	return nil
}

func (a *App) step(delta int) tea.Cmd {
	n := a.session.Len()
	if n == 0 {
		return nil
	}
	idx := (a.session.ActiveIndex() + delta + n) % n
	return a.setActive(a.session.At(idx).ID)
}

// closeDoc removes doc. Closing a background tab leaves the active
// document and its preview alone.
func (a *App) closeDoc(doc *session.Document) tea.Cmd {
	if doc == nil {
		return nil
	}
	a.cancelExtraction(doc.ID)
	next := a.session.Remove(doc.ID)
	a.setStatus("Closed " + doc.Name)
	if next != nil || a.session.Len() == 0 {
		return a.activate(next)
	}
	return nil
}

func (a *App) clearAll() tea.Cmd {
	if a.session.Len() == 0 {
		return nil
	}
	for id := range a.inflight {
		a.cancelExtraction(id)
	}
	a.session.Clear()
	a.setStatus("Cleared all documents")
	return a.activate(nil)
}

func (a *App) cancelExtraction(id session.Identity) {
	if cancel, ok := a.inflight[id]; ok {
		cancel()
		delete(a.inflight, id)
	}
}

func (a *App) cancelAll() {
	for id := range a.inflight {
		a.cancelExtraction(id)
	}
	if a.previewCancel != nil {
		a.previewCancel()
		a.previewCancel = nil
	}
}

func (a *App) scrollBy(delta int) {
	l := a.layout()
	f := view.Project(a.session, a.pv, l)
	a.scroll = view.ClampScroll(a.scroll+delta, f.TextLines, l.TextHeight)
}

func (a *App) layout() view.Layout {
	return view.Layout{
		Width:      a.width,
		NameWidth:  a.nameWidth,
		TextHeight: a.textHeight(),
		Scroll:     a.scroll,
	}
}

// textHeight is what remains for the text area after the fixed chrome: header,
// two tab strips, meta line, two boxed sections, status and help.
func (a *App) textHeight() int {
	if a.height <= 0 {
		return 0
	}
	previewLines := 1
	if a.pv.State == view.PreviewReady {
		previewLines = 1 + max(1, len(a.pv.Page.Lines))
		if a.pv.Page.Truncated {
			previewLines++
		}
	}
	return max(3, a.height-14-previewLines)
}

func (a *App) setStatus(s string) { a.status, a.statusErr = view.Sanitize(s), false }
func (a *App) setError(s string)  { a.status, a.statusErr = view.Sanitize(s), true }

func (a *App) View() string {
	header := view.TitleStyle.Render("pdfdesk") + "  " +
		view.MutedStyle.Render(pluralize(a.session.Len(), "document", "documents"))
	if a.width > 0 {
		header = view.HeaderBarStyle.Width(a.width).Render(header)
	} else {
		header = view.HeaderBarStyle.Render(header)
	}

	var body, footer string
	if a.picker != nil {
		body = renderPicker(a.picker, a.width, a.height)
		footer = a.help.View(a.pickerKeys)
	} else {
		f := view.Project(a.session, a.pv, a.layout())
		body = strings.Join([]string{f.FileTabs, f.ContentTabs, f.Detail}, "\n")
		footer = a.help.View(a.keys)
	}

	status := strings.ReplaceAll(a.status, "\n", " ")
	if a.statusErr {
		status = view.ErrorStyle.Render(status)
	}
	statusStyle := view.StatusBarStyle
	if a.width > 0 {
		statusStyle = statusStyle.Width(a.width)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		body,
		statusStyle.Render(status),
		view.FooterStyle.Render(footer),
	)
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
