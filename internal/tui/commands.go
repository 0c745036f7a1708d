package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/pdfdesk/internal/extract"
	"github.com/jask/pdfdesk/internal/session"
)

// readFilesCmd reads paths in order. Unreadable entries are reported, not
// fatal, so one bad path does not sink the batch.
func readFilesCmd(paths []string) tea.Cmd {
	paths = append([]string(nil), paths...)
	return func() tea.Msg {
		var msg filesReadMsg
		for _, p := range paths {
			name := filepath.Base(p)
			info, err := os.Stat(p)
			if err != nil {
				msg.Failed = append(msg.Failed, fmt.Sprintf("%s: %v", name, err))
				continue
			}
			if info.IsDir() {
				msg.Failed = append(msg.Failed, name+": is a directory")
				continue
			}
			data, err := os.ReadFile(p)
			if err != nil {
				msg.Failed = append(msg.Failed, fmt.Sprintf("%s: %v", name, err))
				continue
			}
			msg.Files = append(msg.Files, session.NewFile(name, data))
		}
		return msg
	}
}

func listDirCmd(dir string) tea.Cmd {
	return func() tea.Msg {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return dirListedMsg{Dir: dir, Err: err}
		}
		items, err := listDir(abs)
		return dirListedMsg{Dir: abs, Items: items, Err: err}
	}
}

// extractCmd issues the single extraction for doc. The result always comes
// back as data: transport and server failures become a Failure result.
func (a *App) extractCmd(ctx context.Context, doc *session.Document) tea.Cmd {
	id, name, data := doc.ID, doc.Name, doc.Bytes()
	extractor := a.extractor
	return func() tea.Msg {
		resp, err := extractor.Extract(ctx, name, data)
		if err != nil {
			return extractionDoneMsg{ID: id, Result: session.Failed(extract.FailureMessage(err))}
		}
		r := session.Succeeded(resp.Text, resp.Pages())
		if resp.Metadata != nil {
			r.Title, r.Author = resp.Metadata.Title, resp.Metadata.Author
		}
		if resp.Stats != nil {
			r.Stats = session.Stats{
				Characters: resp.Stats.Characters,
				Words:      resp.Stats.Words,
				Lines:      resp.Stats.Lines,
			}
		}
		return extractionDoneMsg{ID: id, Result: r}
	}
}

func (a *App) previewCmd(ctx context.Context, doc *session.Document, gen uint64) tea.Cmd {
	id, data := doc.ID, doc.Bytes()
	renderer := a.renderer
	return func() tea.Msg {
		page, err := renderer.Render(ctx, data)
		return previewDoneMsg{ID: id, Gen: gen, Page: page, Err: err}
	}
}
