package tui

import (
	"github.com/jask/pdfdesk/internal/preview"
	"github.com/jask/pdfdesk/internal/session"
)

// filesReadMsg carries one intake batch read off the UI goroutine.
type filesReadMsg struct {
	Files  []session.File
	Failed []string // "name: error" for unreadable paths
}

// extractionDoneMsg is the completion of the extraction issued at add time.
type extractionDoneMsg struct {
	ID     session.Identity
	Result session.ExtractionResult
}

// previewDoneMsg is tagged with the activation generation it was issued for.
type previewDoneMsg struct {
	ID   session.Identity
	Gen  uint64
	Page preview.Page
	Err  error
}

type dirListedMsg struct {
	Dir   string
	Items []pickerItem
	Err   error
}

type statusMsg string

type errMsg struct{ error }
