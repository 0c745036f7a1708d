package session

import (
	"errors"
	"net/http"
)

// PDFContentType is the only content type admitted into a session.
const PDFContentType = "application/pdf"

// ErrInvalidFileType is returned when a selection contains no PDF at all.
var ErrInvalidFileType = errors.New("please select a valid PDF document")

// Identity is the stable token assigned to a Document at intake.
type Identity string

// File is one raw input from the picker, a drop or the command line.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// NewFile builds a File and sniffs its content type from the payload.
func NewFile(name string, data []byte) File {
	return File{Name: name, ContentType: DetectContentType(data), Data: data}
}

// DetectContentType reports the sniffed media type without parameters.
func DetectContentType(data []byte) string {
	ct := http.DetectContentType(data)
	for i := 0; i < len(ct); i++ {
		if ct[i] == ';' {
			return ct[:i]
		}
	}
	return ct
}

// Document is one loaded PDF.
type Document struct {
	ID   Identity
	Name string
	Size int64

	data []byte
}

// Bytes returns the raw payload. Callers must treat it as read-only.
func (d *Document) Bytes() []byte {
	if d == nil {
		return nil
	}
	return d.data
}

// ResultKind distinguishes the ExtractionResult variants.
type ResultKind int

const (
	ResultSuccess ResultKind = iota + 1
	ResultFailure
)

// Stats mirrors the counters reported by the extraction endpoint.
type Stats struct {
	Characters int
	Words      int
	Lines      int
}

// ExtractionResult is the outcome of one completed extraction attempt.
type ExtractionResult struct {
	Kind ResultKind

	// success
	Text   string
	Pages  int // 0 when the server did not report a page count
	Title  string
	Author string
	Stats  Stats

	// failure
	Message string
}

// Succeeded builds a Success result.
func Succeeded(text string, pages int) ExtractionResult {
	return ExtractionResult{Kind: ResultSuccess, Text: text, Pages: pages}
}

// Failed builds a Failure result.
func Failed(message string) ExtractionResult {
	return ExtractionResult{Kind: ResultFailure, Message: message}
}

func (r ExtractionResult) OK() bool { return r.Kind == ResultSuccess }

// Status is the per-document extraction state shown on content tabs.
type Status int

const (
	StatusPending Status = iota
	StatusDone
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	default:
		return "pending"
	}
}
