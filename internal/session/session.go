// Package session holds the multi-document state: loaded documents in order,
// the active pointer and extraction results keyed by document identity.
//
// All mutation goes through Session methods. A Session is not safe for
// concurrent use; it is owned by the UI event loop.
package session

import (
	"github.com/google/uuid"
)

// Session is the single source of truth for loaded documents.
type Session struct {
	docs    []*Document
	active  Identity
	results map[Identity]ExtractionResult
	newID   func() Identity
}

// New returns an empty session.
func New() *Session {
	return &Session{
		results: make(map[Identity]ExtractionResult),
		newID:   func() Identity { return Identity(uuid.NewString()) },
	}
}

// AddResult describes the outcome of AddDocuments.
type AddResult struct {
	Added    []*Document
	Rejected []string
	// Activated is set when the add changed the active document.
	Activated *Document
}

// AddDocuments appends every PDF in files, in order, under fresh identities.
// Non-PDF entries are dropped. If files is non-empty and none is a PDF the
// selection is rejected with ErrInvalidFileType and the session is unchanged.
func (s *Session) AddDocuments(files []File) (AddResult, error) {
	var res AddResult
	for _, f := range files {
		if f.ContentType != PDFContentType {
			res.Rejected = append(res.Rejected, f.Name)
			continue
		}
		id := s.freshID()
		doc := &Document{ID: id, Name: f.Name, Size: int64(len(f.Data)), data: f.Data}
		s.docs = append(s.docs, doc)
		res.Added = append(res.Added, doc)
	}
	if len(files) > 0 && len(res.Added) == 0 {
		return res, ErrInvalidFileType
	}
	if s.active == "" && len(res.Added) > 0 {
		s.active = res.Added[0].ID
		res.Activated = res.Added[0]
	}
	return res, nil
}

func (s *Session) freshID() Identity {
	for {
		id := s.newID()
		if id != "" && s.indexOf(id) < 0 {
			return id
		}
	}
}

// SetActive makes id the active document. It returns the newly active
// document, or nil when id is unknown or already active.
func (s *Session) SetActive(id Identity) *Document {
	if id == s.active {
		return nil
	}
	idx := s.indexOf(id)
	if idx < 0 {
		return nil
	}
	s.active = id
	return s.docs[idx]
}

// Remove drops the document and its result. When the active document is
// removed, the document now at the same position (or the new last one)
// becomes active and is returned; nil means the active document did not
// change to a new one.
func (s *Session) Remove(id Identity) *Document {
	idx := s.indexOf(id)
	if idx < 0 {
		return nil
	}
	s.docs = append(s.docs[:idx:idx], s.docs[idx+1:]...)
	delete(s.results, id)
	if s.active != id {
		return nil
	}
	if len(s.docs) == 0 {
		s.active = ""
		return nil
	}
	if idx >= len(s.docs) {
		idx = len(s.docs) - 1
	}
	s.active = s.docs[idx].ID
	return s.docs[idx]
}

// Clear removes every document and result.
func (s *Session) Clear() {
	s.docs = nil
	s.active = ""
	s.results = make(map[Identity]ExtractionResult)
}

// RecordResult stores r for id whether or not id is active. Results for
// identities no longer in the session are discarded and false is returned.
func (s *Session) RecordResult(id Identity, r ExtractionResult) bool {
	if s.indexOf(id) < 0 {
		return false
	}
	s.results[id] = r
	return true
}

// Documents returns the loaded documents in insertion order.
func (s *Session) Documents() []*Document {
	out := make([]*Document, len(s.docs))
	copy(out, s.docs)
	return out
}

func (s *Session) Len() int { return len(s.docs) }

// ActiveID returns the active identity, or "" when the session is empty.
func (s *Session) ActiveID() Identity { return s.active }

// Active returns the active document or nil.
func (s *Session) Active() *Document {
	if idx := s.indexOf(s.active); idx >= 0 {
		return s.docs[idx]
	}
	return nil
}

// ActiveIndex returns the position of the active document or -1.
func (s *Session) ActiveIndex() int {
	if s.active == "" {
		return -1
	}
	return s.indexOf(s.active)
}

func (s *Session) Contains(id Identity) bool { return s.indexOf(id) >= 0 }

// Result returns the stored extraction result for id.
func (s *Session) Result(id Identity) (ExtractionResult, bool) {
	r, ok := s.results[id]
	return r, ok
}

// Status derives the content-tab state for id.
func (s *Session) Status(id Identity) Status {
	r, ok := s.results[id]
	switch {
	case !ok:
		return StatusPending
	case r.OK():
		return StatusDone
	default:
		return StatusError
	}
}

// At returns the document at position i, or nil when out of range.
func (s *Session) At(i int) *Document {
	if i < 0 || i >= len(s.docs) {
		return nil
	}
	return s.docs[i]
}

func (s *Session) indexOf(id Identity) int {
	if id == "" {
		return -1
	}
	for i, d := range s.docs {
		if d.ID == id {
			return i
		}
	}
	return -1
}
