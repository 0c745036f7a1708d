package session

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

var pdfBytes = []byte("%PDF-1.4\n%test\n")

func pdfFile(name string) File { return NewFile(name, pdfBytes) }

func textFile(name string) File { return NewFile(name, []byte("just some notes\n")) }

func seqIDs(s *Session) {
	n := 0
	s.newID = func() Identity {
		n++
		return Identity(fmt.Sprintf("doc-%d", n))
	}
}

func TestNewFileSniffsPDF(t *testing.T) {
	require.Equal(t, PDFContentType, pdfFile("a.pdf").ContentType)
	require.Equal(t, "text/plain", textFile("a.txt").ContentType)
}

func TestAddBatchActivatesFirst(t *testing.T) {
	s := New()
	res, err := s.AddDocuments([]File{
		NewFile("a.pdf", append(append([]byte{}, pdfBytes...), make([]byte, 1<<20)...)),
		NewFile("b.pdf", append(append([]byte{}, pdfBytes...), make([]byte, 2<<20)...)),
	})
	require.NoError(t, err)
	require.Len(t, res.Added, 2)
	require.NotNil(t, res.Activated)
	require.Equal(t, "a.pdf", res.Activated.Name)
	require.Equal(t, res.Added[0].ID, s.ActiveID())
	require.NotEqual(t, res.Added[0].ID, res.Added[1].ID)
	require.Equal(t, StatusPending, s.Status(res.Added[0].ID))
	require.Equal(t, StatusPending, s.Status(res.Added[1].ID))
}

func TestAddKeepsExistingActive(t *testing.T) {
	s := New()
	first, err := s.AddDocuments([]File{pdfFile("a.pdf")})
	require.NoError(t, err)
	res, err := s.AddDocuments([]File{pdfFile("b.pdf")})
	require.NoError(t, err)
	require.Nil(t, res.Activated)
	require.Equal(t, first.Added[0].ID, s.ActiveID())
	require.Equal(t, 2, s.Len())
}

func TestAddFiltersNonPDFInBatch(t *testing.T) {
	s := New()
	res, err := s.AddDocuments([]File{textFile("notes.txt"), pdfFile("a.pdf")})
	require.NoError(t, err)
	require.Equal(t, []string{"notes.txt"}, res.Rejected)
	require.Len(t, res.Added, 1)
	require.Equal(t, "a.pdf", s.Active().Name)
}

func TestAddRejectsLoneNonPDF(t *testing.T) {
	s := New()
	res, err := s.AddDocuments([]File{textFile("notes.txt")})
	require.True(t, errors.Is(err, ErrInvalidFileType))
	require.Empty(t, res.Added)
	require.Equal(t, 0, s.Len())
	require.Equal(t, Identity(""), s.ActiveID())
}

func TestSetActive(t *testing.T) {
	s := New()
	res, _ := s.AddDocuments([]File{pdfFile("a.pdf"), pdfFile("b.pdf")})
	a, b := res.Added[0], res.Added[1]

	require.Nil(t, s.SetActive(a.ID), "already active")
	require.Nil(t, s.SetActive("missing"))
	require.Equal(t, a.ID, s.ActiveID())

	got := s.SetActive(b.ID)
	require.NotNil(t, got)
	require.Equal(t, b.ID, got.ID)
	require.Equal(t, 1, s.ActiveIndex())
}

func TestRemoveActivePicksSamePositionThenLast(t *testing.T) {
	s := New()
	seqIDs(s)
	res, _ := s.AddDocuments([]File{pdfFile("a.pdf"), pdfFile("b.pdf"), pdfFile("c.pdf")})
	a, b, c := res.Added[0], res.Added[1], res.Added[2]

	s.SetActive(b.ID)
	next := s.Remove(b.ID)
	require.NotNil(t, next)
	require.Equal(t, c.ID, next.ID, "document at the same position")

	next = s.Remove(c.ID)
	require.NotNil(t, next)
	require.Equal(t, a.ID, next.ID, "removed last position falls back to new last")

	require.Nil(t, s.Remove(a.ID))
	require.Equal(t, 0, s.Len())
	require.Equal(t, Identity(""), s.ActiveID())
	require.Nil(t, s.Active())
}

func TestRemoveInactiveKeepsActiveAndOthersResults(t *testing.T) {
	s := New()
	res, _ := s.AddDocuments([]File{pdfFile("a.pdf"), pdfFile("b.pdf"), pdfFile("c.pdf")})
	a, b, c := res.Added[0], res.Added[1], res.Added[2]
	s.SetActive(c.ID)
	require.True(t, s.RecordResult(c.ID, Succeeded("hello", 1)))
	require.True(t, s.RecordResult(a.ID, Failed("boom")))

	require.Nil(t, s.Remove(a.ID))
	require.Equal(t, c.ID, s.ActiveID())
	r, ok := s.Result(c.ID)
	require.True(t, ok)
	require.Equal(t, "hello", r.Text)
	_, ok = s.Result(a.ID)
	require.False(t, ok)
	require.Equal(t, StatusPending, s.Status(b.ID))
}

func TestRecordResultAfterRemovalIsDiscarded(t *testing.T) {
	s := New()
	res, _ := s.AddDocuments([]File{pdfFile("a.pdf"), pdfFile("b.pdf")})
	b := res.Added[1]
	s.Remove(b.ID)

	require.False(t, s.RecordResult(b.ID, Succeeded("late", 2)))
	_, ok := s.Result(b.ID)
	require.False(t, ok)
	require.False(t, s.Contains(b.ID))
}

func TestRecordResultForBackgroundDocument(t *testing.T) {
	s := New()
	res, _ := s.AddDocuments([]File{pdfFile("a.pdf"), pdfFile("b.pdf")})
	a, b := res.Added[0], res.Added[1]

	require.True(t, s.RecordResult(b.ID, Succeeded("hello", 0)))
	require.Equal(t, StatusDone, s.Status(b.ID))
	require.Equal(t, StatusPending, s.Status(a.ID))
	require.Equal(t, a.ID, s.ActiveID())

	require.True(t, s.RecordResult(b.ID, Failed("retry failed")))
	require.Equal(t, StatusError, s.Status(b.ID))
}

func TestClear(t *testing.T) {
	s := New()
	res, _ := s.AddDocuments([]File{pdfFile("a.pdf"), pdfFile("b.pdf")})
	s.RecordResult(res.Added[0].ID, Succeeded("x", 1))
	s.Clear()
	require.Equal(t, 0, s.Len())
	require.Equal(t, Identity(""), s.ActiveID())
	_, ok := s.Result(res.Added[0].ID)
	require.False(t, ok)

	again, err := s.AddDocuments([]File{pdfFile("c.pdf")})
	require.NoError(t, err)
	require.Equal(t, again.Added[0].ID, s.ActiveID())
}

func TestDocumentsReturnsCopy(t *testing.T) {
	s := New()
	s.AddDocuments([]File{pdfFile("a.pdf"), pdfFile("b.pdf")})
	docs := s.Documents()
	docs[0] = nil
	require.NotNil(t, s.At(0))
}

// checkInvariants asserts the session invariants after every step.
func checkInvariants(t *testing.T, s *Session) {
	t.Helper()
	docs := s.Documents()
	if len(docs) == 0 {
		require.Equal(t, Identity(""), s.ActiveID())
	} else {
		require.True(t, s.Contains(s.ActiveID()), "active %q must be present", s.ActiveID())
	}
	seen := make(map[Identity]bool, len(docs))
	for _, d := range docs {
		require.False(t, seen[d.ID], "duplicate identity %q", d.ID)
		seen[d.ID] = true
	}
	for id := range s.results {
		require.True(t, seen[id], "result for removed identity %q", id)
	}
}

func TestRandomOperationSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 200; run++ {
		s := New()
		var everSeen []Identity
		for step := 0; step < 40; step++ {
			switch op := rng.Intn(6); op {
			case 0, 1:
				n := rng.Intn(4)
				files := make([]File, 0, n)
				for i := 0; i < n; i++ {
					if rng.Intn(4) == 0 {
						files = append(files, textFile(fmt.Sprintf("n%d.txt", i)))
					} else {
						files = append(files, pdfFile(fmt.Sprintf("p%d.pdf", i)))
					}
				}
				res, _ := s.AddDocuments(files)
				for _, d := range res.Added {
					everSeen = append(everSeen, d.ID)
				}
			case 2:
				if s.Len() > 0 {
					wasActive := s.ActiveID()
					victim := s.At(rng.Intn(s.Len())).ID
					before := s.Len()
					s.Remove(victim)
					if victim == wasActive && before > 1 {
						require.NotEqual(t, Identity(""), s.ActiveID())
						require.NotEqual(t, victim, s.ActiveID())
					}
				}
			case 3:
				if len(everSeen) > 0 {
					s.SetActive(everSeen[rng.Intn(len(everSeen))])
				}
			case 4:
				if len(everSeen) > 0 {
					id := everSeen[rng.Intn(len(everSeen))]
					present := s.Contains(id)
					require.Equal(t, present, s.RecordResult(id, Succeeded("t", 1)))
				}
			case 5:
				if rng.Intn(5) == 0 {
					s.Clear()
				}
			}
			checkInvariants(t, s)
		}
	}
}
