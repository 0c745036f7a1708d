package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jask/pdfdesk/internal/database"
)

// ErrNotFound is returned when no cached extraction exists.
var ErrNotFound = errors.New("extraction not found")

// ExtractionRepo handles the extraction cache.
type ExtractionRepo struct {
	db *sql.DB
}

func NewExtractionRepo(db *sql.DB) *ExtractionRepo { return &ExtractionRepo{db: db} }

// Get returns the cached extraction for hash and records the hit.
func (r *ExtractionRepo) Get(ctx context.Context, hash string) (Extraction, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT sha256, filename, text, title, author, pages, characters, words, lines, hits, created_at, last_hit_at
	FROM extractions WHERE sha256 = ?`, hash)
	var e Extraction
	var lastHit sql.NullTime
	if err := row.Scan(&e.SHA256, &e.Filename, &e.Text, &e.Title, &e.Author, &e.Pages,
		&e.Characters, &e.Words, &e.Lines, &e.Hits, &e.CreatedAt, &lastHit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Extraction{}, ErrNotFound
		}
		return Extraction{}, err
	}
	if lastHit.Valid {
		t := lastHit.Time
		e.LastHitAt = &t
	}

	now := database.Now()
	if _, err := r.db.ExecContext(ctx, `UPDATE extractions SET hits = hits + 1, last_hit_at = ? WHERE sha256 = ?`, now, hash); err != nil {
		return Extraction{}, err
	}
	e.Hits++
	e.LastHitAt = &now
	return e, nil
}

// Put stores or replaces the extraction for e.SHA256.
func (r *ExtractionRepo) Put(ctx context.Context, e Extraction) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = database.Now()
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO extractions(sha256, filename, text, title, author, pages, characters, words, lines, hits, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	ON CONFLICT(sha256) DO UPDATE SET
		filename=excluded.filename,
		text=excluded.text,
		title=excluded.title,
		author=excluded.author,
		pages=excluded.pages,
		characters=excluded.characters,
		words=excluded.words,
		lines=excluded.lines;
	`, e.SHA256, e.Filename, e.Text, e.Title, e.Author, e.Pages, e.Characters, e.Words, e.Lines, e.CreatedAt)
	return err
}

// Purge deletes entries created before cutoff and reports how many went.
func (r *ExtractionRepo) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM extractions WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Count returns the number of cached extractions.
func (r *ExtractionRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM extractions`).Scan(&n)
	return n, err
}
