package repository

import "time"

// Extraction is a cached extraction result keyed by content hash.
type Extraction struct {
	SHA256     string
	Filename   string
	Text       string
	Title      string
	Author     string
	Pages      int
	Characters int
	Words      int
	Lines      int
	Hits       int
	CreatedAt  time.Time
	LastHitAt  *time.Time
}
