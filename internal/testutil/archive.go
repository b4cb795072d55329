package testutil

import (
	"context"
	"sync"

	"github.com/roach88/neko/internal/domain"
)

// MemoryArchive keeps archive records in memory, first write wins.
type MemoryArchive struct {
	mu      sync.Mutex
	records []domain.ArchiveRecord
	byID    map[string]bool
	err     error
}

// NewMemoryArchive creates an empty archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{byID: make(map[string]bool)}
}

// FailWith makes later writes return err. A nil err clears it.
func (a *MemoryArchive) FailWith(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

// WriteRecord stores rec unless a record for the same event exists.
func (a *MemoryArchive) WriteRecord(_ context.Context, rec domain.ArchiveRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	if a.byID[rec.EventID] {
		return nil
	}
	a.byID[rec.EventID] = true
	a.records = append(a.records, rec)
	return nil
}

// Records returns a copy of the stored records in write order.
func (a *MemoryArchive) Records() []domain.ArchiveRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.ArchiveRecord(nil), a.records...)
}
