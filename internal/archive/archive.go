// Package archive writes one record per concluded giveaway outside the live
// store, for audit and history.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/neko/internal/domain"
)

// Format selects the on-disk layout of archive files.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name. Empty selects text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown archive format %q (want text or json)", s)
	}
}

// Writer is anything that accepts archive records.
type Writer interface {
	WriteRecord(ctx context.Context, rec domain.ArchiveRecord) error
}

// FileSink writes each record to <Dir>/<event id>.<ext>.
//
// Files are created exclusively: a second write for the same event leaves
// the first file untouched and returns nil.
type FileSink struct {
	Dir    string
	Format Format
}

// NewFileSink creates dir if needed and returns a sink writing into it.
func NewFileSink(dir string, format Format) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &FileSink{Dir: dir, Format: format}, nil
}

// Path returns the file a record for eventID is written to.
func (s *FileSink) Path(eventID string) string {
	ext := ".txt"
	if s.Format == FormatJSON {
		ext = ".json"
	}
	return filepath.Join(s.Dir, filepath.Base(eventID)+ext)
}

// WriteRecord implements Writer.
func (s *FileSink) WriteRecord(_ context.Context, rec domain.ArchiveRecord) error {
	var (
		data []byte
		err  error
	)
	switch s.Format {
	case FormatJSON:
		data, err = json.MarshalIndent(rec, "", "  ")
		data = append(data, '\n')
	default:
		data = []byte(FormatRecord(rec))
	}
	if err != nil {
		return fmt.Errorf("encode archive %s: %w", rec.EventID, err)
	}

	path := s.Path(rec.EventID)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create archive %s: %w", path, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write archive %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close archive %s: %w", path, err)
	}
	return nil
}

// FormatRecord renders the plain-text archive layout.
func FormatRecord(rec domain.ArchiveRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Giveaway ID: %s\n", rec.EventID)
	fmt.Fprintf(&b, "Title: %s\n", rec.Title)
	fmt.Fprintf(&b, "Channel ID: %s\n", rec.Location.Channel)
	fmt.Fprintf(&b, "End Time: %s\n", rec.EndTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Winner Count: %d\n", rec.WinnerCount)
	fmt.Fprintf(&b, "Image: %s\n", rec.Image)
	b.WriteString("Participants:\n")
	for _, p := range rec.Entrants {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	fmt.Fprintf(&b, "Winners: %s\n", strings.Join(rec.Winners, ", "))
	fmt.Fprintf(&b, "Concluded At: %s\n", rec.ConcludedAt.UTC().Format(time.RFC3339))
	return b.String()
}

// Multi writes every record to all writers, in order. A failing writer does
// not stop the others; the errors are joined.
type Multi []Writer

// WriteRecord implements Writer.
func (m Multi) WriteRecord(ctx context.Context, rec domain.ArchiveRecord) error {
	var errs []error
	for _, w := range m {
		if err := w.WriteRecord(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
