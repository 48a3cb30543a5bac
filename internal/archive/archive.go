// Package archive persists batch run summaries to long-term storage so a
// study's processing history survives beyond the local run database.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/me/megpipe/pkg/model"
)

// Sink writes a named object to an archive backend.
type Sink interface {
	Put(ctx context.Context, key string, body io.Reader) error
}

// SummaryKey returns the archive object key for a run summary.
func SummaryKey(runID string) string {
	return fmt.Sprintf("runs/%s.json", runID)
}

// WriteSummary marshals a run summary to JSON and stores it under the
// run's archive key.
func WriteSummary(ctx context.Context, sink Sink, runID string, summary model.RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := sink.Put(ctx, SummaryKey(runID), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("archive summary %s: %w", runID, err)
	}
	return nil
}

// DirSink archives objects as files under a local directory.
type DirSink struct {
	Dir    string
	Logger *slog.Logger
}

// NewDirSink creates a sink rooted at dir.
func NewDirSink(dir string, logger *slog.Logger) *DirSink {
	return &DirSink{Dir: dir, Logger: logger.With("component", "archive")}
}

// Put writes the object to <dir>/<key>, creating parent directories.
func (d *DirSink) Put(ctx context.Context, key string, body io.Reader) error {
	path := filepath.Join(d.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return fmt.Errorf("write archive file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close archive file: %w", err)
	}
	d.Logger.Debug("archived", "key", key, "path", path)
	return nil
}
