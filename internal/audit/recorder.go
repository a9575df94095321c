// Package audit persists one CSV row per processed incident to an
// append-only tabular log.
package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/stacksentry/stacksentry/api/schemas"
)

// Header is the fixed 11-column header of the audit store.
var Header = []string{
	"incident_id", "timestamp", "repo", "file", "line",
	"error_name", "error_message", "top_frame",
	"owners_top3", "commit_list", "slack_text",
}

// Recorder appends incident rows to a single shared CSV file, writing the
// header lazily on first append. Appends are serialized through a mutex so
// concurrent incidents never interleave partial rows.
type Recorder struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewRecorder returns a Recorder for the store at path. The file and its
// parent directory are created on first append, not here.
func NewRecorder(path string, logger *zap.Logger) *Recorder {
	return &Recorder{
		path:   path,
		logger: logger.Named("audit"),
	}
}

// Append writes exactly one RFC-4180 quoted row. The caller decides the
// failure policy; the pipeline logs and swallows any error returned here.
func (r *Recorder) Append(row schemas.AuditRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	needHeader, err := r.ensureStore()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("failed to write audit header: %w", err)
		}
	}
	if err := w.Write(row.Fields()); err != nil {
		return fmt.Errorf("failed to write audit row: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush audit row: %w", err)
	}

	r.logger.Debug("Appended audit row", zap.String("incident_id", row.IncidentID))
	return nil
}

// ensureStore reports whether the header still needs to be written and
// creates the parent directory when missing. An existing but empty file
// also gets the header; anything with content is assumed headed.
func (r *Recorder) ensureStore() (bool, error) {
	info, err := os.Stat(r.path)
	switch {
	case err == nil:
		return info.Size() == 0, nil
	case os.IsNotExist(err):
		if dir := filepath.Dir(r.path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return false, fmt.Errorf("failed to create audit store directory: %w", err)
			}
		}
		return true, nil
	default:
		return false, fmt.Errorf("failed to stat audit store: %w", err)
	}
}
