// Package artifacts writes the diagnostic JSON files operators inspect
// after a run: the bootstrap candidate dump, the market catalog snapshot,
// and one file per liquidation attempt.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Writer writes sidecar JSON files into the working directory.
type Writer struct {
	dir string
}

// NewWriter creates a Writer rooted at dir ("." for the working directory).
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "."
	}
	return &Writer{dir: dir}
}

// WriteCandidates writes dump.json with the top-K candidates selected at
// bootstrap.
func (w *Writer) WriteCandidates(candidates any) error {
	return w.writeJSON(filepath.Join(w.dir, "dump.json"), candidates)
}

// WriteMarkets writes dump-markets.json with the current market catalog.
func (w *Writer) WriteMarkets(markets any) error {
	return w.writeJSON(filepath.Join(w.dir, "dump-markets.json"), markets)
}

// WriteAttempt writes liquidations/<unix_millis>.json with one attempt's
// plan and outcome.
func (w *Writer) WriteAttempt(unixMillis int64, attempt any) error {
	dir := filepath.Join(w.dir, "liquidations")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating liquidations directory: %w", err)
	}
	return w.writeJSON(filepath.Join(dir, fmt.Sprintf("%d.json", unixMillis)), attempt)
}

func (w *Writer) writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
