package results

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/GoSim-25-26J-441/egosim/pkg/models"
	"github.com/GoSim-25-26J-441/egosim/pkg/utils"
)

const maxNameAttempts = 1000

// Writer accepts finished result bundles
type Writer interface {
	Write(ctx context.Context, b *models.ResultBundle) error
}

// FileWriter writes every bundle to its own file named
// <model>_results_<n>.<format> inside dir. n is derived from the wall clock
// and bumped until an unused name is found.
type FileWriter struct {
	dir     string
	format  string
	archive *Archive

	mu    sync.Mutex
	paths []string
}

// NewFileWriter creates a writer for dir. The directory is created on first write.
func NewFileWriter(dir, format string) (*FileWriter, error) {
	if _, err := handleFor(format); err != nil {
		return nil, err
	}
	return &FileWriter{dir: dir, format: format}, nil
}

// SetArchive mirrors every written bundle into a, keyed by file stem
func (w *FileWriter) SetArchive(a *Archive) {
	w.archive = a
}

// Write encodes b and stores it under a fresh file name
func (w *FileWriter) Write(ctx context.Context, b *models.ResultBundle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(w.format, b)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create results dir %s: %w", w.dir, err)
	}

	path, err := w.create(b.Model, data)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.paths = append(w.paths, path)
	w.mu.Unlock()

	if w.archive != nil {
		stem := filepath.Base(path)
		stem = stem[:len(stem)-len(filepath.Ext(stem))]
		if err := w.archive.Put(b.Name, stem, b); err != nil {
			return err
		}
	}
	return nil
}

func (w *FileWriter) create(model string, data []byte) (string, error) {
	n := utils.TimestampSuffix()
	ext := Extension(w.format)
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		path := filepath.Join(w.dir, fmt.Sprintf("%s_results_%d%s", model, n, ext))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			n++
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create result file %s: %w", path, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write result file %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close result file %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free result file name for model %s in %s", model, w.dir)
}

// Paths returns the files written so far
func (w *FileWriter) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.paths))
	copy(out, w.paths)
	return out
}

// Multi fans a bundle out to every writer in order, stopping at the first error
type Multi []Writer

// Write implements Writer
func (m Multi) Write(ctx context.Context, b *models.ResultBundle) error {
	for _, w := range m {
		if err := w.Write(ctx, b); err != nil {
			return err
		}
	}
	return nil
}
