// Package reference loads the example images a video is matched against.
package reference

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bdougie/framematch/internal/histogram"
)

// Pattern is the file filter applied inside the examples directory
const Pattern = "*.png"

// ErrNoReferences means no usable reference image was found
var ErrNoReferences = errors.New("no reference images")

// Entry is one reference descriptor and the file it came from
type Entry struct {
	Name       string
	Descriptor histogram.Descriptor
}

// Set is the immutable, non-empty collection of reference descriptors
type Set struct {
	entries []Entry
}

// New builds a Set from already computed descriptors
func New(entries ...Entry) (*Set, error) {
	if len(entries) == 0 {
		return nil, ErrNoReferences
	}
	for _, e := range entries {
		if len(e.Descriptor) != histogram.Bins {
			return nil, fmt.Errorf("reference %q has %d bins, want %d", e.Name, len(e.Descriptor), histogram.Bins)
		}
	}
	return &Set{entries: append([]Entry(nil), entries...)}, nil
}

// Load decodes every png directly inside dir and extracts its descriptor.
// Unreadable files are skipped with a warning.
func Load(ctx context.Context, dir string, logger *slog.Logger) (*Set, error) {
	if info, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("examples directory '%s': %w", dir, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("examples path '%s' is not a directory", dir)
	}

	paths, err := filepath.Glob(filepath.Join(dir, Pattern))
	if err != nil {
		return nil, fmt.Errorf("glob references: %w", err)
	}

	var entries []Entry
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, err := loadImage(path)
		if err != nil {
			logger.Warn("skipping reference image", "path", path, "error", err)
			continue
		}
		entries = append(entries, Entry{Name: filepath.Base(path), Descriptor: d})
		logger.Debug("loaded reference image", "path", path)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w in '%s'", ErrNoReferences, dir)
	}

	logger.Info("reference set loaded", "dir", dir, "count", len(entries))
	return &Set{entries: entries}, nil
}

// LoadFile extracts the descriptor of a single image file
func LoadFile(path string) (Entry, error) {
	d, err := loadImage(path)
	if err != nil {
		return Entry{}, fmt.Errorf("load '%s': %w", path, err)
	}
	return Entry{Name: filepath.Base(path), Descriptor: d}, nil
}

func loadImage(path string) (histogram.Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return histogram.FromImage(img), nil
}

// Len returns the number of references
func (s *Set) Len() int { return len(s.entries) }

// Entries returns a copy of the references in load order
func (s *Set) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

// Descriptor returns the i-th reference descriptor
func (s *Set) Descriptor(i int) histogram.Descriptor { return s.entries[i].Descriptor }

// Names returns the reference file names in load order
func (s *Set) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.Name
	}
	return names
}
