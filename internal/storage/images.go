package storage

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/bdougie/framematch/internal/models"
)

// Supported lossless output formats
const (
	FormatPNG  = "png"
	FormatBMP  = "bmp"
	FormatTIFF = "tiff"
)

var encoders = map[string]func(io.Writer, image.Image) error{
	FormatPNG: png.Encode,
	FormatBMP: bmp.Encode,
	FormatTIFF: func(w io.Writer, img image.Image) error {
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	},
}

// ValidFormat reports whether format can be written by ImageWriter
func ValidFormat(format string) bool {
	_, ok := encoders[format]
	return ok
}

// ImageWriter saves frames under outputDir/<kind>/<index>.<format>
type ImageWriter struct {
	outputDir string
	format    string
	encode    func(io.Writer, image.Image) error
}

// NewImageWriter creates the match and nomatch directories up front
func NewImageWriter(outputDir, format string) (*ImageWriter, error) {
	encode, ok := encoders[format]
	if !ok {
		return nil, fmt.Errorf("unsupported image format '%s'", format)
	}
	for _, kind := range []models.EventKind{models.KindMatch, models.KindNoMatch} {
		dir := filepath.Join(outputDir, string(kind))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory '%s': %w", dir, err)
		}
	}
	return &ImageWriter{outputDir: outputDir, format: format, encode: encode}, nil
}

// PathFor returns where the frame for an event of kind and index is written
func (w *ImageWriter) PathFor(kind models.EventKind, index int64) string {
	return filepath.Join(w.outputDir, string(kind), fmt.Sprintf("%d.%s", index, w.format))
}

// WriteFrame encodes frame to the path for kind and index and returns that path
func (w *ImageWriter) WriteFrame(kind models.EventKind, index int64, frame models.Frame) (string, error) {
	if err := frame.Validate(); err != nil {
		return "", err
	}
	path := w.PathFor(kind, index)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := w.encode(file, frame.Image()); err != nil {
		file.Close()
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
