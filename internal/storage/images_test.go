package storage

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/framematch/internal/models"
)

func gradientFrame(w, h int) models.Frame {
	f := models.NewFrame(w, h)
	for i := range f.Pix {
		f.Pix[i] = byte(i * 7)
	}
	return f
}

func TestImageWriterRoundTrip(t *testing.T) {
	frame := gradientFrame(6, 4)
	for _, format := range []string{FormatPNG, FormatBMP, FormatTIFF} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			w, err := NewImageWriter(dir, format)
			require.NoError(t, err)

			path, err := w.WriteFrame(models.KindMatch, 3, frame)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, "match", "3."+format), path)

			f, err := os.Open(path)
			require.NoError(t, err)
			defer f.Close()
			img, decoded, err := image.Decode(f)
			require.NoError(t, err)
			assert.Equal(t, format, decoded)
			assert.Equal(t, frame, models.FrameFromImage(img))
		})
	}
}

func TestImageWriterCreatesCategoryDirs(t *testing.T) {
	dir := t.TempDir()
	_, err := NewImageWriter(dir, FormatPNG)
	require.NoError(t, err)

	for _, sub := range []string{"match", "nomatch"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestImageWriterUnsupportedFormat(t *testing.T) {
	_, err := NewImageWriter(t.TempDir(), "jpeg")
	assert.Error(t, err)
	assert.False(t, ValidFormat("jpeg"))
	assert.True(t, ValidFormat(FormatTIFF))
}

func TestImageWriterReportsWriteFailure(t *testing.T) {
	dir := t.TempDir()
	w, err := NewImageWriter(dir, FormatPNG)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "nomatch")))

	_, err = w.WriteFrame(models.KindNoMatch, 0, gradientFrame(2, 2))
	assert.Error(t, err)
}

func TestImageWriterRejectsMalformedFrame(t *testing.T) {
	w, err := NewImageWriter(t.TempDir(), FormatPNG)
	require.NoError(t, err)

	_, err = w.WriteFrame(models.KindMatch, 0, models.Frame{Width: 2, Height: 2, Pix: make([]byte, 5)})
	assert.Error(t, err)
}
