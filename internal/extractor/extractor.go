// Package extractor decodes videos into raw frames through ffmpeg.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/bdougie/framematch/internal/models"
)

// FFmpeg is a running ffmpeg process writing bgr24 frames to its stdout
type FFmpeg struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	source *RawSource
	logger *slog.Logger
}

// Options configures the decoder process
type Options struct {
	Binary string // defaults to "ffmpeg"
	Width  int
	Height int
}

// Args returns the ffmpeg arguments used to decode videoURL
func (o Options) Args(videoURL string) []string {
	return []string{
		"-i", videoURL,
		"-loglevel", "quiet",
		"-an",
		"-f", "image2pipe",
		"-s", strconv.Itoa(o.Width) + "x" + strconv.Itoa(o.Height),
		"-pix_fmt", "bgr24",
		"-vcodec", "rawvideo",
		"-",
	}
}

// Start launches ffmpeg for videoURL. Cancelling ctx kills the process.
func Start(ctx context.Context, videoURL string, opts Options, logger *slog.Logger) (*FFmpeg, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", opts.Width, opts.Height)
	}
	binary := opts.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("ffmpeg binary '%s' not found: %w", binary, err)
	}

	cmd := exec.CommandContext(ctx, binary, opts.Args(videoURL)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	logger.Info("decoding video", "source", videoURL, "width", opts.Width, "height", opts.Height)

	return &FFmpeg{
		cmd:    cmd,
		stdout: stdout,
		source: NewRawSource(stdout, opts.Width, opts.Height),
		logger: logger,
	}, nil
}

// Next reads the next frame from ffmpeg's output
func (f *FFmpeg) Next(ctx context.Context) (models.Frame, error) {
	return f.source.Next(ctx)
}

// Close releases the pipe and waits for the process to exit. An abnormal
// exit is logged; by then the stream has already ended.
func (f *FFmpeg) Close() error {
	f.stdout.Close()
	err := f.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		f.logger.Warn("ffmpeg exited abnormally", "code", exitErr.ExitCode())
		return nil
	}
	return err
}
