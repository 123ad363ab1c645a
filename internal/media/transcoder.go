package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Transcoder converts the media at src into the published format at dst
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string) error
}

// NewTranscoder returns an FFmpegTranscoder for ffmpegPath, or a
// CopyTranscoder when ffmpegPath is empty
func NewTranscoder(ffmpegPath string, logger *slog.Logger) Transcoder {
	if ffmpegPath == "" {
		return CopyTranscoder{}
	}
	return &FFmpegTranscoder{Path: ffmpegPath, logger: logger.With("component", "ffmpeg_transcoder")}
}

// FFmpegTranscoder re-encodes media to H.264/AAC MP4 with an ffmpeg binary
type FFmpegTranscoder struct {
	Path   string
	logger *slog.Logger
}

// maxOutputTail bounds how much ffmpeg output is kept for error reports
const maxOutputTail = 2048

// ffmpegArgs returns the arguments for one transcode run
func ffmpegArgs(src, dst string) []string {
	return []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", src,
		"-c:v", "libx264", "-preset", "veryfast",
		"-c:a", "aac",
		"-movflags", "+faststart",
		dst,
	}
}

// Transcode runs ffmpeg. The process is killed when ctx is cancelled.
func (t *FFmpegTranscoder) Transcode(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, t.Path, ffmpegArgs(src, dst)...)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if t.logger != nil {
		t.logger.DebugContext(ctx, "running ffmpeg", "src", src, "dst", dst)
	}

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &TranscodeError{Output: tail(output.String(), maxOutputTail), Err: err}
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// CopyTranscoder copies src to dst unchanged
type CopyTranscoder struct{}

// Transcode implements Transcoder
func (CopyTranscoder) Transcode(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
