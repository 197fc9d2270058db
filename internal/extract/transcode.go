package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Transcoder re-encodes in into a delivery-safe file at out. in and out may
// be the same path.
type Transcoder interface {
	Transcode(ctx context.Context, in, out string) error
}

// execCommand is a seam for tests.
var execCommand = exec.CommandContext

// FFmpeg re-encodes to H.264 main@4.0 yuv420p with AAC audio and the moov
// atom up front, so every player can stream it.
type FFmpeg struct {
	Path string
}

func ffmpegArgs(in, out string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", in,
		"-c:v", "libx264", "-profile:v", "main", "-level", "4.0",
		"-pix_fmt", "yuv420p",
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-c:a", "aac",
		"-movflags", "+faststart",
		out,
	}
}

// Transcode writes to a sibling temp file and moves it to out only on
// success. A raw input under another name is removed afterwards.
func (f *FFmpeg) Transcode(ctx context.Context, in, out string) error {
	bin := f.Path
	if bin == "" {
		bin = "ffmpeg"
	}
	tmp := strings.TrimSuffix(out, filepath.Ext(out)) + ".transcode.mp4"

	cmd := execCommand(ctx, bin, ffmpegArgs(in, tmp)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(tmp)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if err := os.Rename(tmp, out); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", out, err)
	}
	if in != out {
		_ = os.Remove(in)
	}
	return nil
}
