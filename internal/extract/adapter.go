// Package extract drives the external extraction tool for one request and
// normalizes what it produced into a Result: a playable file in the storage
// layout, a preview thumbnail and descriptive metadata.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/common"
	"github.com/dmitrijs2005/vidkeeper/internal/filex"
	"github.com/dmitrijs2005/vidkeeper/internal/logging"
	"github.com/dmitrijs2005/vidkeeper/internal/thumbnail"
)

const codecH264 = "h264"

// Result describes a successfully extracted artifact.
type Result struct {
	ID              string
	Title           string
	ResolvedQuality string
	FilePath        string
	FileSize        int64
	Format          string
	Codec           string
	Platform        string
	ThumbnailPath   string
	Description     string
	Width           int
	Height          int
}

// Config wires an Adapter.
type Config struct {
	Layout           filex.Layout
	Cookies          Cookies
	Runner           Runner
	Transcoder       Transcoder
	ExtractTimeout   time.Duration
	TranscodeTimeout time.Duration
	Logger           logging.Logger
}

// Adapter turns (url, quality) into a Result.
type Adapter struct {
	cfg    Config
	logger logging.Logger
}

func NewAdapter(cfg Config) *Adapter {
	return &Adapter{cfg: cfg, logger: cfg.Logger.With("module", "extract")}
}

// Extract runs the tool and post-processes its output. Failures are returned
// as *Error.
func (a *Adapter) Extract(ctx context.Context, url, quality string) (*Result, error) {
	audio := quality == common.QualityAudio
	template := filepath.Join(a.cfg.Layout.VideosDir(), "%(id)s.%(ext)s")
	cookieFile := a.cfg.Cookies.FileFor(url)
	if cookieFile != "" {
		a.logger.Debug(ctx, "using cookie bundle", "file", cookieFile)
	}

	runCtx, cancel := withTimeout(ctx, a.cfg.ExtractTimeout)
	info, err := a.cfg.Runner.Run(runCtx, url, optionsFor(quality, template, cookieFile))
	cancel()
	if err != nil {
		return nil, classify(err, url, a.cfg.Cookies)
	}

	raw, err := a.locate(info, audio)
	if err != nil {
		return nil, err
	}
	res := &Result{
		ID:          info.ID,
		Title:       info.Title,
		FilePath:    raw,
		Format:      strings.TrimPrefix(filepath.Ext(raw), "."),
		Platform:    info.ExtractorKey,
		Description: info.Description,
	}
	if res.Platform == "" {
		res.Platform = "Unknown"
	}
	if res.Title == "" {
		res.Title = info.ID
	}

	if !audio {
		res.Width, res.Height = int(info.Width), int(info.Height)
		if res.Height > 0 {
			res.ResolvedQuality = fmt.Sprintf("%dx%d (%dp)", res.Width, res.Height, res.Height)
		}
		res.Codec = info.VCodec
		target := a.cfg.Layout.VideoPath(info.ID, containerVideo)
		if a.transcode(ctx, raw, target) {
			res.FilePath, res.Format, res.Codec = target, containerVideo, codecH264
		}
		res.ThumbnailPath = a.thumbnail(ctx, res.ID)
	} else {
		a.discardCover(res.ID)
	}

	res.FileSize = filex.Size(res.FilePath)
	return res, nil
}

// locate finds the file the tool wrote: the requested container first, then
// the extension the tool reported when it could not convert.
func (a *Adapter) locate(info *Info, audio bool) (string, error) {
	want := containerVideo
	if audio {
		want = containerAudio
	}
	path := a.cfg.Layout.VideoPath(info.ID, want)
	_, err := os.Stat(path)
	if err == nil {
		return path, nil
	}
	if ext := strings.TrimPrefix(info.Ext, "."); ext != "" && ext != want {
		alt := a.cfg.Layout.VideoPath(info.ID, ext)
		if _, altErr := os.Stat(alt); altErr == nil {
			return alt, nil
		}
	}
	return "", &Error{Reason: fmt.Sprintf("extraction produced no %s file", want), Err: err}
}

// transcode reports whether out now holds the normalized encoding. A failure
// keeps the raw download at in.
func (a *Adapter) transcode(ctx context.Context, in, out string) bool {
	if a.cfg.Transcoder == nil {
		return false
	}
	tctx, cancel := withTimeout(ctx, a.cfg.TranscodeTimeout)
	defer cancel()
	if err := a.cfg.Transcoder.Transcode(tctx, in, out); err != nil {
		a.logger.Warn(ctx, "transcode failed, keeping original", "path", in, "error", err)
		return false
	}
	return true
}

func (a *Adapter) thumbnail(ctx context.Context, id string) string {
	dst := a.cfg.Layout.ThumbnailPath(id)
	err := thumbnail.Process(a.cfg.Layout.VideosDir(), id, dst)
	if errors.Is(err, thumbnail.ErrNoSource) {
		return ""
	}
	if err != nil {
		a.logger.Warn(ctx, "thumbnail failed", "artifact_id", id, "error", err)
		return ""
	}
	return dst
}

// discardCover drops the cover an audio extraction leaves behind; audio
// deliveries carry no preview.
func (a *Adapter) discardCover(id string) {
	if src, err := thumbnail.FindSource(a.cfg.Layout.VideosDir(), id); err == nil {
		_, _ = filex.Remove(src)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
