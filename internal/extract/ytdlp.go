package extract

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lrstanley/go-ytdlp"
)

// Info is the subset of the tool's JSON metadata the adapter reads.
type Info struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Ext          string  `json:"ext"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	VCodec       string  `json:"vcodec"`
	ExtractorKey string  `json:"extractor_key"`
	Description  string  `json:"description"`
}

// Runner executes one extraction and returns the metadata of the result.
type Runner interface {
	Run(ctx context.Context, url string, opts Options) (*Info, error)
}

// YtDlp runs yt-dlp through go-ytdlp. An empty Executable resolves yt-dlp
// from PATH.
type YtDlp struct {
	Executable string
}

func (y *YtDlp) command(opts Options) *ytdlp.Command {
	cmd := ytdlp.New().
		NoPlaylist().
		NoProgress().
		DumpJSON().
		NoSimulate().
		Format(opts.Format).
		Output(opts.OutputTemplate)

	if y.Executable != "" {
		cmd.SetExecutable(y.Executable)
	}
	if opts.WriteThumbnail {
		cmd.WriteThumbnail()
	}
	if opts.CookieFile != "" {
		cmd.Cookies(opts.CookieFile)
	}
	if opts.ExtractAudio {
		cmd.ExtractAudio().AudioFormat(opts.AudioFormat).AudioQuality(opts.AudioQuality)
	}
	if opts.MergeOutputFormat != "" {
		cmd.MergeOutputFormat(opts.MergeOutputFormat)
	}
	if opts.RemuxVideo != "" {
		cmd.RemuxVideo(opts.RemuxVideo)
	}
	return cmd
}

// Run downloads url and parses the JSON metadata printed on stdout.
func (y *YtDlp) Run(ctx context.Context, url string, opts Options) (*Info, error) {
	res, err := y.command(opts).Run(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var stderr string
		if res != nil {
			stderr = res.Stderr
		}
		return nil, toolError(stderr, err)
	}
	return parseInfo(res.Stdout)
}

// toolError prefers the tool's own ERROR line over the exit status.
func toolError(stderr string, err error) error {
	var last string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "ERROR:") {
			last = strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	if last == "" {
		return err
	}
	return errors.New(last)
}

// parseInfo returns the last JSON object printed on stdout.
func parseInfo(stdout string) (*Info, error) {
	var info *Info
	sc := bufio.NewScanner(strings.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 32*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var i Info
		if err := json.Unmarshal([]byte(line), &i); err != nil {
			return nil, fmt.Errorf("parse tool metadata: %w", err)
		}
		info = &i
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tool metadata: %w", err)
	}
	if info == nil || info.ID == "" {
		return nil, errors.New("tool printed no metadata")
	}
	return info, nil
}
