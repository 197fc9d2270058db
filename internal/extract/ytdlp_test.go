package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInfo_LastObjectWins(t *testing.T) {
	stdout := `[youtube] Extracting URL
{"id":"first","title":"a"}
{"id":"dQw4","title":"Never","ext":"mp4","width":1920,"height":1080,"vcodec":"avc1.640028","extractor_key":"Youtube","description":"line"}
`
	info, err := parseInfo(stdout)
	require.NoError(t, err)
	assert.Equal(t, "dQw4", info.ID)
	assert.Equal(t, float64(1080), info.Height)
	assert.Equal(t, "Youtube", info.ExtractorKey)
}

func TestParseInfo_Errors(t *testing.T) {
	_, err := parseInfo("")
	require.Error(t, err)
	_, err = parseInfo("{broken")
	require.Error(t, err)
	_, err = parseInfo(`{"title":"no id"}`)
	require.Error(t, err)
}

func TestToolError_UsesLastErrorLine(t *testing.T) {
	exit := errors.New("exit status 1")
	stderr := "WARNING: something\nERROR: [instagram] abc: login required\nERROR: [instagram] abc: Requested content is not available, rate-limit reached or login required\n"

	err := toolError(stderr, exit)
	assert.Equal(t, "[instagram] abc: Requested content is not available, rate-limit reached or login required", err.Error())
	assert.Equal(t, exit, toolError("WARNING: only warnings", exit))
}

func TestOptionsFor(t *testing.T) {
	o := optionsFor("audio", "/s/videos/%(id)s.%(ext)s", "/cookies/x.txt")
	assert.Equal(t, "bestaudio/best", o.Format)
	assert.True(t, o.ExtractAudio)
	assert.Empty(t, o.MergeOutputFormat)
	assert.Empty(t, o.RemuxVideo)
	assert.Equal(t, "/cookies/x.txt", o.CookieFile)

	for _, q := range []string{"best", "1080", "720", "anything"} {
		o := optionsFor(q, "t", "")
		assert.Equal(t, "bestvideo+bestaudio/best", o.Format, q)
		assert.Equal(t, "mp4", o.MergeOutputFormat, q)
		assert.Equal(t, "mp4", o.RemuxVideo, q)
	}
}

// TestHelperProcess stands in for ffmpeg when GO_WANT_HELPER_PROCESS is set.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	if os.Getenv("HELPER_FAIL") == "1" {
		fmt.Fprint(os.Stderr, "Invalid data found when processing input")
		os.Exit(1)
	}
	out := args[len(args)-1]
	if err := os.WriteFile(out, []byte("transcoded"), 0o644); err != nil {
		os.Exit(2)
	}
	os.Exit(0)
}

func fakeExec(fail bool, got *[]string) func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		*got = append([]string{name}, args...)
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		if fail {
			cmd.Env = append(cmd.Env, "HELPER_FAIL=1")
		}
		return cmd
	}
}

func TestFFmpeg_TranscodeReplacesFile(t *testing.T) {
	orig := execCommand
	defer func() { execCommand = orig }()
	var got []string
	execCommand = fakeExec(false, &got)

	path := filepath.Join(t.TempDir(), "v.mp4")
	require.NoError(t, os.WriteFile(path, []byte("raw"), 0o644))

	require.NoError(t, (&FFmpeg{Path: "/usr/bin/ffmpeg"}).Transcode(context.Background(), path, path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "transcoded", string(b))
	assert.Equal(t, "/usr/bin/ffmpeg", got[0])
	joined := strings.Join(got, " ")
	for _, want := range []string{"-c:v libx264", "-profile:v main", "-level 4.0", "-pix_fmt yuv420p",
		"scale=trunc(iw/2)*2:trunc(ih/2)*2", "-c:a aac", "-movflags +faststart"} {
		assert.Contains(t, joined, want)
	}
	_, err = os.Stat(strings.TrimSuffix(path, ".mp4") + ".transcode.mp4")
	assert.True(t, os.IsNotExist(err))
}

func TestFFmpeg_TranscodeToNewContainer(t *testing.T) {
	orig := execCommand
	defer func() { execCommand = orig }()
	var got []string
	execCommand = fakeExec(false, &got)

	dir := t.TempDir()
	in, out := filepath.Join(dir, "v.webm"), filepath.Join(dir, "v.mp4")
	require.NoError(t, os.WriteFile(in, []byte("raw"), 0o644))

	require.NoError(t, (&FFmpeg{}).Transcode(context.Background(), in, out))

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "transcoded", string(b))
	assert.Contains(t, got, in)
	_, err = os.Stat(in)
	assert.True(t, os.IsNotExist(err))
}

func TestFFmpeg_FailureKeepsOriginal(t *testing.T) {
	orig := execCommand
	defer func() { execCommand = orig }()
	var got []string
	execCommand = fakeExec(true, &got)

	path := filepath.Join(t.TempDir(), "v.mp4")
	require.NoError(t, os.WriteFile(path, []byte("raw"), 0o644))

	err := (&FFmpeg{}).Transcode(context.Background(), path, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid data found")
	assert.Equal(t, "ffmpeg", got[0])

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))
}
