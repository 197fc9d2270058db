package thumbnail

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFit(t *testing.T) {
	cases := []struct {
		w, h, wantW, wantH int
	}{
		{1920, 1080, 320, 180},
		{1080, 1920, 180, 320},
		{500, 500, 320, 320},
		{1000, 333, 320, 107}, // 106.56 rounds up
		{333, 1000, 107, 320},
		{100, 50, 320, 160},
		{5000, 1, 320, 1},
		{0, 10, 0, 0},
	}
	for _, c := range cases {
		w, h := Fit(c.w, c.h)
		assert.Equal(t, c.wantW, w, "%dx%d", c.w, c.h)
		assert.Equal(t, c.wantH, h, "%dx%d", c.w, c.h)
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestProcess_WritesJPEGAndRemovesSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "vid.png")
	writePNG(t, src, 640, 1136)
	dst := filepath.Join(dir, "thumbnails", "vid.jpg")

	require.NoError(t, Process(dir, "vid", dst))

	_, err := os.Stat(src)
	assert.True(t, os.IsNotExist(err))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 180, cfg.Width)
	assert.Equal(t, 320, cfg.Height)
}

func TestProcess_NoSource(t *testing.T) {
	err := Process(t.TempDir(), "vid", filepath.Join(t.TempDir(), "vid.jpg"))
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestProcess_CorruptSourceKept(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "vid.webp")
	require.NoError(t, os.WriteFile(src, []byte("not an image"), 0o644))

	require.Error(t, Process(dir, "vid", filepath.Join(dir, "out.jpg")))
	_, err := os.Stat(src)
	assert.NoError(t, err)
}
