// Package thumbnail turns the cover image written next to a video into a
// small JPEG preview for the delivery channel.
package thumbnail

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MaxEdge is the length of the longest side of a preview.
	MaxEdge = 320
	Quality = 85
)

// sourceExts are the cover extensions the extractor may write, in lookup order.
var sourceExts = []string{".jpg", ".jpeg", ".png", ".webp"}

// ErrNoSource means the extractor wrote no cover for the artifact.
var ErrNoSource = errors.New("no thumbnail source")

// FindSource returns the cover written as <dir>/<id>.<ext>.
func FindSource(dir, id string) (string, error) {
	for _, ext := range sourceExts {
		p := filepath.Join(dir, id+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", ErrNoSource
}

// Fit scales w x h so that the longest edge becomes MaxEdge. The other edge
// keeps the aspect ratio, rounded to the nearest pixel and at least 1.
func Fit(w, h int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if w >= h {
		return MaxEdge, max(1, int(math.Round(float64(h)*MaxEdge/float64(w))))
	}
	return max(1, int(math.Round(float64(w)*MaxEdge/float64(h)))), MaxEdge
}

// Convert resizes src into a JPEG at dst and deletes src on success.
func Convert(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	img, _, err := image.Decode(in)
	in.Close()
	if err != nil {
		return fmt.Errorf("decode %s: %w", src, err)
	}

	b := img.Bounds()
	w, h := Fit(b.Dx(), b.Dy())
	if w == 0 {
		return fmt.Errorf("decode %s: empty image", src)
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(out, out.Bounds(), img, b, draw.Src, nil)

	if err := os.MkdirAll(filepath.Dir(dst), 0o770); err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, out, &jpeg.Options{Quality: Quality}); err != nil {
		f.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("encode %s: %w", dst, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// Process finds the cover for id in dir and writes the preview to dst.
func Process(dir, id, dst string) error {
	src, err := FindSource(dir, id)
	if err != nil {
		return err
	}
	return Convert(src, dst)
}
