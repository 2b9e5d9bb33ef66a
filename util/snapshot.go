package util

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

const (
	snapshotMargin   = 10
	snapshotFontSize = 14
)

var (
	monoFont     *sfnt.Font
	monoFontErr  error
	monoFontOnce sync.Once
)

// newSnapshotFace returns a fresh face per call; faces keep internal caches
// and must not be shared between goroutines.
func newSnapshotFace() (font.Face, error) {
	monoFontOnce.Do(func() {
		monoFont, monoFontErr = opentype.Parse(gomono.TTF)
	})
	if monoFontErr != nil {
		return nil, fmt.Errorf("parsing snapshot font: %w", monoFontErr)
	}
	return opentype.NewFace(monoFont, &opentype.FaceOptions{
		Size:    snapshotFontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// RenderReportPNG draws a text report, black on white, one report line per
// image line.
func RenderReportPNG(report string) ([]byte, error) {
	face, err := newSnapshotFace()
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := face.Close(); closeErr != nil {
			Logger.Warn().Msgf("Error closing snapshot font face: %v", closeErr)
		}
	}()

	lines := strings.Split(strings.TrimRight(report, "\n"), "\n")
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()

	d := &font.Drawer{Face: face}
	width := 0
	for _, line := range lines {
		if w := d.MeasureString(line).Ceil(); w > width {
			width = w
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, width+2*snapshotMargin, len(lines)*lineHeight+2*snapshotMargin))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	d.Dst = img
	d.Src = image.NewUniform(color.Black)
	for i, line := range lines {
		d.Dot = fixed.Point26_6{
			X: fixed.I(snapshotMargin),
			Y: fixed.I(snapshotMargin+i*lineHeight) + metrics.Ascent,
		}
		d.DrawString(line)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return buf.Bytes(), nil
}
