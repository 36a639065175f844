package providers

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// fillGradient paints a vertical gradient from top to bottom across rect.
func fillGradient(img *image.RGBA, rect image.Rectangle, top, bottom color.RGBA) {
	height := rect.Dy()
	if height <= 1 {
		height = 2
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		ratio := float64(y-rect.Min.Y) / float64(height-1)
		c := color.RGBA{
			R: lerp(top.R, bottom.R, ratio),
			G: lerp(top.G, bottom.G, ratio),
			B: lerp(top.B, bottom.B, ratio),
			A: 255,
		}
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func lerp(a, b uint8, ratio float64) uint8 {
	return uint8(float64(a) + ratio*(float64(b)-float64(a)))
}

// fillEllipse paints a filled ellipse centered at (cx, cy).
func fillEllipse(img *image.RGBA, cx, cy, rx, ry int, c color.RGBA) {
	for y := cy - ry; y <= cy+ry; y++ {
		for x := cx - rx; x <= cx+rx; x++ {
			dx := float64(x-cx) / float64(rx)
			dy := float64(y-cy) / float64(ry)
			if dx*dx+dy*dy <= 1.0 {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

// fillRect paints a solid rectangle, alpha-blended over the existing
// pixels when c.A < 255.
func fillRect(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	src := image.NewUniform(c)
	draw.Draw(img, rect, src, image.Point{}, draw.Over)
}

// drawCenteredText renders text horizontally centered inside band using
// the fixed-size basicfont face.
func drawCenteredText(img *image.RGBA, band image.Rectangle, text string, c color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
	}
	width := d.MeasureString(text)
	x := fixed.I(band.Min.X+band.Dx()/2) - width/2
	y := fixed.I(band.Min.Y + band.Dy()/2 + face.Metrics().Ascent.Ceil()/2)
	d.Dot = fixed.Point26_6{X: x, Y: y}
	d.DrawString(text)
}

// truncate shortens s to at most n runes, appending an ellipsis.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
