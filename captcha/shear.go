package captcha

import (
	"image"
	"image/color"
	"math"
)

// Shear applies ShearX then ShearY. It is never part of Draw unless
// Options.Shear is set.
func Shear(im *image.RGBA, src Source, gap color.Color) {
	ShearX(im, src, gap)
	ShearY(im, src, gap)
}

// ShearX shifts each row horizontally along a sine wave. When gap is not nil
// the strip uncovered by the shift is painted with it.
func ShearX(im *image.RGBA, src Source, gap color.Color) {
	period := RandRange(src, 2, 10)
	phase := RandRange(src, 0, 2)
	const frames = 1

	b := im.Bounds()
	w := b.Dx()
	row := make([]byte, 4*w)
	for i := 0; i < b.Dy(); i++ {
		d := shearOffset(i, period, phase, frames)
		if d == 0 {
			continue
		}
		y := b.Min.Y + i
		start := im.PixOffset(b.Min.X, y)
		copy(row, im.Pix[start:start+4*w])
		for x := 0; x < w; x++ {
			nx := x + d
			if nx < 0 || nx >= w {
				continue
			}
			copy(im.Pix[start+4*nx:start+4*nx+4], row[4*x:4*x+4])
		}
		if gap != nil {
			lo, hi := 0, d
			if d < 0 {
				lo, hi = w+d, w
			}
			for x := max(lo, 0); x < min(hi, w); x++ {
				im.Set(b.Min.X+x, y, gap)
			}
		}
	}
}

// ShearY shifts each column vertically along a sine wave.
func ShearY(im *image.RGBA, src Source, gap color.Color) {
	period := RandRange(src, 10, 50)
	const frames = 20
	phase := RandRange(src, 0, frames)

	b := im.Bounds()
	h := b.Dy()
	col := make([]color.RGBA, h)
	for i := 0; i < b.Dx(); i++ {
		d := shearOffset(i, period, phase, frames)
		if d == 0 {
			continue
		}
		x := b.Min.X + i
		for y := 0; y < h; y++ {
			col[y] = im.RGBAAt(x, b.Min.Y+y)
		}
		for y := 0; y < h; y++ {
			ny := y + d
			if ny < 0 || ny >= h {
				continue
			}
			im.SetRGBA(x, b.Min.Y+ny, col[y])
		}
		if gap != nil {
			lo, hi := 0, d
			if d < 0 {
				lo, hi = h+d, h
			}
			for y := max(lo, 0); y < min(hi, h); y++ {
				im.Set(x, b.Min.Y+y, gap)
			}
		}
	}
}

// shearOffset is floor((period/2) * sin(i/period + 2*pi*phase/frames)).
func shearOffset(i, period, phase, frames int) int {
	amp := float64(period >> 1)
	return int(math.Floor(amp * math.Sin(float64(i)/float64(period)+2*math.Pi*float64(phase)/float64(frames))))
}
