package captcha

import "image/color"

// Reference colors, matching the usual AWT constants.
var (
	White     = color.RGBA{255, 255, 255, 255}
	Cyan      = color.RGBA{0, 255, 255, 255}
	Gray      = color.RGBA{128, 128, 128, 255}
	LightGray = color.RGBA{192, 192, 192, 255}
	Magenta   = color.RGBA{255, 0, 255, 255}
	Orange    = color.RGBA{255, 200, 0, 255}
	Pink      = color.RGBA{255, 175, 175, 255}
	Yellow    = color.RGBA{255, 255, 0, 255}
)

// Palette lists the reference colors by name.
var Palette = map[string]color.RGBA{
	"white":     White,
	"cyan":      Cyan,
	"gray":      Gray,
	"lightgray": LightGray,
	"magenta":   Magenta,
	"orange":    Orange,
	"pink":      Pink,
	"yellow":    Yellow,
}

// Channel bounds for each drawing pass.
const (
	backgroundLow, backgroundHigh = 200, 250
	lineLow, lineHigh             = 160, 200
	glyphLow, glyphHigh           = 100, 160
)

// RandColor samples each channel independently from [start, end); both
// bounds are clamped to [0, 255].
func RandColor(src Source, start, end int) color.RGBA {
	start = min(max(start, 0), 255)
	end = min(max(end, 0), 255)
	return color.RGBA{
		R: uint8(RandRange(src, start, end)),
		G: uint8(RandRange(src, start, end)),
		B: uint8(RandRange(src, start, end)),
		A: 255,
	}
}

// randNoiseColor covers the full [0, 255] range per channel.
func randNoiseColor(src Source) color.RGBA {
	return color.RGBA{
		R: uint8(src.IntN(256)),
		G: uint8(src.IntN(256)),
		B: uint8(src.IntN(256)),
		A: 255,
	}
}
