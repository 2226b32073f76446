package captcha

import (
	"fmt"
	"os"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobolditalic"
)

var (
	defaultFontOnce sync.Once
	defaultFont     *truetype.Font
	defaultFontErr  error
)

// loadFont parses the TTF at path, or the bundled Go Bold Italic face when
// path is empty. Parsed fonts are read-only and shared between renders.
func loadFont(path string) (*truetype.Font, error) {
	if path == "" {
		defaultFontOnce.Do(func() {
			defaultFont, defaultFontErr = truetype.Parse(gobolditalic.TTF)
		})
		return defaultFont, defaultFontErr
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}
	f, err := freetype.ParseFont(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	return f, nil
}

// newFace builds a per-render face; faces cache glyphs and are not safe to share.
func newFace(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		Hinting: font.HintingNone,
	})
}
