package captcha

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"math"
	"os"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"go.uber.org/multierr"
	"golang.org/x/image/font"
)

const (
	DefaultQuality   = 100
	DefaultNoiseRate = 0.05
	DefaultLineCount = 20

	// fixed offset of each interference line's end from its start
	lineBiasX = 40
	lineBiasY = 20
)

// Options configures a Renderer. Start from DefaultOptions: a zero NoiseRate
// or LineCount turns that pass off.
type Options struct {
	FontPath  string  // TTF file; empty uses the bundled Go Bold Italic
	Quality   int     // JPEG quality 1..100
	NoiseRate float64 // fraction of the canvas overwritten with noise pixels
	LineCount int     // interference lines per image
	Shear     bool    // apply ShearX/ShearY after the noise pass
	Source    Source  // nil uses DefaultSource
}

// DefaultOptions returns the standard pipeline settings.
func DefaultOptions() Options {
	return Options{
		Quality:   DefaultQuality,
		NoiseRate: DefaultNoiseRate,
		LineCount: DefaultLineCount,
	}
}

// Renderer draws verification codes. It is immutable after NewRenderer and
// may be shared between goroutines as long as its Source is.
type Renderer struct {
	opts Options
	font *truetype.Font
	src  Source
}

// NewRenderer loads the font and normalizes opts.
func NewRenderer(opts Options) (*Renderer, error) {
	f, err := loadFont(opts.FontPath)
	if err != nil {
		return nil, err
	}
	if opts.Quality < 1 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	if opts.NoiseRate < 0 {
		opts.NoiseRate = 0
	}
	if opts.LineCount < 0 {
		opts.LineCount = 0
	}
	src := opts.Source
	if src == nil {
		src = DefaultSource
	}
	return &Renderer{opts: opts, font: f, src: src}, nil
}

// Source returns the random source the renderer draws from.
func (r *Renderer) Source() Source { return r.src }

// Draw runs the compositing pipeline on a fresh canvas.
func (r *Renderer) Draw(width, height int, code string) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrInvalidDimension, width, height)
	}
	im := image.NewRGBA(image.Rect(0, 0, width, height))
	dc := gg.NewContextForRGBA(im)

	// border
	dc.SetColor(Gray)
	dc.Clear()

	bg := RandColor(r.src, backgroundLow, backgroundHigh)
	if height > 4 {
		dc.SetColor(bg)
		dc.DrawRectangle(0, 2, float64(width), float64(height-4))
		dc.Fill()
	}

	r.drawLines(dc, width, height)
	r.drawCode(dc, width, height, code)
	r.drawNoise(dc, width, height)

	if r.opts.Shear {
		Shear(im, r.src, bg)
	}
	return im, nil
}

func (r *Renderer) drawLines(dc *gg.Context, width, height int) {
	if r.opts.LineCount == 0 {
		return
	}
	dc.SetColor(RandColor(r.src, lineLow, lineHigh))
	dc.SetLineWidth(1)
	for i := 0; i < r.opts.LineCount; i++ {
		x := RandRange(r.src, 0, width)
		y := RandRange(r.src, 0, height)
		xl := RandRange(r.src, 0, 6) + 1
		yl := RandRange(r.src, 0, 12) + 1
		dc.DrawLine(float64(x), float64(y), float64(x+xl+lineBiasX), float64(y+yl+lineBiasY))
	}
	dc.Stroke()
}

// fontSizeFor follows the height/2 sizing policy.
func fontSizeFor(height int) int {
	return height / 2
}

// glyphCenter is the anchor of the i-th of n characters.
func glyphCenter(i, n, width, height int) (float64, float64) {
	fontSize := fontSizeFor(height)
	return float64((width/n)*i) + float64(fontSize)/2, float64(height) / 2
}

func (r *Renderer) drawCode(dc *gg.Context, width, height int, code string) {
	chars := []rune(code)
	fontSize := fontSizeFor(height)
	if len(chars) == 0 || fontSize < 1 {
		return
	}
	face := newFace(r.font, float64(fontSize))
	defer face.Close()
	dc.SetFontFace(face)

	for i, ch := range chars {
		cx, cy := glyphCenter(i, len(chars), width, height)
		angle := math.Pi / 4 * r.src.Float64()
		if coinFlip(r.src) {
			angle = -angle
		}
		c := RandColor(r.src, glyphLow, glyphHigh)
		withTransform(dc, func() {
			dc.RotateAbout(angle, cx, cy)
			dc.SetColor(c)
			drawGlyphCentered(dc, face, string(ch), cx, cy)
		})
	}
}

// withTransform scopes matrix and color changes made by fn to fn.
func withTransform(dc *gg.Context, fn func()) {
	dc.Push()
	defer dc.Pop()
	fn()
}

// drawGlyphCentered puts the ink box of s on (cx, cy).
func drawGlyphCentered(dc *gg.Context, face font.Face, s string, cx, cy float64) {
	b, _ := font.BoundString(face, s)
	midX := float64(b.Min.X+b.Max.X) / 128
	midY := float64(b.Min.Y+b.Max.Y) / 128
	dc.DrawString(s, cx-midX, cy-midY)
}

func noiseCount(width, height int, rate float64) int {
	return int(math.Floor(rate * float64(width) * float64(height)))
}

func (r *Renderer) drawNoise(dc *gg.Context, width, height int) {
	area := noiseCount(width, height, r.opts.NoiseRate)
	for i := 0; i < area; i++ {
		x := r.src.IntN(width)
		y := r.src.IntN(height)
		dc.SetColor(randNoiseColor(r.src))
		dc.SetPixel(x, y)
	}
}

// Encode writes im as JPEG using the renderer's quality.
func (r *Renderer) Encode(w io.Writer, im image.Image) error {
	if err := jpeg.Encode(w, im, &jpeg.Options{Quality: r.opts.Quality}); err != nil {
		return &RenderIOError{Op: "encode", Err: err}
	}
	return nil
}

// RenderBytes draws code and returns the encoded JPEG.
func (r *Renderer) RenderBytes(width, height int, code string) ([]byte, error) {
	im, err := r.Draw(width, height, code)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := r.Encode(&buf, im); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Render draws code and writes the JPEG to w. Nothing is written unless the
// image was fully drawn and encoded.
func (r *Renderer) Render(w io.Writer, width, height int, code string) error {
	data, err := r.RenderBytes(width, height, code)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return &RenderIOError{Op: "write", Err: err}
	}
	return nil
}

// RenderFile writes the JPEG to path. The file is always closed and is
// removed again if any step fails.
func (r *Renderer) RenderFile(path string, width, height int, code string) (err error) {
	data, err := r.RenderBytes(width, height, code)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return &RenderIOError{Op: "create", Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = multierr.Append(err, &RenderIOError{Op: "close", Path: path, Err: cerr})
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	if _, werr := f.Write(data); werr != nil {
		return &RenderIOError{Op: "write", Path: path, Err: werr}
	}
	return nil
}
