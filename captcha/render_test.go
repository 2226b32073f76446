package captcha

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/fogleman/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T, mutate func(*Options)) *Renderer {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	r, err := NewRenderer(opts)
	require.NoError(t, err)
	return r
}

type recordingWriter struct {
	bytes.Buffer
	writes int
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.Buffer.Write(p)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRenderProducesDecodableJPEG(t *testing.T) {
	r := newTestRenderer(t, nil)
	code, err := GenerateCode(6, "123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, 200, 80, code))
	require.NotZero(t, buf.Len())

	im, err := jpeg.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 80), im.Bounds())
}

func TestRenderAnySize(t *testing.T) {
	r := newTestRenderer(t, nil)
	sizes := [][2]int{{1, 1}, {3, 2}, {16, 5}, {120, 40}, {300, 100}}
	for _, s := range sizes {
		for _, code := range []string{"", "A", "3F8K2Z"} {
			t.Run(fmt.Sprintf("%dx%d %q", s[0], s[1], code), func(t *testing.T) {
				data, err := r.RenderBytes(s[0], s[1], code)
				require.NoError(t, err)
				require.NotEmpty(t, data)
				cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
				require.NoError(t, err)
				assert.Equal(t, s[0], cfg.Width)
				assert.Equal(t, s[1], cfg.Height)
			})
		}
	}
}

func TestRenderRejectsInvalidDimension(t *testing.T) {
	r := newTestRenderer(t, nil)
	tests := []struct{ w, h int }{{0, 80}, {200, 0}, {-1, 80}, {200, -5}, {0, 0}}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%dx%d", test.w, test.h), func(t *testing.T) {
			w := &recordingWriter{}
			err := r.Render(w, test.w, test.h, "AB")
			assert.ErrorIs(t, err, ErrInvalidDimension)
			assert.Zero(t, w.writes)

			path := filepath.Join(t.TempDir(), "out.jpg")
			err = r.RenderFile(path, test.w, test.h, "AB")
			assert.ErrorIs(t, err, ErrInvalidDimension)
			_, statErr := os.Stat(path)
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestRenderSurfacesWriteError(t *testing.T) {
	r := newTestRenderer(t, nil)
	err := r.Render(failingWriter{}, 100, 40, "XY")
	var ioErr *RenderIOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "write", ioErr.Op)
	assert.EqualError(t, ioErr.Unwrap(), "disk full")
}

func TestRenderFile(t *testing.T) {
	r := newTestRenderer(t, nil)
	path := filepath.Join(t.TempDir(), "code.jpg")
	require.NoError(t, r.RenderFile(path, 200, 80, "3F8K2Z"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	im, err := jpeg.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 200, im.Bounds().Dx())
	assert.Equal(t, 80, im.Bounds().Dy())
}

func TestRenderFileMissingDirectory(t *testing.T) {
	r := newTestRenderer(t, nil)
	path := filepath.Join(t.TempDir(), "missing", "code.jpg")
	err := r.RenderFile(path, 200, 80, "AB")
	var ioErr *RenderIOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "create", ioErr.Op)
	assert.Equal(t, path, ioErr.Path)
}

func TestNewRendererBadFontPath(t *testing.T) {
	_, err := NewRenderer(Options{FontPath: filepath.Join(t.TempDir(), "nope.ttf")})
	assert.Error(t, err)
}

func TestDrawIsReproducibleWithSeed(t *testing.T) {
	a := newTestRenderer(t, func(o *Options) { o.Source = NewSeededSource(42) })
	b := newTestRenderer(t, func(o *Options) { o.Source = NewSeededSource(42) })
	imA, err := a.Draw(120, 40, "Q7")
	require.NoError(t, err)
	imB, err := b.Draw(120, 40, "Q7")
	require.NoError(t, err)
	assert.Equal(t, imA.Pix, imB.Pix)
}

func TestDrawBorderAndBackground(t *testing.T) {
	r := newTestRenderer(t, func(o *Options) {
		o.LineCount = 0
		o.NoiseRate = 0
	})
	im, err := r.Draw(50, 20, "")
	require.NoError(t, err)
	for x := 0; x < 50; x++ {
		for _, y := range []int{0, 1, 18, 19} {
			assert.Equal(t, Gray, im.RGBAAt(x, y), "border at %d,%d", x, y)
		}
	}
	bg := im.RGBAAt(25, 10)
	for _, ch := range []uint8{bg.R, bg.G, bg.B} {
		assert.GreaterOrEqual(t, ch, uint8(200))
		assert.Less(t, ch, uint8(250))
	}
	for y := 2; y < 18; y++ {
		assert.Equal(t, bg, im.RGBAAt(3, y))
	}
}

// inkCenter returns the bounding-box center of dark pixels in cols [x0, x1).
func inkCenter(im *image.RGBA, x0, x1 int) (float64, float64, bool) {
	b := im.Bounds()
	minX, minY, maxX, maxY := math.MaxInt, math.MaxInt, -1, -1
	for y := b.Min.Y + 2; y < b.Max.Y-2; y++ {
		for x := x0; x < x1; x++ {
			c := im.RGBAAt(x, y)
			if c.R >= 180 || c.G >= 180 || c.B >= 180 {
				continue
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < 0 {
		return 0, 0, false
	}
	return float64(minX+maxX+1) / 2, float64(minY+maxY+1) / 2, true
}

func TestGlyphRotationIsLocal(t *testing.T) {
	const width, height = 200, 80
	for seed := uint64(1); seed <= 12; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			r := newTestRenderer(t, func(o *Options) {
				o.LineCount = 0
				o.NoiseRate = 0
				o.Source = NewSeededSource(seed)
			})
			im, err := r.Draw(width, height, "AB")
			require.NoError(t, err)

			for i, span := range [][2]int{{0, 70}, {70, width}} {
				wantX, wantY := glyphCenter(i, 2, width, height)
				gotX, gotY, ok := inkCenter(im, span[0], span[1])
				require.True(t, ok, "glyph %d not drawn", i)
				assert.InDelta(t, wantX, gotX, 10, "glyph %d x", i)
				assert.InDelta(t, wantY, gotY, 10, "glyph %d y", i)
			}
		})
	}
}

// blendOf reports whether c lies channel-wise between a and b, allowing for
// rounding in the rasterizer.
func blendOf(c, a, b color.RGBA) bool {
	within := func(v, x, y uint8) bool {
		lo, hi := int(min(x, y))-1, int(max(x, y))+1
		return int(v) >= lo && int(v) <= hi
	}
	return within(c.R, a.R, b.R) && within(c.G, a.G, b.G) && within(c.B, a.B, b.B)
}

func channelsIn(t *testing.T, c color.RGBA, lo, hi uint8) {
	t.Helper()
	for _, ch := range []uint8{c.R, c.G, c.B} {
		assert.GreaterOrEqual(t, ch, lo)
		assert.Less(t, ch, hi)
	}
}

func maxChannelDiff(a, b color.RGBA) int {
	d := func(x, y uint8) int { return max(int(x), int(y)) - min(int(x), int(y)) }
	return max(d(a.R, b.R), d(a.G, b.G), d(a.B, b.B))
}

func TestInterferenceLines(t *testing.T) {
	const width, height = 200, 120
	for _, lines := range []int{1, 3} {
		for seed := uint64(1); seed <= 6; seed++ {
			t.Run(fmt.Sprintf("%d lines seed %d", lines, seed), func(t *testing.T) {
				r := newTestRenderer(t, func(o *Options) {
					o.LineCount = lines
					o.NoiseRate = 0
					o.Source = NewSeededSource(seed)
				})
				im, err := r.Draw(width, height, "")
				require.NoError(t, err)

				replay := NewSeededSource(seed)
				bg := RandColor(replay, backgroundLow, backgroundHigh)
				lc := RandColor(replay, lineLow, lineHigh)
				channelsIn(t, lc, 160, 200)

				type segment struct{ x, y, ex, ey int }
				segs := make([]segment, lines)
				for i := range segs {
					x := RandRange(replay, 0, width)
					y := RandRange(replay, 0, height)
					xl := RandRange(replay, 0, 6) + 1
					yl := RandRange(replay, 0, 12) + 1
					require.True(t, xl >= 1 && xl <= 6)
					require.True(t, yl >= 1 && yl <= 12)
					segs[i] = segment{x, y, x + xl + 40, y + yl + 20}
				}

				base := func(y int) color.RGBA {
					if y >= 2 && y < height-2 {
						return bg
					}
					return Gray
				}
				changed := func(x, y int) bool { return im.RGBAAt(x, y) != base(y) }

				n := 0
				for y := 0; y < height; y++ {
					for x := 0; x < width; x++ {
						if !changed(x, y) {
							continue
						}
						n++
						c := im.RGBAAt(x, y)
						assert.True(t, blendOf(c, base(y), lc), "pixel %d,%d = %v is not line color %v over %v", x, y, c, lc, base(y))
						inside := false
						for _, sg := range segs {
							if image.Pt(x, y).In(image.Rect(sg.x-1, sg.y-1, sg.ex+2, sg.ey+2)) {
								inside = true
								break
							}
						}
						assert.True(t, inside, "pixel %d,%d outside every line box", x, y)
					}
				}
				assert.NotZero(t, n)

				if maxChannelDiff(bg, lc) < 16 {
					return
				}
				for _, sg := range segs {
					if sg.ex >= width || sg.ey-1 < 2 || sg.ey >= height-2 {
						continue
					}
					reached := changed(sg.ex-1, sg.ey-1) || changed(sg.ex, sg.ey-1) ||
						changed(sg.ex-1, sg.ey) || changed(sg.ex, sg.ey)
					assert.True(t, reached, "line from %d,%d does not reach %d,%d", sg.x, sg.y, sg.ex, sg.ey)
				}
			})
		}
	}
}

func TestGlyphColors(t *testing.T) {
	const width, height = 200, 80
	for seed := uint64(1); seed <= 6; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			r := newTestRenderer(t, func(o *Options) {
				o.LineCount = 0
				o.NoiseRate = 0
				o.Source = NewSeededSource(seed)
			})
			im, err := r.Draw(width, height, "MW")
			require.NoError(t, err)

			replay := NewSeededSource(seed)
			bg := RandColor(replay, backgroundLow, backgroundHigh)
			glyphs := make([]color.RGBA, 2)
			for i := range glyphs {
				replay.Float64()
				coinFlip(replay)
				glyphs[i] = RandColor(replay, glyphLow, glyphHigh)
				channelsIn(t, glyphs[i], 100, 160)
			}

			for i, span := range [][2]int{{0, 70}, {70, width}} {
				solid := 0
				for y := 2; y < height-2; y++ {
					for x := span[0]; x < span[1]; x++ {
						c := im.RGBAAt(x, y)
						if c == glyphs[i] {
							solid++
						}
						assert.True(t, blendOf(c, bg, glyphs[i]), "glyph %d pixel %d,%d = %v", i, x, y, c)
					}
				}
				assert.NotZero(t, solid, "glyph %d has no fully inked pixel", i)
			}
		})
	}
}

func TestGlyphCenterSpacing(t *testing.T) {
	x, y := glyphCenter(0, 2, 200, 80)
	assert.Equal(t, 20.0, x)
	assert.Equal(t, 40.0, y)
	x, _ = glyphCenter(1, 2, 200, 80)
	assert.Equal(t, 120.0, x)
	x, _ = glyphCenter(3, 6, 200, 80)
	assert.Equal(t, 119.0, x)
}

func TestWithTransformRestoresMatrix(t *testing.T) {
	dc := gg.NewContext(10, 10)
	withTransform(dc, func() {
		dc.RotateAbout(math.Pi/4, 5, 5)
		x, y := dc.TransformPoint(0, 0)
		assert.False(t, x == 0 && y == 0)
	})
	x, y := dc.TransformPoint(3, 4)
	assert.Equal(t, 3.0, x)
	assert.Equal(t, 4.0, y)
}

func TestNoiseCount(t *testing.T) {
	assert.Equal(t, 800, noiseCount(200, 80, 0.05))
	assert.Equal(t, 0, noiseCount(10, 1, 0.05))
	assert.Equal(t, 0, noiseCount(200, 80, 0))
}

func diffCount(a, b *image.RGBA) int {
	n := 0
	for i := 0; i < len(a.Pix); i += 4 {
		if !bytes.Equal(a.Pix[i:i+4], b.Pix[i:i+4]) {
			n++
		}
	}
	return n
}

func noiseDiff(t *testing.T, seed uint64, width, height int) int {
	t.Helper()
	clean := newTestRenderer(t, func(o *Options) {
		o.NoiseRate = 0
		o.Source = NewSeededSource(seed)
	})
	noisy := newTestRenderer(t, func(o *Options) { o.Source = NewSeededSource(seed) })
	a, err := clean.Draw(width, height, "K2")
	require.NoError(t, err)
	b, err := noisy.Draw(width, height, "K2")
	require.NoError(t, err)
	n := diffCount(a, b)
	require.LessOrEqual(t, n, noiseCount(width, height, DefaultNoiseRate))
	return n
}

func TestNoiseScalesWithArea(t *testing.T) {
	small, large := 0, 0
	for seed := uint64(1); seed <= 5; seed++ {
		small += noiseDiff(t, seed, 100, 50)
		large += noiseDiff(t, seed, 200, 50)
	}
	ratio := float64(large) / float64(small)
	assert.InDelta(t, 2.0, ratio, 0.2)
}

func TestDrawWithShearKeepsSize(t *testing.T) {
	r := newTestRenderer(t, func(o *Options) { o.Shear = true })
	im, err := r.Draw(160, 60, "WAVE")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 160, 60), im.Bounds())
}

func TestRenderConcurrent(t *testing.T) {
	r := newTestRenderer(t, nil)
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := r.RenderBytes(120, 40, "ABCD")
			errs <- err
		}()
	}
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestPaletteGrayIsBorder(t *testing.T) {
	assert.Equal(t, color.RGBA{128, 128, 128, 255}, Palette["gray"])
}
