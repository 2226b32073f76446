package captcha

import (
	"encoding/base64"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/mojocn/base64Captcha"
)

// DataURI wraps JPEG bytes for direct use in an <img> tag.
func DataURI(data []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
}

// Driver plugs the renderer into base64Captcha so it can be paired with any
// base64Captcha.Store.
type Driver struct {
	Renderer *Renderer
	Width    int
	Height   int
	Length   int
	Alphabet string

	mu      sync.Mutex
	pending error // set by GenerateIdQuestionAnswer, reported by DrawCaptcha
}

var _ base64Captcha.Driver = (*Driver)(nil)

// NewDriver returns a Driver; a negative length is treated as 0.
func NewDriver(r *Renderer, width, height, length int, alphabet string) *Driver {
	if length < 0 {
		length = 0
	}
	return &Driver{Renderer: r, Width: width, Height: height, Length: length, Alphabet: alphabet}
}

// NewCode returns a fresh id and code.
func (d *Driver) NewCode() (id, code string, err error) {
	code, err = GenerateCodeFrom(d.Renderer.Source(), d.Length, d.Alphabet)
	if err != nil {
		return "", "", err
	}
	return uuid.NewString(), code, nil
}

// GenerateIdQuestionAnswer returns a fresh id with the code as both question
// and answer. base64Captcha has no error slot here, so a failure is held back
// and returned by the next DrawCaptcha.
func (d *Driver) GenerateIdQuestionAnswer() (id, q, a string) {
	id, code, err := d.NewCode()
	if err != nil {
		d.mu.Lock()
		d.pending = err
		d.mu.Unlock()
		return "", "", ""
	}
	return id, code, code
}

// DrawCaptcha renders content.
func (d *Driver) DrawCaptcha(content string) (base64Captcha.Item, error) {
	d.mu.Lock()
	err := d.pending
	d.pending = nil
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	data, err := d.Renderer.RenderBytes(d.Width, d.Height, content)
	if err != nil {
		return nil, err
	}
	return &ItemJPEG{data: data}, nil
}

// ItemJPEG is an encoded captcha image.
type ItemJPEG struct {
	data []byte
}

var _ base64Captcha.Item = (*ItemJPEG)(nil)

func (it *ItemJPEG) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(it.data)
	return int64(n), err
}

func (it *ItemJPEG) EncodeB64string() string {
	return DataURI(it.data)
}

// Bytes returns the encoded JPEG.
func (it *ItemJPEG) Bytes() []byte { return it.data }
