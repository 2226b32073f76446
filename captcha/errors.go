package captcha

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDimension = errors.New("captcha: width and height must be positive")
	ErrInvalidAlphabet  = errors.New("captcha: alphabet has no usable symbols")
	ErrInvalidSize      = errors.New("captcha: code size must not be negative")
)

// RenderIOError reports a failure while encoding or writing the image.
type RenderIOError struct {
	Op   string // "encode", "write", "create" or "close"
	Path string // empty for plain io.Writer sinks
	Err  error
}

func (e *RenderIOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("captcha: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("captcha: %s: %v", e.Op, e.Err)
}

func (e *RenderIOError) Unwrap() error { return e.Err }
