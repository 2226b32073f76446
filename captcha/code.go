// Package captcha generates verification codes and renders them as
// distorted JPEG images.
package captcha

import (
	"strings"
)

// DefaultAlphabet leaves out 0 so it cannot be mistaken for O.
const DefaultAlphabet = "123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateCode returns size characters sampled with replacement from alphabet.
// An empty or blank alphabet falls back to DefaultAlphabet.
func GenerateCode(size int, alphabet string) (string, error) {
	return GenerateCodeFrom(DefaultSource, size, alphabet)
}

// GenerateCodeFrom is GenerateCode with an explicit random source.
func GenerateCodeFrom(src Source, size int, alphabet string) (string, error) {
	if size < 0 {
		return "", ErrInvalidSize
	}
	symbols := resolveAlphabet(alphabet)
	if len(symbols) == 0 {
		return "", ErrInvalidAlphabet
	}

	var sb strings.Builder
	sb.Grow(size)
	for i := 0; i < size; i++ {
		sb.WriteRune(symbols[RandRange(src, 0, len(symbols))])
	}
	return sb.String(), nil
}

func resolveAlphabet(alphabet string) []rune {
	if strings.TrimSpace(alphabet) == "" {
		alphabet = DefaultAlphabet
	}
	return []rune(alphabet)
}
