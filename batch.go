// File: batch.go
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"verifyCode/captcha"
	"verifyCode/config"
	"verifyCode/utils"
)

// runBatch writes count images named <index>_<code>.jpg into dir.
func runBatch(r *captcha.Renderer, cfg config.AppConfig, dir string, count int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	for i := 0; i < count; i++ {
		code, err := captcha.GenerateCodeFrom(r.Source(), cfg.CaptchaLength, cfg.CaptchaAlphabet)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, fmt.Sprintf("%d_%s.jpg", i, fileSafe(code)))
		if err := r.RenderFile(path, cfg.CaptchaWidth, cfg.CaptchaHeight, code); err != nil {
			return err
		}
	}
	utils.Sugar.Infow("batch written", "dir", dir, "count", count)
	return nil
}

// fileSafe keeps path separators out of file names.
func fileSafe(code string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, code)
}
