package main

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verifyCode/captcha"
)

func TestRunBatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.CaptchaWidth, cfg.CaptchaHeight, cfg.CaptchaLength = 120, 40, 5
	r, err := captcha.NewRenderer(rendererOptions(cfg, false))
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, runBatch(r, cfg, dir, 3))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	name := regexp.MustCompile(`^[0-2]_[1-9A-Z]{5}\.jpg$`)
	for _, e := range entries {
		assert.Regexp(t, name, e.Name())
		info, err := e.Info()
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	}
}

func TestFileSafe(t *testing.T) {
	assert.Equal(t, "A_B_C", fileSafe(`A/B\C`))
	assert.Equal(t, "XYZ", fileSafe("XYZ"))
}
