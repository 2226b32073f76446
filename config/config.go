package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds file and environment driven configuration values.
type AppConfig struct {
	AppPort            string
	GinMode            string
	RateLimitPerMinute int
	AllowedOrigins     []string
	// TrustedProxies lists proxy IPs/CIDRs whose X-Forwarded-For is honored.
	// Empty means the client IP is always the socket peer.
	TrustedProxies []string
	// Captcha rendering
	CaptchaWidth     int
	CaptchaHeight    int
	CaptchaLength    int
	CaptchaAlphabet  string
	CaptchaFontPath  string
	CaptchaQuality   int
	CaptchaNoiseRate float64
	CaptchaLines     int
	CaptchaShear     bool
	MaxWidth         int
	MaxHeight        int
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

var cfg AppConfig
var loaded bool

// Load loads the configuration once. Precedence:
// config/config.json -> defaults -> environment variable overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}
	_ = loadJSONConfig(filepath.Join("config", "config.json"), &cfg)
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	loaded = true
	return cfg
}

// LoadFrom builds a configuration from an explicit file without touching the
// cached one.
func LoadFrom(path string) (AppConfig, error) {
	var c AppConfig
	if err := loadJSONConfig(path, &c); err != nil {
		return c, err
	}
	applyDefaults(&c)
	applyEnvOverrides(&c)
	return c, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads grouped sections (app, captcha, log) into out. A missing
// file is not an error; invalid JSON is.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if s, ok := m[key].(string); ok {
			return s
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if f, ok := m[key].(float64); ok {
			return int(f)
		}
		return 0
	}
	getFloat := func(m map[string]any, key string) float64 {
		if f, ok := m[key].(float64); ok {
			return f
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		b, _ := m[key].(bool)
		return b
	}
	getStringSlice := func(m map[string]any, key string) []string {
		arr, ok := m[key].([]any)
		if !ok {
			return nil
		}
		res := make([]string, 0, len(arr))
		for _, it := range arr {
			if s, ok := it.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.GinMode = getString(app, "GinMode")
		out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
		if list := getStringSlice(app, "AllowedOrigins"); len(list) > 0 {
			out.AllowedOrigins = list
		}
		out.TrustedProxies = getStringSlice(app, "TrustedProxies")
	}

	if cp, ok := raw["captcha"].(map[string]any); ok {
		out.CaptchaWidth = getInt(cp, "Width")
		out.CaptchaHeight = getInt(cp, "Height")
		out.CaptchaLength = getInt(cp, "Length")
		out.CaptchaAlphabet = getString(cp, "Alphabet")
		out.CaptchaFontPath = getString(cp, "FontPath")
		out.CaptchaQuality = getInt(cp, "Quality")
		out.CaptchaNoiseRate = getFloat(cp, "NoiseRate")
		out.CaptchaLines = getInt(cp, "Lines")
		out.CaptchaShear = getBool(cp, "Shear")
		out.MaxWidth = getInt(cp, "MaxWidth")
		out.MaxHeight = getInt(cp, "MaxHeight")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress = getBool(lg, "Compress")
	}
	return nil
}

func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "28416"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 120
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.CaptchaWidth == 0 {
		c.CaptchaWidth = 200
	}
	if c.CaptchaHeight == 0 {
		c.CaptchaHeight = 80
	}
	if c.CaptchaLength == 0 {
		c.CaptchaLength = 6
	}
	if c.CaptchaQuality == 0 {
		c.CaptchaQuality = 100
	}
	if c.CaptchaNoiseRate == 0 {
		c.CaptchaNoiseRate = 0.05
	}
	if c.CaptchaLines == 0 {
		c.CaptchaLines = 20
	}
	if c.MaxWidth == 0 {
		c.MaxWidth = 1000
	}
	if c.MaxHeight == 0 {
		c.MaxHeight = 400
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimitPerMinute = n
		}
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	if v := getEnv("TRUSTED_PROXIES", ""); v != "" {
		c.TrustedProxies = splitAndTrim(v)
	}
	setInt := func(key string, dst *int) {
		if v := getEnv(key, ""); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setInt("CAPTCHA_WIDTH", &c.CaptchaWidth)
	setInt("CAPTCHA_HEIGHT", &c.CaptchaHeight)
	setInt("CAPTCHA_LENGTH", &c.CaptchaLength)
	setInt("CAPTCHA_QUALITY", &c.CaptchaQuality)
	setInt("CAPTCHA_LINES", &c.CaptchaLines)
	setInt("CAPTCHA_MAX_WIDTH", &c.MaxWidth)
	setInt("CAPTCHA_MAX_HEIGHT", &c.MaxHeight)
	if v := getEnv("CAPTCHA_ALPHABET", ""); v != "" {
		c.CaptchaAlphabet = v
	}
	if v := getEnv("CAPTCHA_FONT_PATH", ""); v != "" {
		c.CaptchaFontPath = v
	}
	if v := getEnv("CAPTCHA_NOISE_RATE", ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.CaptchaNoiseRate = f
		}
	}
	if v := getEnv("CAPTCHA_SHEAR", ""); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.CaptchaShear = b
		}
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}
