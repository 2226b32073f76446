// File: handler.go
package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"verifyCode/captcha"
	"verifyCode/config"
	"verifyCode/middleware"
	"verifyCode/utils"
)

const maxCodeLength = 32

var errTooLarge = errors.New("requested size exceeds the configured maximum")

// Server serves code generation and rendering over HTTP.
type Server struct {
	cfg     config.AppConfig
	plain   *captcha.Renderer
	sheared *captcha.Renderer
}

func rendererOptions(cfg config.AppConfig, shear bool) captcha.Options {
	opts := captcha.DefaultOptions()
	opts.FontPath = cfg.CaptchaFontPath
	opts.Quality = cfg.CaptchaQuality
	opts.NoiseRate = cfg.CaptchaNoiseRate
	opts.LineCount = cfg.CaptchaLines
	opts.Shear = shear
	return opts
}

// NewServer builds both renderer variants up front so the font is parsed once.
func NewServer(cfg config.AppConfig) (*Server, error) {
	plain, err := captcha.NewRenderer(rendererOptions(cfg, false))
	if err != nil {
		return nil, fmt.Errorf("init renderer: %w", err)
	}
	sheared, err := captcha.NewRenderer(rendererOptions(cfg, true))
	if err != nil {
		return nil, fmt.Errorf("init renderer: %w", err)
	}
	return &Server{cfg: cfg, plain: plain, sheared: sheared}, nil
}

func (s *Server) renderer(shear bool) *captcha.Renderer {
	if shear {
		return s.sheared
	}
	return s.plain
}

// Router wires middlewares and routes.
func (s *Server) Router() *gin.Engine {
	switch strings.ToLower(s.cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if err := r.SetTrustedProxies(s.cfg.TrustedProxies); err != nil {
		utils.Logger.Warn("invalid trusted proxies, using peer address only", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(utils.Ginzap(utils.Logger), utils.RecoveryWithZap(utils.Logger))

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.cfg.AllowedOrigins) == 1 && s.cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	api := r.Group("/api/captcha")
	api.Use(middleware.NewRateLimiter(s.cfg.RateLimitPerMinute).Middleware())
	api.GET("/code", s.handleCode)
	api.POST("/render", s.handleRender)
	api.GET("/start", s.handleStart)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})
	return r
}

func (s *Server) checkSize(width, height, length int) error {
	if width > s.cfg.MaxWidth || height > s.cfg.MaxHeight {
		return fmt.Errorf("%w: %dx%d, limit %dx%d", errTooLarge, width, height, s.cfg.MaxWidth, s.cfg.MaxHeight)
	}
	if length > maxCodeLength {
		return fmt.Errorf("%w: code length %d, limit %d", errTooLarge, length, maxCodeLength)
	}
	return nil
}

// queryInt reads an integer query parameter, falling back to def when absent.
func queryInt(ctx *gin.Context, key string, def int) (int, error) {
	v, ok := ctx.GetQuery(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

func (s *Server) fail(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, captcha.ErrInvalidDimension),
		errors.Is(err, captcha.ErrInvalidSize),
		errors.Is(err, errTooLarge):
		utils.Error(ctx, http.StatusBadRequest, 40001, err.Error())
	default:
		utils.Logger.Error("captcha request failed", zap.Error(err), zap.String("path", ctx.Request.URL.Path))
		utils.Error(ctx, http.StatusInternalServerError, 50001, "render failed")
	}
}

func (s *Server) handleCode(ctx *gin.Context) {
	size, err := queryInt(ctx, "size", s.cfg.CaptchaLength)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40002, err.Error())
		return
	}
	if err := s.checkSize(0, 0, size); err != nil {
		s.fail(ctx, err)
		return
	}
	alphabet := ctx.DefaultQuery("alphabet", s.cfg.CaptchaAlphabet)
	code, err := captcha.GenerateCode(size, alphabet)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	utils.Success(ctx, CodeResponse{Code: code})
}

func (s *Server) handleRender(ctx *gin.Context) {
	var req RenderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40002, "invalid json")
		return
	}
	width, height, shear := s.cfg.CaptchaWidth, s.cfg.CaptchaHeight, s.cfg.CaptchaShear
	if req.Width != nil {
		width = *req.Width
	}
	if req.Height != nil {
		height = *req.Height
	}
	if req.Shear != nil {
		shear = *req.Shear
	}
	if err := s.checkSize(width, height, len([]rune(req.Code))); err != nil {
		s.fail(ctx, err)
		return
	}

	data, err := s.renderer(shear).RenderBytes(width, height, req.Code)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	ctx.Header("Cache-Control", "no-store")
	ctx.Data(http.StatusOK, "image/jpeg", data)
}

// handleStart issues an id, a code and its image in one response. The code is
// the answer, so the route is meant for trusted backends that keep it
// server-side; requests carrying an Origin header come from a browser and are
// refused.
func (s *Server) handleStart(ctx *gin.Context) {
	if ctx.GetHeader("Origin") != "" {
		utils.Error(ctx, http.StatusForbidden, 40301, "start is not available to browser clients")
		return
	}
	width, err := queryInt(ctx, "width", s.cfg.CaptchaWidth)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40002, err.Error())
		return
	}
	height, err := queryInt(ctx, "height", s.cfg.CaptchaHeight)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40002, err.Error())
		return
	}
	size, err := queryInt(ctx, "size", s.cfg.CaptchaLength)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40002, err.Error())
		return
	}
	if err := s.checkSize(width, height, size); err != nil {
		s.fail(ctx, err)
		return
	}

	if size < 0 {
		s.fail(ctx, captcha.ErrInvalidSize)
		return
	}
	driver := captcha.NewDriver(s.renderer(s.cfg.CaptchaShear), width, height, size, s.cfg.CaptchaAlphabet)
	id, content, err := driver.NewCode()
	if err != nil {
		s.fail(ctx, err)
		return
	}
	item, err := driver.DrawCaptcha(content)
	if err != nil {
		s.fail(ctx, err)
		return
	}

	utils.Logger.Debug("captcha issued", zap.String("uuid", id), zap.Int("width", width), zap.Int("height", height))
	ctx.Header("X-Request-Id", id)
	utils.Success(ctx, StartResponse{
		UUID:  id,
		Code:  content,
		Image: item.EncodeB64string(),
	})
}
