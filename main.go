// File: main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"verifyCode/config"
	"verifyCode/utils"
)

func main() {
	batch := flag.Int("batch", 0, "write this many captchas to -out and exit")
	out := flag.String("out", "captcha", "output directory for -batch")
	flag.Parse()

	cfg := config.Load()
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer utils.Logger.Sync()

	srv, err := NewServer(cfg)
	if err != nil {
		utils.Sugar.Fatalf("init server: %v", err)
	}

	if *batch > 0 {
		if err := runBatch(srv.renderer(cfg.CaptchaShear), cfg, *out, *batch); err != nil {
			utils.Sugar.Fatalf("batch: %v", err)
		}
		return
	}

	httpSrv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      srv.Router(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		utils.Sugar.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			utils.Sugar.Errorf("HTTP server shutdown error: %v", err)
		}
	}()

	utils.Sugar.Infof("Server listening on :%s", cfg.AppPort)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
