package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"easyrent/internal/app"
	"easyrent/internal/core/config"
	"easyrent/internal/core/logger"
	"easyrent/internal/core/server"
	"easyrent/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, cleanup := logger.FromConfig(cfg.Log)
	defer cleanup()
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("bootstrap failed", zap.Error(err))
	}

	addr := server.Addr(cfg.HTTP.Host, cfg.HTTP.Port)
	srv := server.BuildServer(addr, a.Engine, server.Timeouts{
		Read:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		Write: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
		Idle:  time.Duration(cfg.HTTP.IdleTimeoutSec) * time.Second,
	}, log)

	// 启动日志
	host4human := cfg.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.HTTP.Port)
	log.Info("easyrent api starting",
		zap.String("env", cfg.App.Env),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("api_v1", baseURL+router.BasePath),
	)

	runErr := server.Run(ctx, srv, 10*time.Second, log)

	closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.Close(closeCtx)
	if runErr != nil {
		log.Fatal("easyrent api FAILED", zap.Error(runErr))
	}
	log.Info("easyrent api stopped")
}
