package main

import (
	"izin-talep/internal/app"
	"izin-talep/internal/bootstrap"
	"izin-talep/internal/config"
	"izin-talep/internal/shared/apperror"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	apperror.Init()
	r := gin.New()
	r.Use(gin.Recovery())

	// build dependency + routes
	application, err := app.BuildApp(r, cfg, logger)
	if err != nil {
		logger.Fatal("build app failed", zap.Error(err))
	}

	auditLogger := bootstrap.NewStdoutAuditLogger(logger)
	if err := bootstrap.StartHTTPServer(r, cfg.HTTP, auditLogger, application.Close); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}
