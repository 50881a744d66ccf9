package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"invhistory/internal/api"
	"invhistory/internal/config"
	"invhistory/internal/parser"
	"invhistory/internal/runner"
	"invhistory/internal/store"
)

// DatabaseFile 运行记录数据库文件名（位于数据目录下）
const DatabaseFile = "invhistory.db"

// Server HTTP服务器
type Server struct {
	router *gin.Engine
	store  *store.Store
	api    *api.Handler
	http   *http.Server
	logger zerolog.Logger
}

// NewServer 创建服务器
func NewServer(cfg *config.AppConfig, logger zerolog.Logger) (*Server, error) {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化 SQLite Store
	if _, err := config.EnsureDataDir(cfg); err != nil {
		return nil, err
	}
	sqliteStore, err := store.New(config.GetDataPath(cfg, "", DatabaseFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	r := runner.New(parser.NewXLSXReader(cfg.Snapshots.Sheet), sqliteStore, logger)
	handler := api.NewHandler(r, sqliteStore, api.Options{
		UploadDir:     config.GetDataPath(cfg, "uploads", ""),
		ExportDir:     config.GetDataPath(cfg, "exports", ""),
		Pattern:       cfg.Snapshots.Pattern,
		Compression:   cfg.Output.Compression,
		Concurrency:   cfg.Snapshots.ReadConcurrency,
		DownloadTTL:   time.Duration(cfg.Server.DownloadTTLMinutes) * time.Minute,
		MaxUploadSize: int64(cfg.Server.MaxUploadMB) << 20,
	}, logger)

	s := &Server{
		router: gin.New(),
		store:  sqliteStore,
		api:    handler,
		logger: logger.With().Str("component", "server").Logger(),
	}
	s.setupRoutes()
	s.http = &http.Server{Handler: s.router}

	return s, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery(), s.requestLogger())

	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	apiGroup := s.router.Group("/api")
	{
		s.api.RegisterRoutes(apiGroup)
	}
}

// requestLogger 请求日志
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := s.logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = s.logger.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// Handler 返回 HTTP 处理器（用于测试）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 启动服务器，阻塞直到关闭
func (s *Server) Run(addr string) error {
	s.http.Addr = addr
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭并释放数据库
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	if cerr := s.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
