package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"invhistory/internal/runner"
	"invhistory/internal/store"
)

// Options 处理器配置
type Options struct {
	UploadDir     string
	ExportDir     string
	Pattern       string
	Compression   string
	Concurrency   int
	DownloadTTL   time.Duration
	MaxUploadSize int64
}

// Handler HTTP API 处理器
type Handler struct {
	runner    *runner.Runner
	store     *store.Store
	opts      Options
	downloads *artifactTokens
	logger    zerolog.Logger
}

// NewHandler 创建 API 处理器
func NewHandler(r *runner.Runner, st *store.Store, opts Options, logger zerolog.Logger) *Handler {
	if opts.DownloadTTL <= 0 {
		opts.DownloadTTL = 30 * time.Minute
	}
	return &Handler{
		runner:    r,
		store:     st,
		opts:      opts,
		downloads: newArtifactTokens(opts.DownloadTTL),
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/status", h.GetStatus)

	// 汇总运行
	router.POST("/runs", h.CreateRun)
	router.GET("/runs", h.ListRuns)
	router.GET("/runs/:id", h.GetRun)

	// 结果下载
	router.GET("/download/:token", h.Download)
}
