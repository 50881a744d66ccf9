package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"invhistory/internal/aggregator"
	"invhistory/internal/exporter"
	"invhistory/internal/model"
	"invhistory/internal/parser"
	"invhistory/internal/runner"
	"invhistory/internal/store"
)

// CreateRunResponse 运行结果
type CreateRunResponse struct {
	Report      *runner.Report `json:"report"`
	DownloadURL string         `json:"downloadUrl"`
}

// CreateRun 上传快照并执行汇总
// POST /api/runs  (multipart: file[]，可选 date[]、format、includeRunLog)
func (h *Handler) CreateRun(c *gin.Context) {
	if h.opts.MaxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadSize)
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的表单数据"})
		return
	}

	files := form.File["file"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未找到上传文件"})
		return
	}

	format := strings.ToLower(c.DefaultPostForm("format", "xlsx"))
	if format != "xlsx" && format != "parquet" {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported format %q", format)})
		return
	}
	includeRunLog, err := strconv.ParseBool(c.DefaultPostForm("includeRunLog", "true"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid includeRunLog %q", c.PostForm("includeRunLog"))})
		return
	}

	uploadDir := filepath.Join(h.opts.UploadDir, uuid.NewString())
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建上传目录失败"})
		return
	}
	defer os.RemoveAll(uploadDir)

	sources, err := h.saveUploads(c, uploadDir, files, form.Value["date"])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outputPath := filepath.Join(h.opts.ExportDir, fmt.Sprintf("%s.%s", uuid.NewString(), format))
	report, err := h.runner.Run(c.Request.Context(), runner.Options{
		Sources:         sources,
		OutputPath:      outputPath,
		IncludeRunLog:   includeRunLog,
		Compression:     h.opts.Compression,
		ReadConcurrency: h.opts.Concurrency,
	})
	if err != nil {
		c.JSON(statusForRunError(err), gin.H{"error": err.Error()})
		return
	}

	artifacts := []string{report.OutputPath}
	if format == "parquet" && includeRunLog {
		artifacts = append(artifacts, exporter.RunLogPath(report.OutputPath))
	}
	token := h.downloads.issue(report.RunID, artifacts...)
	c.JSON(http.StatusOK, CreateRunResponse{
		Report:      report,
		DownloadURL: "/api/download/" + token,
	})
}

// saveUploads 保存上传文件并确定快照日期：优先使用按位置对应的 date 字段，否则从文件名提取
func (h *Handler) saveUploads(c *gin.Context, dir string, files []*multipart.FileHeader, dates []string) ([]model.SnapshotSource, error) {
	re, err := parser.CompileSnapshotPattern(h.opts.Pattern)
	if err != nil {
		return nil, err
	}

	sources := make([]model.SnapshotSource, 0, len(files))
	for i, fh := range files {
		name := filepath.Base(fh.Filename)
		if name == "." || name == string(filepath.Separator) {
			return nil, fmt.Errorf("invalid upload filename %q", fh.Filename)
		}

		var src model.SnapshotSource
		if i < len(dates) && strings.TrimSpace(dates[i]) != "" {
			src.Date, err = parser.ParseSnapshotDate(strings.TrimSpace(dates[i]))
			if err != nil {
				return nil, err
			}
		} else {
			date, found, err := parser.ExtractSnapshotDate(name, re)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, fmt.Errorf("cannot determine snapshot date for %s", name)
			}
			src.Date = date
		}

		// 同名文件放入独立子目录
		target := filepath.Join(dir, strconv.Itoa(i), name)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return nil, err
		}
		if err := c.SaveUploadedFile(fh, target); err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", name, err)
		}
		src.Location = target
		sources = append(sources, src)
	}
	return sources, nil
}

func statusForRunError(err error) int {
	var (
		schemaErr *aggregator.SchemaError
		loadErr   *aggregator.SourceLoadError
	)
	switch {
	case errors.As(err, &schemaErr), errors.As(err, &loadErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RunDetail 运行详情
type RunDetail struct {
	*store.Run
	Sources []model.RunLogEntry `json:"sources"`
}

// ListRuns 运行历史
// GET /api/runs?limit=N
func (h *Handler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.store.ListRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询运行记录失败"})
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun 运行详情
// GET /api/runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	id := c.Param("id")
	run, err := h.store.GetRun(id)
	if errors.Is(err, store.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "运行记录不存在"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询运行记录失败"})
		return
	}

	sources, err := h.store.ListRunSources(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询运行来源失败"})
		return
	}
	c.JSON(http.StatusOK, RunDetail{Run: run, Sources: sources})
}
