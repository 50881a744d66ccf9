package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

const (
	contentTypeXLSX    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeParquet = "application/vnd.apache.parquet"
)

// Download 下载汇总结果（一次性）
// GET /api/download/:token
func (h *Handler) Download(c *gin.Context) {
	token := c.Param("token")
	item, ok := h.downloads.lookup(token)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "下载链接已失效"})
		return
	}

	filePath := item.paths[0]
	if _, err := os.Stat(filePath); err != nil {
		h.downloads.consume(token)
		c.JSON(http.StatusNotFound, gin.H{"error": "导出文件不存在"})
		return
	}

	ext := filepath.Ext(filePath)
	contentType := contentTypeXLSX
	if ext == ".parquet" {
		contentType = contentTypeParquet
	}
	c.Header("Content-Disposition", buildContentDisposition(item.runID, ext))
	c.Header("Content-Type", contentType)
	c.File(filePath)

	h.downloads.consume(token)
}

func buildContentDisposition(runID, ext string) string {
	return fmt.Sprintf("attachment; filename=\"serial-history-%s%s\"", runID, ext)
}
