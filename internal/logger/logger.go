// Package logger 基于 zerolog 的日志构建，支持控制台输出与 lumberjack 滚动文件。
package logger

import (
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"invhistory/internal/config"
)

// Options 日志选项
type Options struct {
	Level      zerolog.Level
	JSON       bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	// Console 为 nil 时写 stderr
	Console io.Writer
}

// FromConfig 从应用配置转换
func FromConfig(cfg config.LogConfig) Options {
	return Options{
		Level:      ParseLevel(cfg.Level),
		JSON:       strings.EqualFold(cfg.Format, "json"),
		File:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
}

// ParseLevel 解析日志级别，无法识别时为 info
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// New 创建 logger；同时接管标准库 log 的输出（gin 等依赖使用）
func New(opts Options) zerolog.Logger {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var writers []io.Writer
	if opts.JSON {
		writers = append(writers, console)
	} else {
		writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: time.DateTime})
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    positiveOr(opts.MaxSizeMB, 100),
				MaxBackups: positiveOr(opts.MaxBackups, 3),
				LocalTime:  true,
			})
		}
	}

	l := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(opts.Level).
		With().
		Timestamp().
		Logger()

	stdlog.SetOutput(l)
	stdlog.SetFlags(0)
	return l
}

func positiveOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
