package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"invhistory/internal/parser"
)

// AppConfig 应用配置
type AppConfig struct {
	Snapshots SnapshotConfig `toml:"snapshots" yaml:"snapshots"`
	Output    OutputConfig   `toml:"output" yaml:"output"`
	Server    ServerConfig   `toml:"server" yaml:"server"`
	Data      DataConfig     `toml:"data" yaml:"data"`
	Log       LogConfig      `toml:"log" yaml:"log"`
}

// SnapshotConfig 快照来源配置
type SnapshotConfig struct {
	Dir             string `toml:"dir" yaml:"dir"`
	Pattern         string `toml:"pattern" yaml:"pattern" validate:"snapshotpattern"`
	Sheet           string `toml:"sheet" yaml:"sheet"`
	ReadConcurrency int    `toml:"read_concurrency" yaml:"read_concurrency" validate:"gte=0,lte=64"`
}

// OutputConfig 导出配置
type OutputConfig struct {
	File          string `toml:"file" yaml:"file" validate:"required"`
	IncludeRunLog bool   `toml:"include_run_log" yaml:"include_run_log"`
	Compression   string `toml:"compression" yaml:"compression" validate:"omitempty,oneof=zstd snappy gzip none"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port               int  `toml:"port" yaml:"port" validate:"gte=0,lte=65535"`
	DevMode            bool `toml:"dev_mode" yaml:"dev_mode"`
	DownloadTTLMinutes int  `toml:"download_ttl_minutes" yaml:"download_ttl_minutes" validate:"gte=0"`
	MaxUploadMB        int  `toml:"max_upload_mb" yaml:"max_upload_mb" validate:"gte=0"`
}

// DataConfig 数据目录配置
type DataConfig struct {
	DataDir string `toml:"data_dir" yaml:"data_dir"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `toml:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `toml:"format" yaml:"format" validate:"omitempty,oneof=console json"`
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups" validate:"gte=0"`
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Snapshots: SnapshotConfig{
			Dir:             ".",
			Pattern:         parser.DefaultSnapshotPattern,
			ReadConcurrency: 1,
		},
		Output: OutputConfig{
			File:          "inventory_history.xlsx",
			IncludeRunLog: true,
			Compression:   "zstd",
		},
		Server: ServerConfig{
			Port:               20262,
			DownloadTTLMinutes: 30,
			MaxUploadMB:        64,
		},
		Data: DataConfig{
			DataDir: "data",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// 默认查找的配置文件名（按顺序）
var defaultConfigFiles = []string{"config.toml", "config.yaml", "config.yml"}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// FindConfigFile 依次在当前目录与可执行文件目录查找配置文件；未找到返回空串
func FindConfigFile() string {
	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	if exeDir, err := GetExeDir(); err == nil {
		dirs = append(dirs, exeDir)
	}
	for _, dir := range dirs {
		for _, name := range defaultConfigFiles {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}
	}
	return ""
}

// Load 加载配置：path 为空时自动查找；文件不存在时使用默认配置。
// 之后应用环境变量覆盖并校验。
func Load(path string) (*AppConfig, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
	}
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file not found: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return nil
}

// 环境变量覆盖
const (
	EnvSnapshotDir = "INVHISTORY_SNAPSHOT_DIR"
	EnvOutputFile  = "INVHISTORY_OUTPUT_FILE"
	EnvDataDir     = "INVHISTORY_DATA_DIR"
	EnvLogLevel    = "INVHISTORY_LOG_LEVEL"
	EnvServerPort  = "INVHISTORY_PORT"
)

func applyEnv(cfg *AppConfig) error {
	if v := os.Getenv(EnvSnapshotDir); v != "" {
		cfg.Snapshots.Dir = v
	}
	if v := os.Getenv(EnvOutputFile); v != "" {
		cfg.Output.File = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.Data.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvServerPort, v, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

// SaveConfig 保存配置（按扩展名选择 TOML/YAML）
func SaveConfig(path string, cfg *AppConfig) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = toml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// EnsureDataDir 确保数据目录及子目录存在
func EnsureDataDir(cfg *AppConfig) (string, error) {
	dataDir := dataDirOf(cfg)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}

	for _, subdir := range []string{"uploads", "exports"} {
		if err := os.MkdirAll(filepath.Join(dataDir, subdir), 0755); err != nil {
			return "", err
		}
	}

	return dataDir, nil
}

// GetDataPath 获取数据文件路径；subdir 或 filename 可为空
func GetDataPath(cfg *AppConfig, subdir, filename string) string {
	return filepath.Join(dataDirOf(cfg), subdir, filename)
}

func dataDirOf(cfg *AppConfig) string {
	if cfg.Data.DataDir == "" {
		return "data"
	}
	return cfg.Data.DataDir
}
