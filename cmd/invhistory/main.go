package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"invhistory/internal/aggregator"
	"invhistory/internal/config"
	"invhistory/internal/logger"
	"invhistory/internal/parser"
	"invhistory/internal/runner"
	"invhistory/internal/server"
	"invhistory/internal/store"
)

const usage = `invhistory - 序列号库存历史汇总

用法:
  invhistory init  [-config config.toml] [-force]
  invhistory run   [-config file] [-dir D] [-pattern P] [-out O] [-runlog=true] [-concurrency N]
  invhistory serve [-config file] [-port N] [-dev]
`

// 退出码
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
	exitInput   = 3
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(exitUsage)
	}

	var code int
	switch os.Args[1] {
	case "init":
		code = initCmd(os.Args[2:])
	case "run":
		code = runCmd(os.Args[2:])
	case "serve":
		code = serveCmd(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		code = exitUsage
	}
	os.Exit(code)
}

// initCmd 写出默认配置文件（按扩展名选择 TOML/YAML）
func initCmd(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "config.toml", "要写入的配置文件")
		force      = fs.Bool("force", false, "覆盖已存在的文件")
	)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if err := writeDefaultConfig(*configPath, *force); err != nil {
		fmt.Fprintf(os.Stderr, "写入配置失败: %v\n", err)
		return exitFailure
	}
	fmt.Printf("配置已写入 %s\n", *configPath)
	return exitOK
}

func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use -force to overwrite)", path)
		}
	}
	return config.SaveConfig(path, config.DefaultConfig())
}

func loadConfig(path string) (*config.AppConfig, zerolog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger.New(logger.FromConfig(cfg.Log)), nil
}

func runCmd(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var (
		configPath  = fs.String("config", "", "配置文件 (TOML/YAML)")
		dir         = fs.String("dir", "", "快照目录 (覆盖配置文件)")
		pattern     = fs.String("pattern", "", "快照文件名正则，第一个分组为日期")
		out         = fs.String("out", "", "输出文件 (.xlsx/.parquet)")
		runLog      = fs.Bool("runlog", true, "导出运行日志")
		concurrency = fs.Int("concurrency", 0, "并发预读快照数量")
	)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, log, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		return exitUsage
	}

	// 命令行参数覆盖配置
	if *dir != "" {
		cfg.Snapshots.Dir = *dir
	}
	if *pattern != "" {
		cfg.Snapshots.Pattern = *pattern
	}
	if *out != "" {
		cfg.Output.File = *out
	}
	if isFlagSet(fs, "runlog") {
		cfg.Output.IncludeRunLog = *runLog
	}
	if *concurrency > 0 {
		cfg.Snapshots.ReadConcurrency = *concurrency
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var recorder runner.Recorder
	if _, err := config.EnsureDataDir(cfg); err != nil {
		log.Warn().Err(err).Msg("data dir unavailable, run history disabled")
	} else if st, err := store.New(config.GetDataPath(cfg, "", server.DatabaseFile)); err != nil {
		log.Warn().Err(err).Msg("run history store unavailable")
	} else {
		defer st.Close()
		recorder = st
	}

	r := runner.New(parser.NewXLSXReader(cfg.Snapshots.Sheet), recorder, log)
	report, err := r.Run(ctx, runner.Options{
		Dir:             cfg.Snapshots.Dir,
		Pattern:         cfg.Snapshots.Pattern,
		OutputPath:      cfg.Output.File,
		IncludeRunLog:   cfg.Output.IncludeRunLog,
		Compression:     cfg.Output.Compression,
		ReadConcurrency: cfg.Snapshots.ReadConcurrency,
		Progress: func(ev runner.ProgressEvent) {
			log.Debug().Int("percent", ev.Percent).Str("stage", ev.Stage).Msg("progress")
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("aggregation failed")
		return exitCode(err)
	}

	fmt.Printf("%d serials from %d snapshots written to %s (%s)\n",
		report.Stats.Serials, report.Stats.Sources, report.OutputPath, report.Duration.Round(time.Millisecond))
	return exitOK
}

func exitCode(err error) int {
	var (
		schemaErr *aggregator.SchemaError
		loadErr   *aggregator.SourceLoadError
	)
	switch {
	case errors.As(err, &schemaErr), errors.As(err, &loadErr), errors.Is(err, runner.ErrNoSources):
		return exitInput
	default:
		return exitFailure
	}
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func serveCmd(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "配置文件 (TOML/YAML)")
		port       = fs.Int("port", 0, "服务端口 (覆盖配置文件)")
		devMode    = fs.Bool("dev", false, "开发模式")
		dataDir    = fs.String("dataDir", "", "数据目录 (覆盖配置文件)")
	)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, log, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		return exitUsage
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *devMode {
		cfg.Server.DevMode = true
	}
	if *dataDir != "" {
		cfg.Data.DataDir = *dataDir
	}

	srv, err := server.NewServer(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to create server")
		return exitFailure
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		errCh <- srv.Run(addr)
	}()

	// 等待信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server failed")
			_ = srv.Shutdown(context.Background())
			return exitFailure
		}
	case <-quit:
		log.Info().Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown incomplete")
	}
	return exitOK
}
