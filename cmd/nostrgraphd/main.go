// Package main is the entry point for the nostrgraph engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nugget/nostrgraph/internal/buildinfo"
	"github.com/nugget/nostrgraph/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "serve":
			runServe(logger, *configPath)
		case "load":
			if flag.NArg() < 2 {
				fmt.Fprintln(os.Stderr, "usage: nostrgraphd load <graph.json>")
				os.Exit(1)
			}
			runLoad(logger, *configPath, flag.Arg(1))
		case "version":
			fmt.Println(buildinfo.String())
			for k, v := range buildinfo.BuildInfo() {
				fmt.Printf("  %-12s %s\n", k+":", v)
			}
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
			os.Exit(1)
		}
		return
	}

	fmt.Println("nostrgraph - reactive dataflow engine for Nostr node graphs")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve    Load the configured graph and run until signalled")
	fmt.Println("  load     Validate that a graph document restores cleanly, then exit")
	fmt.Println("  version  Show version")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

func loadConfig(logger *slog.Logger, configPath string) (*config.Config, *slog.Logger) {
	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		logger.Warn("no config file found, using defaults", "error", err)
		return config.Default(), logger
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			logger.Error("invalid log_level in config", "error", err)
			os.Exit(1)
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: config.ReplaceLogLevelNames,
		}))
	}

	logger.Info("config loaded", "path", cfgPath, "data_dir", cfg.DataDir)
	return cfg, logger
}

func runLoad(logger *slog.Logger, configPath, graphPath string) {
	cfg, logger := loadConfig(logger, configPath)

	engine, cleanup, err := buildEngine(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	doc, err := readGraphDoc(graphPath)
	if err != nil {
		logger.Error("failed to read graph document", "path", graphPath, "error", err)
		os.Exit(1)
	}
	if err := engine.runtime.Restore(doc); err != nil {
		logger.Error("graph failed to restore", "path", graphPath, "error", err)
		os.Exit(1)
	}

	logger.Info("graph restored cleanly", "path", graphPath, "nodes", len(doc.Nodes), "edges", len(doc.Edges))
}

func runServe(logger *slog.Logger, configPath string) {
	logger.Info("starting nostrgraph", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, logger := loadConfig(logger, configPath)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data directory", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, cleanup, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	graphPath := cfg.DataDir + "/graph.json"
	if doc, err := readGraphDoc(graphPath); err == nil {
		if err := engine.runtime.Restore(doc); err != nil {
			logger.Error("failed to restore saved graph", "path", graphPath, "error", err)
			os.Exit(1)
		}
		logger.Info("restored saved graph", "path", graphPath, "nodes", len(doc.Nodes))
	} else {
		logger.Info("no saved graph found, starting empty", "path", graphPath)
	}

	logger.Info("nostrgraph running, waiting for signal")
	<-ctx.Done()
	logger.Info("shutting down, saving graph", "path", graphPath)

	doc, err := engine.runtime.Serialize()
	if err != nil {
		logger.Error("failed to serialize graph on shutdown", "error", err)
		return
	}
	if err := writeGraphDoc(graphPath, doc); err != nil {
		logger.Error("failed to save graph on shutdown", "path", graphPath, "error", err)
	}
}
