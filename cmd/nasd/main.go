package main

import (
	_ "embed"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"homenas/pkg/config"
	"homenas/pkg/fsroot"
	"homenas/pkg/index"
	"homenas/pkg/log"
	"homenas/pkg/metrics"
	"homenas/pkg/server"
	"homenas/pkg/statscache"
	"homenas/pkg/store/local"
)

const (
	storageDirPerm = 0750
)

//go:embed VERSION
var Version string

func main() {
	// Initialize logger first
	_ = log.Logger

	configPath := flag.String("config", "", "Path to YAML config file")
	storageDir := flag.String("storage", "", "Storage directory path (overrides config)")
	webDir := flag.String("web", "", "Web assets directory path (overrides config)")
	port := flag.String("port", "", "Server port (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("Failed to load configuration")
	}

	// Only flags given on the command line win over file and environment values.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "storage":
			cfg.StorageDir = *storageDir
		case "web":
			cfg.WebDir = *webDir
		case "port":
			cfg.Addr = ":" + strings.TrimPrefix(*port, ":")
		}
	})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if err := log.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logging")
	}
	if *debug {
		log.SetDebugMode()
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}

	os.Exit(0)
}

func run(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.StorageDir, storageDirPerm); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", cfg.StorageDir, err)
	}

	if _, err := os.Stat(cfg.WebDir); os.IsNotExist(err) {
		log.Warn().Str("web_dir", cfg.WebDir).Msg("Web directory does not exist, /app will return 404")
	}

	root, err := fsroot.New(cfg.StorageDir)
	if err != nil {
		return err
	}

	var checksums local.ChecksumIndex
	if cfg.IndexDB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.IndexDB), storageDirPerm); err != nil {
			return fmt.Errorf("failed to create index directory: %w", err)
		}
		idx, err := index.NewStore(cfg.IndexDB)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := idx.Close(); closeErr != nil {
				log.Warn().Err(closeErr).Msg("Failed to close checksum index")
			}
		}()
		checksums = idx
	}

	files := local.New(root, local.Options{
		MaxUploadSize:     cfg.MaxUploadSize,
		AllowedExtensions: cfg.AllowedExtensions,
		ChunkSize:         cfg.ChunkSize,
	}, checksums)

	stats := statscache.New(root.Dir(),
		statscache.WithTTL(cfg.StatsTTL),
		statscache.WithObserver(metrics.RecordStatsCache),
	)

	nas := server.NewNASServer(cfg, root, files, stats, strings.TrimSpace(Version))
	return nas.Start(cfg.Addr)
}
