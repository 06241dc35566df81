package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/OCAP2/hlabridge/internal/config"
	"github.com/OCAP2/hlabridge/internal/storage"
	gormstorage "github.com/OCAP2/hlabridge/internal/storage/gorm"
	"github.com/OCAP2/hlabridge/internal/storage/memory"
	sqlitestorage "github.com/OCAP2/hlabridge/internal/storage/sqlite"
	wsstorage "github.com/OCAP2/hlabridge/internal/storage/websocket"
)

func createStorageBackend(storageCfg config.StorageConfig, dir string, start time.Time, logger *slog.Logger) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		logger.Info("Postgres storage backend initialized")
		return gormstorage.New(gormstorage.Dependencies{
			Logger: logger,
		}), nil

	case "sqlite":
		dumpPath := storageCfg.SQLite.DumpPath
		if dumpPath == "" {
			dumpPath = filepath.Join(dir, fmt.Sprintf("%s_%s.db", AppName, start.Format("20060102_150405")))
		}
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend initialized", "dumpPath", dumpPath)
		return backend, nil

	case "websocket":
		logger.Info("WebSocket storage backend initialized", "url", storageCfg.WebSocket.URL)
		return wsstorage.New(wsstorage.Config{
			URL:    storageCfg.WebSocket.URL,
			Secret: storageCfg.WebSocket.Secret,
		}, logger), nil

	case "memory", "":
		logger.Info("Memory storage backend initialized", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}
