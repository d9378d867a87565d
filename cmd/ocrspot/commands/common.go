package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aknr/ocrspot/internal/platform/logger"
	"github.com/aknr/ocrspot/pkg/config"
	"github.com/aknr/ocrspot/pkg/db"
	"github.com/aknr/ocrspot/pkg/ledger/postgres"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config   *config.Config
	Database *db.DB
	Table    *postgres.Table
	Logger   *slog.Logger
}

// NewAppContext は設定ファイルを読み込み、DBに接続して AppContext を作成する
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	appLogger := logger.New(logger.Config{
		Level:    slog.LevelInfo,
		Format:   "json",
		WorkerID: cfg.Worker.ID,
	})

	database, err := db.New(ctx, db.ConnectionParams{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		DBName:      cfg.Database.DBName,
		SSLMode:     cfg.Database.SSLMode,
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	table := postgres.NewTable(database.Pool)
	if err := table.InitSchema(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("スキーマの初期化に失敗: %w", err)
	}

	return &AppContext{
		Config:   cfg,
		Database: database,
		Table:    table,
		Logger:   appLogger,
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Database != nil {
		ac.Database.Close()
	}
}
