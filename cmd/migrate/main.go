package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/sngm3741/survey-platform/api/internal/config"
	mongodoc "github.com/sngm3741/survey-platform/api/internal/infrastructure/mongo"
	"github.com/sngm3741/survey-platform/api/internal/infrastructure/sqlstore"
	"github.com/sngm3741/survey-platform/api/internal/logging"
)

type migrateOptions struct {
	configPath string
	skipMongo  bool
	skipMySQL  bool
}

func main() {
	opts := parseFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "設定の読み込みに失敗しました: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg).Named("migrate")
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if !opts.skipMongo {
		if err := migrateMongo(ctx, cfg); err != nil {
			logger.Fatal("MongoDB スキーマ適用に失敗しました", zap.Error(err))
		}
		logger.Info("MongoDB スキーマを適用しました",
			zap.String("database", cfg.Mongo.Database),
			zap.String("surveys", cfg.Mongo.SurveyCollection),
			zap.String("responses", cfg.Mongo.ResponseCollection),
		)
	}

	if !opts.skipMySQL {
		if err := migrateMySQL(cfg, logger); err != nil {
			logger.Fatal("MySQL マイグレーションに失敗しました", zap.Error(err))
		}
		logger.Info("MySQL マイグレーションが完了しました")
	}
}

func parseFlags() migrateOptions {
	var opts migrateOptions
	flag.StringVar(&opts.configPath, "config", os.Getenv("API_CONFIG_FILE"), "YAML 設定ファイルのパス (任意)")
	flag.BoolVar(&opts.skipMongo, "skip-mongo", false, "MongoDB のバリデータとインデックス適用を行わない")
	flag.BoolVar(&opts.skipMySQL, "skip-mysql", false, "MySQL のテーブル作成とロール投入を行わない")
	flag.Parse()
	return opts
}

func migrateMongo(ctx context.Context, cfg config.Config) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	return mongodoc.EnsureSchema(ctx, client.Database(cfg.Mongo.Database), cfg.Mongo.SurveyCollection, cfg.Mongo.ResponseCollection)
}

func migrateMySQL(cfg config.Config, logger *zap.Logger) error {
	db, err := sqlstore.Open(sqlstore.Options{DSN: cfg.MySQL.DSN, MaxOpenConns: 2}, logger.Named("gorm"))
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}
	return sqlstore.Migrate(db)
}
