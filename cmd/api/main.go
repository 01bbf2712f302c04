package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	goredis "github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/sngm3741/survey-platform/api/internal/config"
	mongodoc "github.com/sngm3741/survey-platform/api/internal/infrastructure/mongo"
	rediscache "github.com/sngm3741/survey-platform/api/internal/infrastructure/redis"
	"github.com/sngm3741/survey-platform/api/internal/infrastructure/sqlstore"
	"github.com/sngm3741/survey-platform/api/internal/logging"
	"github.com/sngm3741/survey-platform/api/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("API_CONFIG_FILE"), "YAML 設定ファイルのパス (任意)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "設定の読み込みに失敗しました: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.Mongo.URI).SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))
	mongoClient, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		logger.Fatal("MongoDB 接続に失敗しました", zap.Error(err))
	}
	if err := mongodoc.EnsureSchema(ctx, mongoClient.Database(cfg.Mongo.Database), cfg.Mongo.SurveyCollection, cfg.Mongo.ResponseCollection); err != nil {
		logger.Warn("MongoDB スキーマ適用に失敗しました", zap.Error(err))
	}

	db, err := sqlstore.Open(sqlstore.Options{
		DSN:             cfg.MySQL.DSN,
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
	}, logger.Named("gorm"))
	if err != nil {
		logger.Fatal("MySQL 接続に失敗しました", zap.Error(err))
	}
	if err := sqlstore.Migrate(db); err != nil {
		logger.Warn("MySQL マイグレーションに失敗しました", zap.Error(err))
	}

	var redisClient *goredis.Client
	if cfg.Cache.Backend == "redis" {
		redisClient, err = rediscache.Connect(ctx, rediscache.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			PoolSize: cfg.Cache.PoolSize,
		})
		if err != nil {
			logger.Fatal("Redis 接続に失敗しました", zap.Error(err))
		}
	} else {
		logger.Info("インメモリキャッシュで起動します")
	}

	app := server.New(cfg, server.Dependencies{
		Logger: logger,
		Mongo:  mongoClient,
		Redis:  redisClient,
		SQL:    db,
	})
	if err := app.Run(); err != nil {
		logger.Fatal("サーバー起動に失敗", zap.Error(err))
	}
}
