package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authapp "github.com/sngm3741/survey-platform/api/internal/auth/application"
	"github.com/sngm3741/survey-platform/api/internal/cache"
	"github.com/sngm3741/survey-platform/api/internal/config"
	mongodoc "github.com/sngm3741/survey-platform/api/internal/infrastructure/mongo"
	rediscache "github.com/sngm3741/survey-platform/api/internal/infrastructure/redis"
	"github.com/sngm3741/survey-platform/api/internal/infrastructure/sqlstore"
	accounthttp "github.com/sngm3741/survey-platform/api/internal/interfaces/http/account"
	surveyhttp "github.com/sngm3741/survey-platform/api/internal/interfaces/http/survey"
	surveyapp "github.com/sngm3741/survey-platform/api/internal/survey/application"
)

// Dependencies は cmd/api で接続済みのクライアント群。Server はこれらを閉じる責務を持つ。
// Redis は cache.backend=memory のとき nil。
type Dependencies struct {
	Logger *zap.Logger
	Mongo  *mongo.Client
	Redis  *goredis.Client
	SQL    *gorm.DB
}

// Server は HTTP サーバーのライフサイクルを管理し、各ハンドラへ依存注入するコンポジションルート。
type Server struct {
	logger         *zap.Logger
	addr           string
	allowedOrigins []string
	requestTimeout time.Duration
	rateLimit      config.RateLimitConfig

	mongoClient *mongo.Client
	redisClient *goredis.Client
	sqlDB       *gorm.DB

	tokens   *authapp.TokenIssuer
	accounts authapp.AccountService
	surveys  surveyapp.SurveyService
	checks   map[string]healthCheck
	registry *prometheus.Registry
}

// New は Config と接続済みクライアントから、ストア・キャッシュ・サービス・ハンドラを組み立てた Server を返す。
func New(cfg config.Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := &Server{
		logger:         logger,
		addr:           cfg.Addr,
		allowedOrigins: append([]string(nil), cfg.AllowedOrigins...),
		requestTimeout: cfg.RequestTimeout,
		rateLimit:      cfg.RateLimit,
		mongoClient:    deps.Mongo,
		redisClient:    deps.Redis,
		sqlDB:          deps.SQL,
		checks:         map[string]healthCheck{},
		registry:       prometheus.NewRegistry(),
	}

	var backend cache.Cache
	if deps.Redis != nil {
		redisBackend := rediscache.NewCache(deps.Redis)
		backend = redisBackend
		srv.checks["redis"] = redisBackend.Ping
	} else {
		backend = cache.NewMemory()
	}
	readThrough := cache.NewReadThrough(backend, logger.Named("cache"))

	database := deps.Mongo.Database(cfg.Mongo.Database)
	surveyStore := mongodoc.NewSurveyStore(database, cfg.Mongo.SurveyCollection)
	responseStore := mongodoc.NewResponseStore(database, cfg.Mongo.ResponseCollection)
	authStore := sqlstore.NewAuthStore(deps.SQL)

	srv.tokens = authapp.NewTokenIssuer([]byte(cfg.JWT.Secret), cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.TTL)
	authz := authapp.NewAuthorizationService(authStore, surveyStore, readThrough)
	srv.accounts = authapp.NewAccountService(authStore, authz, srv.tokens, readThrough, logger.Named("account"))

	surveyRepo := surveyapp.NewSurveyRepository(surveyStore, authz, readThrough, logger.Named("survey"))
	responseRepo := surveyapp.NewResponseRepository(responseStore, authz, readThrough, logger.Named("response"))
	srv.surveys = surveyapp.NewSurveyService(surveyRepo, responseRepo, authz, readThrough)

	srv.checks["mongo"] = func(ctx context.Context) error {
		return deps.Mongo.Ping(ctx, readpref.Primary())
	}
	srv.checks["mysql"] = func(ctx context.Context) error {
		sqlDB, err := deps.SQL.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}

	srv.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cache.RegisterMetrics(srv.registry)
	return srv
}

// Handler はミドルウェアとルーティングを組み立てた http.Handler を返す。
func (s *Server) Handler() http.Handler {
	metrics := newHTTPMetrics(s.registry)
	limiter := newIPRateLimiter(s.rateLimit.RequestsPerSecond, s.rateLimit.Burst)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(s.logger))
	router.Use(middleware.Recoverer)
	router.Use(metrics.middleware)
	router.Use(withCORS(s.allowedOrigins))

	router.Get("/healthz", healthHandler(s.logger, s.checks))
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	router.Group(func(r chi.Router) {
		r.Use(limiter.middleware(s.logger))

		requireAuth := authMiddleware(s.logger, s.tokens, true)
		optionalAuth := authMiddleware(s.logger, s.tokens, false)

		accounthttp.NewHandler(accounthttp.Config{
			Logger:         s.logger.Named("http.account"),
			Service:        s.accounts,
			RequestTimeout: s.requestTimeout,
		}).Register(r, requireAuth, optionalAuth)

		surveyhttp.NewHandler(surveyhttp.Config{
			Logger:         s.logger.Named("http.survey"),
			Service:        s.surveys,
			RequestTimeout: s.requestTimeout,
		}).Register(r, requireAuth)
	})
	return router
}

// Run はHTTPサーバーを起動し、シグナルを受けるまでブロックする。
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP サーバー起動", zap.String("addr", s.addr))
		errChan <- httpServer.ListenAndServe()
	}()

	return waitForShutdown(httpServer, errChan, s)
}

// shutdown は各クライアントをタイムアウト付きで閉じる。
func (s *Server) shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if s.mongoClient != nil {
		if err := s.mongoClient.Disconnect(shutdownCtx); err != nil {
			s.logger.Warn("MongoDB 切断時にエラー", zap.Error(err))
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Warn("Redis 切断時にエラー", zap.Error(err))
		}
	}
	if s.sqlDB != nil {
		if sqlDB, err := s.sqlDB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				s.logger.Warn("MySQL 切断時にエラー", zap.Error(err))
			}
		}
	}
	_ = s.logger.Sync()
}

// waitForShutdown は ListenAndServe の終了と OS シグナルを監視し、graceful shutdown を実現する。
func waitForShutdown(httpServer *http.Server, errChan <-chan error, srv *Server) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.logger.Error("サーバーが異常終了", zap.Error(err))
			runErr = err
		}
	case sig := <-sigChan:
		srv.logger.Info("シグナルを受信。サーバー停止処理を開始します。", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			srv.logger.Warn("サーバー停止時にエラー", zap.Error(err))
		}
	}

	srv.shutdown(context.Background())
	return runErr
}
