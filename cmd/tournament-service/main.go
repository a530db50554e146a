package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeduel/internal/common/cache"
	"codeduel/internal/common/db"
	commonmw "codeduel/internal/common/http/middleware"
	"codeduel/internal/common/mq"
	"codeduel/internal/common/storage"
	gatewaymw "codeduel/internal/gateway/middleware"
	gatewayRepo "codeduel/internal/gateway/repository"
	gatewayService "codeduel/internal/gateway/service"
	"codeduel/internal/judge/executor"
	judgeService "codeduel/internal/judge/service"
	"codeduel/internal/judge/testcase"
	matchController "codeduel/internal/match/controller"
	matchService "codeduel/internal/match/service"
	tournamentController "codeduel/internal/tournament/controller"
	"codeduel/internal/tournament/repository"
	tournamentService "codeduel/internal/tournament/service"
	"codeduel/pkg/utils/logger"
	"codeduel/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultConfigPath = "configs/tournament_service.yaml"
	defaultEnvPath    = ".env"
	serviceName       = "codeduel-tournament-service"
	redisTimeout      = 2 * time.Second
)

type services struct {
	tournament *tournamentService.Service
	match      *matchService.MatchService
	auth       *gatewayService.AuthService
	rateLimit  *gatewayService.RateLimitService
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	envPath := flag.String("env", defaultEnvPath, "Path to .env file")
	flag.Parse()

	if err := loadEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "load env failed: %v\n", err)
		return
	}
	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	var producer mq.Producer = mq.NopProducer{}
	if len(appCfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := mq.NewKafkaProducer(appCfg.Kafka)
		if err != nil {
			logger.Error(context.Background(), "init kafka failed", zap.Error(err))
			return
		}
		producer = kafkaProducer
	} else {
		logger.Info(context.Background(), "kafka brokers not configured, events disabled")
	}
	defer func() {
		_ = producer.Close()
	}()

	var archiver *matchService.SourceArchiver
	if appCfg.MinIO.Endpoint != "" {
		objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
		if err != nil {
			logger.Error(context.Background(), "init minio failed", zap.Error(err))
			return
		}
		archiver, err = matchService.NewSourceArchiver(objStorage, appCfg.MinIO.Bucket, appCfg.Submit.ArchivePrefix)
		if err != nil {
			logger.Error(context.Background(), "init source archiver failed", zap.Error(err))
			return
		}
	} else {
		logger.Info(context.Background(), "minio endpoint not configured, source archive disabled")
	}

	publisher := repository.NewMQEventPublisher(producer, appCfg.Tournament.RoomEventsTopic, appCfg.Submit.SubmissionsTopic)
	roomRepo := repository.NewRoomRepositoryWithTTL(mysqlDB, redisCache, appCfg.Tournament.RoomCacheTTL, appCfg.Tournament.RoomCacheMiss)
	playerRepo := repository.NewPlayerRepository(mysqlDB)

	svcs, err := buildServices(appCfg, mysqlDB, redisCache, roomRepo, playerRepo, publisher, archiver)
	if err != nil {
		logger.Error(context.Background(), "init services failed", zap.Error(err))
		return
	}

	sweeper, err := tournamentService.NewRoundSweeper(svcs.tournament, tournamentService.SweeperConfig{
		RoundDuration: appCfg.Tournament.AutoClose.After,
		Interval:      appCfg.Tournament.AutoClose.Interval,
		BatchSize:     appCfg.Tournament.AutoClose.BatchSize,
	})
	if err != nil {
		logger.Error(context.Background(), "init round sweeper failed", zap.Error(err))
		return
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sweeper.Start(shutdownCtx); err != nil {
		logger.Error(context.Background(), "start round sweeper failed", zap.Error(err))
		return
	}
	defer func() {
		_ = sweeper.Stop()
	}()

	httpServer := buildHTTPServer(appCfg, svcs)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "tournament http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

func buildServices(
	appCfg *AppConfig,
	database db.Database,
	redisCache cache.Cache,
	roomRepo repository.RoomRepository,
	playerRepo repository.PlayerRepository,
	publisher repository.EventPublisher,
	archiver *matchService.SourceArchiver,
) (*services, error) {
	execClient := executor.NewClient(appCfg.Executor)
	provider := testcase.NewCachedProvider(testcase.NewHTTPProvider(appCfg.TestCases.Config), redisCache, appCfg.TestCases.CacheTTL)
	judge, err := judgeService.NewService(judgeService.Config{
		Provider:    provider,
		Executor:    execClient,
		Concurrency: appCfg.Judge.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("init judge service failed: %w", err)
	}

	tournament, err := tournamentService.NewService(tournamentService.Config{
		Database:   database,
		RoomRepo:   roomRepo,
		PlayerRepo: playerRepo,
		Locker: tournamentService.ChainLocker{
			tournamentService.NewLocalRoomLocker(),
			tournamentService.NewRedisRoomLocker(redisCache, appCfg.Tournament.LockTTL),
		},
		LockWait:  appCfg.Tournament.LockWait,
		Publisher: publisher,
		Problems:  appCfg.Tournament.Problems,
		Timeout:   appCfg.Tournament.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init tournament service failed: %w", err)
	}

	rateLimit := gatewayService.NewRateLimitService(redisCache, appCfg.Submit.RateLimit.Window, redisTimeout)
	blacklist := gatewayRepo.NewTokenBlacklistRepository(redisCache, redisTimeout)
	auth := gatewayService.NewAuthService(appCfg.Auth.JWTSecret, appCfg.Auth.JWTIssuer, blacklist)

	match, err := matchService.NewMatchService(matchService.Config{
		Judge:        judge,
		Executor:     execClient,
		PlayerRepo:   playerRepo,
		Archiver:     archiver,
		Publisher:    publisher,
		Limiter:      rateLimit,
		MaxCodeBytes: appCfg.Submit.MaxCodeBytes,
		RateLimit:    appCfg.Submit.RateLimit,
		Timeouts:     appCfg.Submit.Timeouts,
	})
	if err != nil {
		return nil, fmt.Errorf("init match service failed: %w", err)
	}

	return &services{tournament: tournament, match: match, auth: auth, rateLimit: rateLimit}, nil
}

func buildHTTPServer(appCfg *AppConfig, svcs *services) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger())
	router.Use(gatewaymw.CORSMiddleware(appCfg.Server.CORS))

	router.GET("/", func(c *gin.Context) {
		response.Success(c, gin.H{
			"service": serviceName,
			"time":    time.Now().UTC().Format(time.RFC3339),
			"routes":  []string{"/api/v1/tournament", "/api/v1/match"},
		})
	})

	authPolicy := gatewaymw.AuthPolicy{Mode: appCfg.Auth.Mode}
	ipLimit := appCfg.Server.RateLimit

	watch := appCfg.Tournament.Watch
	if len(watch.AllowedOrigins) == 0 {
		watch.AllowedOrigins = appCfg.Server.CORS.AllowedOrigins
	}
	tournamentHandler := tournamentController.NewTournamentController(svcs.tournament, watch)
	tournamentAPI := router.Group("/api/v1/tournament")
	tournamentAPI.Use(commonmw.RoomContextMiddleware("roomId"))
	tournamentAPI.Use(gatewaymw.RateLimitMiddleware(svcs.rateLimit, "tournament", ipLimit))
	// Browsers cannot set headers on websocket upgrades, so the feed stays outside auth.
	tournamentAPI.GET("/watch", tournamentHandler.Watch)
	tournamentAPI.Use(gatewaymw.AuthMiddleware(svcs.auth, authPolicy))
	tournamentAPI.POST("/start", tournamentHandler.Start)
	tournamentAPI.POST("/round", tournamentHandler.StartRound)
	tournamentAPI.POST("/calculate", tournamentHandler.Calculate)
	tournamentAPI.POST("/declare", tournamentHandler.Declare)
	tournamentAPI.POST("/leave", tournamentHandler.Leave)
	tournamentAPI.POST("/end", tournamentHandler.End)
	tournamentAPI.GET("/details", tournamentHandler.Details)
	tournamentAPI.GET("/time", tournamentHandler.Time)

	matchHandler := matchController.NewMatchController(svcs.match)
	matchAPI := router.Group("/api/v1/match")
	matchAPI.Use(gatewaymw.RateLimitMiddleware(svcs.rateLimit, "match", ipLimit))
	matchAPI.Use(gatewaymw.AuthMiddleware(svcs.auth, authPolicy))
	matchAPI.POST("/submit", matchHandler.Submit)
	matchAPI.GET("/problem", matchHandler.Problem)
	matchAPI.GET("/executor/health", matchHandler.ExecutorHealth)

	return &http.Server{
		Addr:         appCfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  appCfg.Server.ReadTimeout,
		WriteTimeout: appCfg.Server.WriteTimeout,
		IdleTimeout:  appCfg.Server.IdleTimeout,
	}
}
