package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"codeduel/internal/common/cache"
	"codeduel/internal/common/db"
	"codeduel/internal/common/mq"
	"codeduel/internal/common/storage"
	gatewaymw "codeduel/internal/gateway/middleware"
	"codeduel/internal/judge/executor"
	"codeduel/internal/judge/testcase"
	matchService "codeduel/internal/match/service"
	"codeduel/internal/tournament/bracket"
	"codeduel/internal/tournament/controller"
	"codeduel/pkg/utils/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 120 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	envClientID     = "CLIENT_ID"
	envClientSecret = "CLIENT_SECRET"
	envJWTSecret    = "JWT_SECRET"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string                    `yaml:"addr"`
	ReadTimeout  time.Duration             `yaml:"readTimeout"`
	WriteTimeout time.Duration             `yaml:"writeTimeout"`
	IdleTimeout  time.Duration             `yaml:"idleTimeout"`
	CORS         gatewaymw.CORSConfig      `yaml:"cors"`
	RateLimit    gatewaymw.RateLimitPolicy `yaml:"rateLimit"`
}

// TestCaseConfig holds test case provider settings.
type TestCaseConfig struct {
	testcase.Config `yaml:",inline"`
	CacheTTL        time.Duration `yaml:"cacheTTL"`
}

// JudgeConfig holds judging pipeline settings.
type JudgeConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// AutoCloseConfig holds round sweeper settings.
type AutoCloseConfig struct {
	After     time.Duration `yaml:"after"`
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batchSize"`
}

// TournamentConfig holds room state machine settings.
type TournamentConfig struct {
	Problems        []string               `yaml:"problems"`
	LockTTL         time.Duration          `yaml:"lockTTL"`
	LockWait        time.Duration          `yaml:"lockWait"`
	Timeout         time.Duration          `yaml:"timeout"`
	RoomCacheTTL    time.Duration          `yaml:"roomCacheTTL"`
	RoomCacheMiss   time.Duration          `yaml:"roomCacheMissTTL"`
	AutoClose       AutoCloseConfig        `yaml:"autoClose"`
	Watch           controller.WatchConfig `yaml:"watch"`
	RoomEventsTopic string                 `yaml:"roomEventsTopic"`
}

// SubmitConfig holds submission settings.
type SubmitConfig struct {
	MaxCodeBytes     int                          `yaml:"maxCodeBytes"`
	RateLimit        matchService.RateLimitConfig `yaml:"rateLimit"`
	Timeouts         matchService.TimeoutConfig   `yaml:"timeouts"`
	ArchivePrefix    string                       `yaml:"archivePrefix"`
	SubmissionsTopic string                       `yaml:"submissionsTopic"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	Mode      string `yaml:"mode"`
	JWTSecret string `yaml:"jwtSecret"`
	JWTIssuer string `yaml:"jwtIssuer"`
}

// AppConfig holds tournament-service configuration.
type AppConfig struct {
	Server     ServerConfig        `yaml:"server"`
	Logger     logger.Config       `yaml:"logger"`
	Database   db.MySQLConfig      `yaml:"database"`
	Redis      cache.RedisConfig   `yaml:"redis"`
	Kafka      mq.KafkaConfig      `yaml:"kafka"`
	MinIO      storage.MinIOConfig `yaml:"minio"`
	Executor   executor.Config     `yaml:"executor"`
	TestCases  TestCaseConfig      `yaml:"testcases"`
	Judge      JudgeConfig         `yaml:"judge"`
	Tournament TournamentConfig    `yaml:"tournament"`
	Submit     SubmitConfig        `yaml:"submit"`
	Auth       AuthConfig          `yaml:"auth"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// loadEnv reads envFile into the process environment. A missing file is not an error.
func loadEnv(envFile string) error {
	if envFile == "" {
		return nil
	}
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("load env file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(envClientID)); v != "" {
		cfg.Executor.ClientID = v
	}
	if v := strings.TrimSpace(os.Getenv(envClientSecret)); v != "" {
		cfg.Executor.ClientSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(envJWTSecret)); v != "" {
		cfg.Auth.JWTSecret = v
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Server.RateLimit.Window == 0 {
		cfg.Server.RateLimit.Window = time.Minute
	}

	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "json"
	}
	if cfg.Logger.OutputPath == "" {
		cfg.Logger.OutputPath = "stdout"
	}
	if cfg.Logger.ErrorPath == "" {
		cfg.Logger.ErrorPath = "stderr"
	}

	if cfg.Executor.Endpoint == "" {
		cfg.Executor.Endpoint = executor.DefaultEndpoint
	}
	if cfg.Executor.Timeout == 0 {
		cfg.Executor.Timeout = 15 * time.Second
	}
	if cfg.TestCases.BaseURL == "" {
		cfg.TestCases.BaseURL = testcase.DefaultBaseURL
	}
	if cfg.TestCases.Timeout == 0 {
		cfg.TestCases.Timeout = 10 * time.Second
	}
	if cfg.TestCases.CacheTTL == 0 {
		cfg.TestCases.CacheTTL = 24 * time.Hour
	}
	if cfg.Judge.Concurrency <= 0 {
		cfg.Judge.Concurrency = 1
	}

	if len(cfg.Tournament.Problems) == 0 {
		cfg.Tournament.Problems = append([]string(nil), bracket.DefaultProblems...)
	}
	if cfg.Tournament.LockTTL == 0 {
		cfg.Tournament.LockTTL = 30 * time.Second
	}
	if cfg.Tournament.LockWait == 0 {
		cfg.Tournament.LockWait = 5 * time.Second
	}
	if cfg.Tournament.Timeout == 0 {
		cfg.Tournament.Timeout = 10 * time.Second
	}
	if cfg.Tournament.RoomCacheTTL == 0 {
		cfg.Tournament.RoomCacheTTL = 10 * time.Minute
	}
	if cfg.Tournament.RoomCacheMiss == 0 {
		cfg.Tournament.RoomCacheMiss = 30 * time.Second
	}
	if cfg.Tournament.AutoClose.Interval == 0 {
		cfg.Tournament.AutoClose.Interval = time.Minute
	}
	if cfg.Tournament.RoomEventsTopic == "" {
		cfg.Tournament.RoomEventsTopic = "tournament.room.events"
	}

	if cfg.Submit.MaxCodeBytes == 0 {
		cfg.Submit.MaxCodeBytes = 64 * 1024
	}
	if cfg.Submit.RateLimit.Window == 0 {
		cfg.Submit.RateLimit.Window = time.Minute
	}
	if cfg.Submit.Timeouts.DB == 0 {
		cfg.Submit.Timeouts.DB = 3 * time.Second
	}
	if cfg.Submit.Timeouts.Storage == 0 {
		cfg.Submit.Timeouts.Storage = 5 * time.Second
	}
	if cfg.Submit.Timeouts.MQ == 0 {
		cfg.Submit.Timeouts.MQ = 3 * time.Second
	}
	if cfg.Submit.ArchivePrefix == "" {
		cfg.Submit.ArchivePrefix = "submissions"
	}
	if cfg.Submit.SubmissionsTopic == "" {
		cfg.Submit.SubmissionsTopic = "tournament.submission.events"
	}

	cfg.Auth.Mode = strings.ToLower(strings.TrimSpace(cfg.Auth.Mode))
	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = gatewaymw.ModePublic
	}
}

func validate(cfg *AppConfig) error {
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	switch cfg.Auth.Mode {
	case gatewaymw.ModePublic:
	case gatewaymw.ModeJWT:
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwtSecret or %s is required in jwt mode", envJWTSecret)
		}
	default:
		return fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
	return nil
}
