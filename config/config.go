package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	// 服务配置
	ServerPort  string `env:"SERVER_PORT" envDefault:"8888"`
	ServerHost  string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName string `env:"SERVICE_NAME" envDefault:"staffops"`

	// PostgreSQL 配置
	PostgreSQLHost     string `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort     string `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword string `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase string `env:"POSTGRESQL_DATABASE" envDefault:"staffops"`
	PostgreSQLSchema   string `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode  string `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle  int    `env:"POSTGRESQL_MAX_IDLE" envDefault:"30"`
	PostgreSQLMaxOpen  int    `env:"POSTGRESQL_MAX_OPEN" envDefault:"200"`
	AutoMigrate        bool   `env:"AUTO_MIGRATE" envDefault:"true"`
	// 只读副本，分号分隔的完整 DSN，留空则读写都走主库
	PostgreSQLReplicaDSNs []string `env:"POSTGRESQL_REPLICA_DSNS" envSeparator:";"`

	// Redis 配置
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"staffops"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`

	// RabbitMQ 配置
	RabbitMQAddr     string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost    string `env:"RABBITMQ_VHOST" envDefault:"/"`

	// JWT 配置
	JWTSecret        string `env:"JWT_SECRET"` // 必填，用于签名 JWT
	JWTExpireMinutes int    `env:"JWT_EXPIRE_MINUTES" envDefault:"30"`
	JWTRefreshDays   int    `env:"JWT_REFRESH_DAYS" envDefault:"7"`

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 链路追踪 / 指标
	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	// true 使用 hertz obs-opentelemetry tracer，false 使用自带的 HTTP 中间件
	OTelHertzTracer bool    `env:"OTEL_HERTZ_TRACER" envDefault:"true"`
	OTelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"0.1"`

	// 管理后台来源，逗号分隔；为空时回显任意 Origin
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// 速率限制配置, 配置在中间件内
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"100"` // 每秒请求数

	// 考勤策略
	DefaultShiftStart        string `env:"DEFAULT_SHIFT_START" envDefault:"09:00"`
	DefaultShiftEnd          string `env:"DEFAULT_SHIFT_END" envDefault:"17:00"`
	AttendanceGraceMinutes   int    `env:"ATTENDANCE_GRACE_MINUTES" envDefault:"10"`
	AttendanceAbsentMinutes  int    `env:"ATTENDANCE_ABSENT_THRESHOLD_MINUTES" envDefault:"120"`
	Timezone                 string `env:"TIMEZONE" envDefault:"Local"`
	MaxOpenTasksPerWorker    int    `env:"MAX_OPEN_TASKS_PER_WORKER" envDefault:"0"` // 0 表示不限制
	LeaveUrgentThresholdDays int    `env:"LEAVE_URGENT_THRESHOLD_DAYS" envDefault:"2"`

	// 调度配置
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
	SweepLockTTL  time.Duration `env:"SWEEP_LOCK_TTL" envDefault:"4m"`
	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"3s"`
}

// Load 读取 .env 与环境变量，填充 Cfg
func Load() error {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	Cfg = cfg
	return nil
}

// MustLoad 供 cmd 入口使用，失败直接退出
func MustLoad() {
	if err := Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if _, err := time.Parse("15:04", c.DefaultShiftStart); err != nil {
		return fmt.Errorf("DEFAULT_SHIFT_START must be HH:MM: %w", err)
	}
	if _, err := time.Parse("15:04", c.DefaultShiftEnd); err != nil {
		return fmt.Errorf("DEFAULT_SHIFT_END must be HH:MM: %w", err)
	}

	if c.AttendanceGraceMinutes < 0 || c.AttendanceAbsentMinutes <= c.AttendanceGraceMinutes {
		return fmt.Errorf("ATTENDANCE_ABSENT_THRESHOLD_MINUTES must be greater than ATTENDANCE_GRACE_MINUTES")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}

	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATIO must be within [0, 1], got %v", c.OTelSampleRatio)
	}

	if c.SweepLockTTL >= c.SweepInterval {
		log.Printf("WARN: SWEEP_LOCK_TTL (%s) >= SWEEP_INTERVAL (%s), consecutive sweeps may be skipped", c.SweepLockTTL, c.SweepInterval)
	}

	return nil
}

func (c *Config) GetDSN() string {
	return "host=" + c.PostgreSQLHost +
		" port=" + c.PostgreSQLPort +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

// ReplicaDSNs 过滤掉空项
func (c *Config) ReplicaDSNs() []string {
	dsns := make([]string, 0, len(c.PostgreSQLReplicaDSNs))
	for _, dsn := range c.PostgreSQLReplicaDSNs {
		if strings.TrimSpace(dsn) != "" {
			dsns = append(dsns, dsn)
		}
	}
	return dsns
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

// Location 返回业务时区，解析失败时回落到本地时区
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
