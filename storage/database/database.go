package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"

	"StaffOps/config"
	dbotel "StaffOps/pkg/database"
	"StaffOps/pkg/logger"
)

var (
	db     *gorm.DB
	dbOnce sync.Once
	dbErr  error
)

type pool struct {
	maxIdle     int
	maxOpen     int
	maxIdleTime time.Duration
	maxLifetime time.Duration
}

func poolFromConfig(cfg *config.Config) pool {
	return pool{
		maxIdle:     cfg.PostgreSQLMaxIdle,
		maxOpen:     cfg.PostgreSQLMaxOpen,
		maxIdleTime: 10 * time.Minute,
		maxLifetime: 2 * time.Hour,
	}
}

// Init 连接主库，按需挂载只读副本与追踪插件，最后执行迁移
func Init() error {
	dbOnce.Do(func() {
		cfg := config.Cfg
		conn, err := open(&cfg)
		if err != nil {
			dbErr = err
			logger.Logger.Error("Failed to initialize database", zap.Error(err))
			return
		}
		db = conn

		if cfg.AutoMigrate {
			if err := Migrate(); err != nil {
				dbErr = err
				return
			}
		}
		logger.Logger.Info("Database initialized",
			zap.String("host", cfg.PostgreSQLHost),
			zap.String("database", cfg.PostgreSQLDatabase),
			zap.Int("replicas", len(cfg.ReplicaDSNs())),
		)
	})
	return dbErr
}

func open(cfg *config.Config) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger:                                   newGormLogger(cfg.LoggerLevel),
		DisableForeignKeyConstraintWhenMigrating: true,
		PrepareStmt:                              true,
		SkipDefaultTransaction:                   true,
		TranslateError:                           true, // 唯一键冲突翻译为 gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	p := poolFromConfig(cfg)

	// 读多写少的名册与列表查询走副本，仓储层对需要读己之写的查询显式指定 dbresolver.Write
	if replicas := cfg.ReplicaDSNs(); len(replicas) > 0 {
		dialectors := make([]gorm.Dialector, 0, len(replicas))
		for _, dsn := range replicas {
			dialectors = append(dialectors, postgres.Open(dsn))
		}
		resolver := dbresolver.Register(dbresolver.Config{
			Replicas: dialectors,
			Policy:   dbresolver.RandomPolicy{},
		}).
			SetMaxIdleConns(p.maxIdle).
			SetMaxOpenConns(p.maxOpen).
			SetConnMaxIdleTime(p.maxIdleTime).
			SetConnMaxLifetime(p.maxLifetime)
		if err := conn.Use(resolver); err != nil {
			return nil, fmt.Errorf("failed to register read replicas: %w", err)
		}
	}

	if cfg.OTelEnabled {
		if err := dbotel.Instrument(conn, cfg.ServiceName); err != nil {
			logger.Logger.Warn("Failed to register database telemetry plugin", zap.Error(err))
		}
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(p.maxIdle)
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetConnMaxIdleTime(p.maxIdleTime)
	sqlDB.SetConnMaxLifetime(p.maxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

func DB() *gorm.DB {
	return db
}

// Ping 供健康检查使用
func Ping(ctx context.Context) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Close(ctx context.Context) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- sqlDB.Close() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
