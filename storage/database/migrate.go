package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"StaffOps/internal/model"
	"StaffOps/pkg/logger"
)

// 同一员工同一天只能有一条考勤，签到并发与请假幂等都依赖它
var requiredUniqueIndexes = []struct {
	model interface{}
	name  string
}{
	{&model.AttendanceRecord{}, "idx_attendance_worker_date"},
}

// Migrate 对全局连接执行迁移
func Migrate() error {
	if db == nil {
		return gorm.ErrInvalidDB
	}
	return MigrateDB(db)
}

// MigrateDB 建表并校验唯一索引存在；测试对 sqlite 连接复用同一逻辑
func MigrateDB(conn *gorm.DB) error {
	logger.Logger.Info("Starting database migration", zap.Int("tables", len(model.Tables())))

	if err := conn.AutoMigrate(model.Tables()...); err != nil {
		logger.Logger.Error("Database migration failed", zap.Error(err))
		return fmt.Errorf("failed to migrate tables: %w", err)
	}

	m := conn.Migrator()
	for _, idx := range requiredUniqueIndexes {
		if !m.HasIndex(idx.model, idx.name) {
			return fmt.Errorf("unique index %s missing after migration", idx.name)
		}
	}

	logger.Logger.Info("Database migration completed")
	return nil
}
