package model

import (
	"time"
)

// BaseModel 公共字段；时间由 GORM 自动维护，不依赖数据库默认值，便于 sqlite 测试
type BaseModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// DateLayout 日历日期统一以字符串存储，避免时区把日期推到前一天
const DateLayout = "2006-01-02"

// Tables 需要迁移的全部模型
func Tables() []interface{} {
	return []interface{}{
		&WorkerProfile{},
		&AttendanceRecord{},
		&Task{},
		&TaskReassignment{},
	}
}
