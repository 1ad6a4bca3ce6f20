package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// isUniqueViolation 开启 TranslateError 时驱动会返回 gorm.ErrDuplicatedKey，
// 未开启时按 postgres / sqlite 的报错文本兜底
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
