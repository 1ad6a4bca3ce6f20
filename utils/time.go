package utils

import (
	"fmt"
	"time"

	"StaffOps/internal/model"
)

// ParseClock 解析 "HH:MM"，返回当天的分钟数
func ParseClock(clock string) (int, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q, want HH:MM: %w", clock, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// MinuteOfDay 忽略秒，只取时分
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// DateString 以 t 所在时区的日历日期格式化
func DateString(t time.Time) string {
	return t.Format(model.DateLayout)
}

// ParseDate 解析 "2006-01-02"，返回 loc 时区当天 00:00
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(model.DateLayout, date, loc)
}

// ValidMonth 校验 "2006-01"
func ValidMonth(month string) bool {
	_, err := time.Parse("2006-01", month)
	return err == nil
}

// DaysBetween 两个日历日期相差的天数，to 早于 from 时为负
func DaysBetween(from, to string) (int, error) {
	f, err := time.Parse(model.DateLayout, from)
	if err != nil {
		return 0, err
	}
	t, err := time.Parse(model.DateLayout, to)
	if err != nil {
		return 0, err
	}
	return int(t.Sub(f).Hours() / 24), nil
}

// FormatDelay 120 分钟以上的迟到说明，例如 "2h 5m"
func FormatDelay(minutes int) string {
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
