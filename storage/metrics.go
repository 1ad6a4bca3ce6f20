package storage

import (
	"go.opentelemetry.io/otel/metric"

	dbotel "StaffOps/pkg/database"
	mqotel "StaffOps/pkg/mq"
	redisotel "StaffOps/pkg/redis"
)

// InitMetrics 注册三类存储的指标，需在 otel 初始化之后调用
func InitMetrics(meter metric.Meter) error {
	if err := dbotel.InitDatabaseMetrics(meter); err != nil {
		return err
	}
	if err := redisotel.InitRedisMetrics(meter); err != nil {
		return err
	}
	return mqotel.InitMQMetrics(meter)
}
