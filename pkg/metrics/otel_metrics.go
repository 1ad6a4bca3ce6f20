package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics 考勤与调度相关的 OpenTelemetry 指标集合
type OTelMetrics struct {
	// 考勤
	CheckInTotal      metric.Int64Counter
	CheckInDelay      metric.Float64Histogram
	AutoAbsentTotal   metric.Int64Counter
	LeaveDecidedTotal metric.Int64Counter

	// 任务调度
	ReassignTotal   metric.Int64Counter
	SweepDuration   metric.Float64Histogram
	SweepItemsTotal metric.Int64Counter

	// 通知
	NotifyTotal        metric.Int64Counter
	BreakerTransitions metric.Int64Counter
}

var (
	// 全局指标实例，未初始化时所有 Record* 为空操作
	metrics *OTelMetrics
	meter   = otel.Meter("staffops")
)

// InitMetrics 初始化 OpenTelemetry 指标
func InitMetrics() error {
	m := &OTelMetrics{}
	var err error

	if m.CheckInTotal, err = meter.Int64Counter(
		"attendance_checkin_total",
		metric.WithDescription("Check-in attempts by resulting status"),
		metric.WithUnit("{checkin}"),
	); err != nil {
		return err
	}

	if m.CheckInDelay, err = meter.Float64Histogram(
		"attendance_checkin_delay_minutes",
		metric.WithDescription("Minutes between shift start and check-in"),
		metric.WithUnit("min"),
		metric.WithExplicitBucketBoundaries(0, 5, 10, 15, 30, 60, 120, 240),
	); err != nil {
		return err
	}

	if m.AutoAbsentTotal, err = meter.Int64Counter(
		"attendance_auto_absent_total",
		metric.WithDescription("Absent records created by the sweep"),
		metric.WithUnit("{record}"),
	); err != nil {
		return err
	}

	if m.LeaveDecidedTotal, err = meter.Int64Counter(
		"leave_decided_total",
		metric.WithDescription("Leave requests approved or rejected"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}

	if m.ReassignTotal, err = meter.Int64Counter(
		"task_reassign_total",
		metric.WithDescription("Task reassignment attempts by reason and outcome"),
		metric.WithUnit("{task}"),
	); err != nil {
		return err
	}

	if m.SweepDuration, err = meter.Float64Histogram(
		"sweep_duration_seconds",
		metric.WithDescription("Duration of a sweep pass"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	if m.SweepItemsTotal, err = meter.Int64Counter(
		"sweep_items_total",
		metric.WithDescription("Items handled by sweeps by outcome"),
		metric.WithUnit("{item}"),
	); err != nil {
		return err
	}

	if m.NotifyTotal, err = meter.Int64Counter(
		"notify_total",
		metric.WithDescription("Outbound notifications by event and outcome"),
		metric.WithUnit("{event}"),
	); err != nil {
		return err
	}

	if m.BreakerTransitions, err = meter.Int64Counter(
		"circuit_breaker_transitions_total",
		metric.WithDescription("Circuit breaker state changes"),
		metric.WithUnit("{transition}"),
	); err != nil {
		return err
	}

	metrics = m
	return nil
}

// GetMetrics 获取全局指标实例
func GetMetrics() *OTelMetrics {
	return metrics
}

// RecordCheckIn 记录一次打卡及其迟到分钟数
func RecordCheckIn(ctx context.Context, status string, delayMinutes int) {
	if metrics == nil {
		return
	}
	metrics.CheckInTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	metrics.CheckInDelay.Record(ctx, float64(delayMinutes))
}

func RecordAutoAbsent(ctx context.Context, count int) {
	if metrics == nil || count == 0 {
		return
	}
	metrics.AutoAbsentTotal.Add(ctx, int64(count))
}

func RecordLeaveDecided(ctx context.Context, approved bool) {
	if metrics == nil {
		return
	}
	decision := "rejected"
	if approved {
		decision = "approved"
	}
	metrics.LeaveDecidedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
}

// RecordReassign outcome: success / no_candidates / conflict / error
func RecordReassign(ctx context.Context, reason, outcome string) {
	if metrics == nil {
		return
	}
	metrics.ReassignTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
		attribute.String("outcome", outcome),
	))
}

// RecordSweep kind: attendance / tasks
func RecordSweep(ctx context.Context, kind string, seconds float64, succeeded, failed int) {
	if metrics == nil {
		return
	}
	kindAttr := attribute.String("kind", kind)
	metrics.SweepDuration.Record(ctx, seconds, metric.WithAttributes(kindAttr))
	metrics.SweepItemsTotal.Add(ctx, int64(succeeded), metric.WithAttributes(kindAttr, attribute.String("outcome", "success")))
	metrics.SweepItemsTotal.Add(ctx, int64(failed), metric.WithAttributes(kindAttr, attribute.String("outcome", "failed")))
}

func RecordNotify(ctx context.Context, event string, ok bool) {
	if metrics == nil {
		return
	}
	outcome := "published"
	if !ok {
		outcome = "dropped"
	}
	metrics.NotifyTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("outcome", outcome),
	))
}

func RecordBreakerTransition(ctx context.Context, name, to string) {
	if metrics == nil {
		return
	}
	metrics.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker", name),
		attribute.String("to", to),
	))
}
