package service

import (
	"context"
	"time"

	"StaffOps/config"
	"StaffOps/internal/model"
)

// AttendanceStore 考勤存储。
// 未找到返回 errors.AttendanceNotFound；(worker_id, date) 重复返回 errors.AttendanceConflict。
// Record* / ApproveLeave / DeletePendingLeave 为条件更新，条件不满足时返回对应的业务错误。
type AttendanceStore interface {
	Get(ctx context.Context, id int64) (*model.AttendanceRecord, error)
	GetByWorkerDate(ctx context.Context, workerID, date string) (*model.AttendanceRecord, error)
	Create(ctx context.Context, rec *model.AttendanceRecord) error
	Save(ctx context.Context, rec *model.AttendanceRecord) error
	// RecordCheckIn 仅当记录尚未上班打卡时写入，否则 errors.AlreadyCheckedIn
	RecordCheckIn(ctx context.Context, rec *model.AttendanceRecord) error
	// RecordCheckOut 仅当记录尚未下班打卡时写入，否则 errors.AlreadyCheckedOut
	RecordCheckOut(ctx context.Context, rec *model.AttendanceRecord) error
	// ApproveLeave 仅当审批状态仍为 pending 时写入，否则 errors.LeaveAlreadyDecided
	ApproveLeave(ctx context.Context, rec *model.AttendanceRecord) error
	// DeletePendingLeave 仅删除仍为 pending 的请假记录，否则 errors.LeaveAlreadyDecided
	DeletePendingLeave(ctx context.Context, id int64) error
	ListByDate(ctx context.Context, date string) ([]model.AttendanceRecord, error)
	// ListByWorker 按日期倒序分页；month 为空表示不过滤
	ListByWorker(ctx context.Context, workerID, month string, offset, limit int) ([]model.AttendanceRecord, int64, error)
	ListPendingLeaves(ctx context.Context) ([]model.AttendanceRecord, error)
}

// TaskStore 任务存储。未找到返回 errors.TaskNotFound。
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	// Get 预加载改派历史
	Get(ctx context.Context, id int64) (*model.Task, error)
	ListByDate(ctx context.Context, date string) ([]model.Task, error)
	ListByWorkerDate(ctx context.Context, workerID, date string) ([]model.Task, error)
	// ListSweepable status=pending 且从未改派过的任务
	ListSweepable(ctx context.Context, date string) ([]model.Task, error)
	CountOpen(ctx context.Context, workerID, date string) (int, error)
	// Reassign 仅当任务仍可改派且仍指派给 entry.FromUser 时生效，并在同一事务里追加历史；
	// 否则返回 errors.TaskConcurrentUpdate
	Reassign(ctx context.Context, entry model.TaskReassignment) error
	// UpdateStatus 仅当当前状态仍为 from 时写入 status / completed_at / notes，否则 errors.TaskConcurrentUpdate
	UpdateStatus(ctx context.Context, task *model.Task, from model.TaskStatus) error
	// UpdateDetails 只写 TaskDetails 中的字段，且仅当任务仍未结束，否则 errors.TaskConcurrentUpdate
	UpdateDetails(ctx context.Context, task *model.Task) error
	// SetRating 仅对 completed 任务生效
	SetRating(ctx context.Context, id int64, rating int) error
	// Delete 软删除，之后的查询与工作量统计都不再包含该任务；不存在返回 errors.TaskNotFound
	Delete(ctx context.Context, id int64) error
	// List 按日期倒序、优先级、创建时间倒序分页
	List(ctx context.Context, filter model.TaskFilter, offset, limit int) ([]model.Task, int64, error)
}

// WorkerDirectory 员工档案，只读。未找到返回 errors.WorkerNotFound。
type WorkerDirectory interface {
	GetProfile(ctx context.Context, workerID string) (*model.WorkerProfile, error)
	// ListVerified 已认证、在职的普通员工，自动缺勤扫描与改派候选人的范围
	ListVerified(ctx context.Context) ([]model.WorkerProfile, error)
}

// Notifier 对外通知，尽力而为：不返回错误，不阻塞调用方
type Notifier interface {
	Notify(ctx context.Context, event model.EventType, workerID string, payload map[string]interface{})
}

// NopNotifier 丢弃所有事件
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, model.EventType, string, map[string]interface{}) {}

// Policy 考勤与调度策略
type Policy struct {
	Location        *time.Location
	DefaultStart    string
	DefaultEnd      string
	GraceMinutes    int
	AbsentMinutes   int
	MaxOpenTasks    int // 0 表示不限制
	UrgentLeaveDays int
}

func DefaultPolicy() Policy {
	return Policy{
		Location:        time.Local,
		DefaultStart:    "09:00",
		DefaultEnd:      "17:00",
		GraceMinutes:    10,
		AbsentMinutes:   120,
		UrgentLeaveDays: 2,
	}
}

func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		Location:        cfg.Location(),
		DefaultStart:    cfg.DefaultShiftStart,
		DefaultEnd:      cfg.DefaultShiftEnd,
		GraceMinutes:    cfg.AttendanceGraceMinutes,
		AbsentMinutes:   cfg.AttendanceAbsentMinutes,
		MaxOpenTasks:    cfg.MaxOpenTasksPerWorker,
		UrgentLeaveDays: cfg.LeaveUrgentThresholdDays,
	}
}

// workingHours 档案未配置时使用平台默认班次
func (p Policy) workingHours(profile *model.WorkerProfile) (string, string) {
	start, end := p.DefaultStart, p.DefaultEnd
	if profile != nil {
		if profile.WorkStart != "" {
			start = profile.WorkStart
		}
		if profile.WorkEnd != "" {
			end = profile.WorkEnd
		}
	}
	return start, end
}

func (p Policy) loc() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}
