package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"StaffOps/internal/model"
	"StaffOps/internal/model/dto"
	"StaffOps/pkg/clock"
	pkgerrors "StaffOps/pkg/errors"
	"StaffOps/pkg/metrics"
	"StaffOps/pkg/snowflake"
	"StaffOps/utils"
)

// Engine 自动改派：把不可用（或超载）员工的待办任务转给同类别里工作量最少的可用员工
type Engine struct {
	tasks    TaskStore
	dir      WorkerDirectory
	avail    *Availability
	load     *Workload
	notifier Notifier
	clock    clock.Clock
	policy   Policy
	logger   *zap.Logger
}

func NewEngine(tasks TaskStore, dir WorkerDirectory, avail *Availability, load *Workload, notifier Notifier, clk clock.Clock, policy Policy, logger *zap.Logger) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{
		tasks:    tasks,
		dir:      dir,
		avail:    avail,
		load:     load,
		notifier: notifier,
		clock:    clk,
		policy:   policy,
		logger:   logger,
	}
}

// FindCandidates 类别匹配、当天可用的已认证员工（不含管理员），按工作量升序，同工作量按 worker_id 升序
func (e *Engine) FindCandidates(ctx context.Context, category, date, excludeWorkerID string) ([]dto.Candidate, error) {
	workers, err := e.dir.ListVerified(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list verified workers: %w", err)
	}

	candidates := make([]dto.Candidate, 0, len(workers))
	for i := range workers {
		w := &workers[i]
		if w.IsAdmin() || w.WorkerID == excludeWorkerID || !w.MatchesCategory(category) {
			continue
		}

		ok, err := e.avail.available(ctx, w, date)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		n, err := e.load.OpenCount(ctx, w.WorkerID, date)
		if err != nil {
			return nil, err
		}
		if e.policy.MaxOpenTasks > 0 && n >= e.policy.MaxOpenTasks {
			continue
		}

		candidates = append(candidates, dto.Candidate{WorkerID: w.WorkerID, Name: w.Name, Workload: n})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Workload != candidates[j].Workload {
			return candidates[i].Workload < candidates[j].Workload
		}
		return candidates[i].WorkerID < candidates[j].WorkerID
	})
	return candidates, nil
}

// AutoReassign 转给工作量最少的候选人；没有候选人时返回 errors.NoCandidates，任务保持不变
func (e *Engine) AutoReassign(ctx context.Context, taskID int64, reason model.ReassignmentReason) (*model.Task, error) {
	task, err := e.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.Status.Reassignable() {
		metrics.RecordReassign(ctx, string(reason), "invalid_state")
		return nil, pkgerrors.TaskNotOpen
	}

	candidates, err := e.FindCandidates(ctx, task.Category, task.Date, task.AssignedTo)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		metrics.RecordReassign(ctx, string(reason), "no_candidates")
		e.logger.Warn("No candidates for reassignment",
			zap.Int64("task_id", task.ID),
			zap.String("category", task.Category),
			zap.String("date", task.Date),
			zap.String("assigned_to", task.AssignedTo),
		)
		return nil, pkgerrors.NoCandidates
	}

	return e.reassign(ctx, task, candidates[0].WorkerID, reason)
}

// ManualReassign 管理员指定接手人，不检查可用性
func (e *Engine) ManualReassign(ctx context.Context, taskID int64, newWorkerID string, reason model.ReassignmentReason) (*model.Task, error) {
	if reason == "" {
		reason = model.ReasonManualOverride
	}
	task, err := e.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.Status.Reassignable() {
		return nil, pkgerrors.TaskNotOpen
	}
	if newWorkerID == task.AssignedTo {
		return nil, pkgerrors.SameAssignee
	}
	if _, err := e.dir.GetProfile(ctx, newWorkerID); err != nil {
		return nil, err
	}

	return e.reassign(ctx, task, newWorkerID, reason)
}

func (e *Engine) reassign(ctx context.Context, task *model.Task, to string, reason model.ReassignmentReason) (*model.Task, error) {
	now := e.clock.Now()
	from := task.AssignedTo
	entry := model.TaskReassignment{
		TaskID:   task.ID,
		FromUser: from,
		ToUser:   to,
		Reason:   reason,
		At:       now,
	}

	if err := e.tasks.Reassign(ctx, entry); err != nil {
		metrics.RecordReassign(ctx, string(reason), "conflict")
		return nil, err
	}

	if task.OriginalAssignee == nil {
		original := from
		task.OriginalAssignee = &original
	}
	task.AssignedTo = to
	task.Status = model.TaskReassigned
	task.IsReassigned = true
	task.ReassignmentReason = reason
	task.ReassignedAt = &now
	task.History = append(task.History, entry)

	metrics.RecordReassign(ctx, string(reason), "success")
	e.logger.Info("Task reassigned",
		zap.Int64("task_id", task.ID),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("reason", string(reason)),
	)

	e.notifier.Notify(ctx, model.EventTaskReassigned, to, map[string]interface{}{
		"task_id":   task.ID,
		"title":     task.Title,
		"category":  task.Category,
		"date":      task.Date,
		"location":  task.Location,
		"priority":  string(task.Priority),
		"from_user": from,
		"to_user":   to,
		"reason":    string(reason),
	})

	return task, nil
}

// SweepDate 检查当天所有未改派过的待办任务，指派人不可用则自动改派。
// 单个任务失败不影响其他任务，结果逐项返回。
func (e *Engine) SweepDate(ctx context.Context, date string) (*dto.BatchResult, error) {
	if _, err := utils.ParseDate(date, e.policy.loc()); err != nil {
		return nil, pkgerrors.InvalidRequest.WithMessage("date must be YYYY-MM-DD")
	}
	begin := time.Now()

	tasks, err := e.tasks.ListSweepable(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list sweepable tasks: %w", err)
	}

	result := &dto.BatchResult{Successful: []dto.ItemResult{}, Failed: []dto.ItemResult{}}
	if id, err := snowflake.NextString(snowflake.KindSweep); err == nil {
		result.BatchID = id
	}

	for i := range tasks {
		task := &tasks[i]
		item := dto.ItemResult{Index: i, TaskID: task.ID}

		ok, err := e.avail.IsAvailable(ctx, task.AssignedTo, date)
		if err != nil {
			result.Failed = append(result.Failed, failedItem(item, err))
			continue
		}
		if ok {
			continue
		}

		updated, err := e.AutoReassign(ctx, task.ID, model.ReasonUserAbsent)
		if err != nil {
			result.Failed = append(result.Failed, failedItem(item, err))
			continue
		}
		item.Success = true
		item.AssignedTo = updated.AssignedTo
		result.Successful = append(result.Successful, item)
	}

	metrics.RecordSweep(ctx, "tasks", time.Since(begin).Seconds(), len(result.Successful), len(result.Failed))
	e.logger.Info("Task sweep finished",
		zap.String("date", date),
		zap.String("batch_id", result.BatchID),
		zap.Int("scanned", len(tasks)),
		zap.Int("reassigned", len(result.Successful)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func failedItem(item dto.ItemResult, err error) dto.ItemResult {
	item.Success = false
	if def, ok := pkgerrors.As(err); ok {
		item.Code = def.Code
		item.Message = def.Message
		return item
	}
	item.Code = pkgerrors.Internal.Code
	item.Message = err.Error()
	return item
}

// isNoCandidates 创建任务时没有候选人不算失败
func isNoCandidates(err error) bool {
	return errors.Is(err, pkgerrors.NoCandidates)
}
