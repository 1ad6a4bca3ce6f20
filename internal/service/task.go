package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"StaffOps/internal/model"
	"StaffOps/internal/model/dto"
	"StaffOps/pkg/clock"
	pkgerrors "StaffOps/pkg/errors"
	"StaffOps/pkg/snowflake"
	"StaffOps/utils"
)

// TaskService 任务创建与状态流转
type TaskService struct {
	tasks  TaskStore
	dir    WorkerDirectory
	avail  *Availability
	load   *Workload
	engine *Engine
	clock  clock.Clock
	policy Policy
	logger *zap.Logger
}

func NewTaskService(tasks TaskStore, dir WorkerDirectory, avail *Availability, load *Workload, engine *Engine, clk clock.Clock, policy Policy, logger *zap.Logger) *TaskService {
	return &TaskService{
		tasks:  tasks,
		dir:    dir,
		avail:  avail,
		load:   load,
		engine: engine,
		clock:  clk,
		policy: policy,
		logger: logger,
	}
}

func (s *TaskService) validate(req *dto.CreateTaskRequest) (model.TaskPriority, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.AssignedTo = strings.TrimSpace(req.AssignedTo)
	req.Location = strings.TrimSpace(req.Location)

	var missing []string
	if req.Title == "" {
		missing = append(missing, "title")
	}
	if req.AssignedTo == "" {
		missing = append(missing, "assigned_to")
	}
	if req.Date == "" {
		missing = append(missing, "date")
	}
	if req.Category == "" {
		missing = append(missing, "category")
	}
	if req.Location == "" {
		missing = append(missing, "location")
	}
	if len(missing) > 0 {
		return "", pkgerrors.InvalidRequest.WithMessage("missing required fields: " + strings.Join(missing, ", "))
	}

	if _, err := utils.ParseDate(req.Date, s.policy.loc()); err != nil {
		return "", pkgerrors.InvalidRequest.WithMessage("date must be YYYY-MM-DD")
	}
	if req.StartTime != "" {
		if _, err := utils.ParseClock(req.StartTime); err != nil {
			return "", pkgerrors.InvalidRequest.WithMessage("start_time must be HH:MM")
		}
	}
	if !model.ValidTaskCategory(req.Category) {
		return "", pkgerrors.InvalidTaskCategory
	}

	priority := model.TaskPriority(strings.ToLower(req.Priority))
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return "", pkgerrors.InvalidTaskPriority
	}
	if req.EstimatedMinutes < 0 {
		return "", pkgerrors.InvalidRequest.WithMessage("estimated_minutes must be positive")
	}
	return priority, nil
}

// Create 创建任务后立即检查指派人：当天不可用按 user_absent 改派，超出上限按 user_overloaded 改派。
// 找不到候选人时任务保留原指派，结果里带上原因。
func (s *TaskService) Create(ctx context.Context, actorID string, req dto.CreateTaskRequest) (*dto.CreateTaskResult, error) {
	priority, err := s.validate(&req)
	if err != nil {
		return nil, err
	}
	if _, err := s.dir.GetProfile(ctx, req.AssignedTo); err != nil {
		return nil, err
	}

	estimated := req.EstimatedMinutes
	if estimated == 0 {
		estimated = model.DefaultEstimatedMinutes
	}

	task := &model.Task{
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		Date:             req.Date,
		StartTime:        req.StartTime,
		Location:         req.Location,
		Priority:         priority,
		Status:           model.TaskPending,
		AssignedTo:       req.AssignedTo,
		AssignedBy:       actorID,
		EstimatedMinutes: estimated,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Info("Task created",
		zap.Int64("task_id", task.ID),
		zap.String("assigned_to", task.AssignedTo),
		zap.String("category", task.Category),
		zap.String("date", task.Date),
	)

	result := &dto.CreateTaskResult{Task: task}

	reason, err := s.needsReassignment(ctx, task)
	if err != nil {
		s.logger.Error("Failed to check assignee availability", zap.Int64("task_id", task.ID), zap.Error(err))
		result.ReassignError = err.Error()
		return result, nil
	}
	if reason == "" {
		return result, nil
	}

	updated, err := s.engine.AutoReassign(ctx, task.ID, reason)
	if err != nil {
		if !isNoCandidates(err) {
			s.logger.Error("Failed to reassign new task", zap.Int64("task_id", task.ID), zap.Error(err))
		}
		result.ReassignError = err.Error()
		return result, nil
	}
	result.Task = updated
	result.Reassigned = true
	return result, nil
}

func (s *TaskService) needsReassignment(ctx context.Context, task *model.Task) (model.ReassignmentReason, error) {
	ok, err := s.avail.IsAvailable(ctx, task.AssignedTo, task.Date)
	if err != nil {
		return "", err
	}
	if !ok {
		return model.ReasonUserAbsent, nil
	}

	if s.policy.MaxOpenTasks <= 0 {
		return "", nil
	}
	n, err := s.load.OpenCount(ctx, task.AssignedTo, task.Date)
	if err != nil {
		return "", err
	}
	// n 已包含刚创建的任务
	if n > s.policy.MaxOpenTasks {
		return model.ReasonUserOverloaded, nil
	}
	return "", nil
}

// BulkCreate 逐条创建，互不影响
func (s *TaskService) BulkCreate(ctx context.Context, actorID string, reqs []dto.CreateTaskRequest) (*dto.BatchResult, error) {
	if len(reqs) == 0 {
		return nil, pkgerrors.InvalidRequest.WithMessage("tasks must not be empty")
	}

	result := &dto.BatchResult{Successful: []dto.ItemResult{}, Failed: []dto.ItemResult{}}
	if id, err := snowflake.NextString(snowflake.KindBatch); err == nil {
		result.BatchID = id
	}

	for i, req := range reqs {
		item := dto.ItemResult{Index: i}
		created, err := s.Create(ctx, actorID, req)
		if err != nil {
			result.Failed = append(result.Failed, failedItem(item, err))
			continue
		}
		item.Success = true
		item.TaskID = created.Task.ID
		item.AssignedTo = created.Task.AssignedTo
		if created.ReassignError != "" {
			item.Message = created.ReassignError
		}
		result.Successful = append(result.Successful, item)
	}

	s.logger.Info("Bulk task creation finished",
		zap.String("batch_id", result.BatchID),
		zap.Int("successful", len(result.Successful)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// UpdateStatus 只有当前指派人或管理员可以更新；改派状态只能由改派流程写入
func (s *TaskService) UpdateStatus(ctx context.Context, actorID string, isAdmin bool, taskID int64, status model.TaskStatus, notes string) (*model.Task, error) {
	if !status.Valid() || status == model.TaskReassigned || status == model.TaskPending {
		return nil, pkgerrors.TaskTransitionInvalid
	}

	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && task.AssignedTo != actorID {
		return nil, pkgerrors.Forbidden
	}
	if !task.Status.CanTransitionTo(status) {
		return nil, pkgerrors.TaskTransitionInvalid.WithMessage(
			fmt.Sprintf("cannot move task from %s to %s", task.Status, status))
	}

	from := task.Status
	task.Status = status
	if status == model.TaskCompleted && task.CompletedAt == nil {
		now := s.clock.Now()
		task.CompletedAt = &now
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		if task.Notes != "" {
			task.Notes += "\n"
		}
		task.Notes += notes
	}

	if err := s.tasks.UpdateStatus(ctx, task, from); err != nil {
		return nil, err
	}

	s.logger.Info("Task status updated",
		zap.Int64("task_id", task.ID),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
		zap.String("actor", actorID),
	)
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, taskID int64) (*model.Task, error) {
	return s.tasks.Get(ctx, taskID)
}

// ListForWorker 员工某天的任务
func (s *TaskService) ListForWorker(ctx context.Context, workerID, date string) ([]model.Task, error) {
	if date == "" {
		date = utils.DateString(s.clock.Now().In(s.policy.loc()))
	}
	tasks, err := s.tasks.ListByWorkerDate(ctx, workerID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// DaySummary 管理员当天任务汇总
func (s *TaskService) DaySummary(ctx context.Context, date string) (*dto.TaskDaySummary, error) {
	if date == "" {
		date = utils.DateString(s.clock.Now().In(s.policy.loc()))
	}
	tasks, err := s.tasks.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	sum := &dto.TaskDaySummary{
		Date:       date,
		Total:      len(tasks),
		ByStatus:   make(map[string]int),
		ByCategory: make(map[string]int),
	}
	for i := range tasks {
		sum.ByStatus[string(tasks[i].Status)]++
		sum.ByCategory[tasks[i].Category]++
		if tasks[i].IsReassigned {
			sum.Reassigned++
		}
	}
	return sum, nil
}

// Update 管理员编辑任务详情。指派人只能通过改派流程变更，日期决定可用性判断，同样不在此修改。
func (s *TaskService) Update(ctx context.Context, actorID string, taskID int64, req dto.UpdateTaskRequest) (*model.Task, error) {
	if req.AssignedTo != nil {
		return nil, pkgerrors.InvalidRequest.WithMessage("assigned_to can only be changed by reassignment")
	}
	if req.Date != nil {
		return nil, pkgerrors.InvalidRequest.WithMessage("date cannot be changed, create a new task instead")
	}

	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.Status.Open() {
		return nil, pkgerrors.TaskNotOpen.WithMessage("closed tasks cannot be edited")
	}

	d := task.Details()
	if req.Title != nil {
		if d.Title = strings.TrimSpace(*req.Title); d.Title == "" {
			return nil, pkgerrors.InvalidRequest.WithMessage("title cannot be empty")
		}
	}
	if req.Location != nil {
		if d.Location = strings.TrimSpace(*req.Location); d.Location == "" {
			return nil, pkgerrors.InvalidRequest.WithMessage("location cannot be empty")
		}
	}
	if req.Description != nil {
		d.Description = *req.Description
	}
	if req.Notes != nil {
		d.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.Category != nil {
		if !model.ValidTaskCategory(*req.Category) {
			return nil, pkgerrors.InvalidTaskCategory
		}
		d.Category = *req.Category
	}
	if req.StartTime != nil {
		if *req.StartTime != "" {
			if _, err := utils.ParseClock(*req.StartTime); err != nil {
				return nil, pkgerrors.InvalidRequest.WithMessage("start_time must be HH:MM")
			}
		}
		d.StartTime = *req.StartTime
	}
	if req.Priority != nil {
		p := model.TaskPriority(strings.ToLower(*req.Priority))
		if !p.Valid() {
			return nil, pkgerrors.InvalidTaskPriority
		}
		d.Priority = p
	}
	if req.EstimatedMinutes != nil {
		if *req.EstimatedMinutes <= 0 {
			return nil, pkgerrors.InvalidRequest.WithMessage("estimated_minutes must be positive")
		}
		d.EstimatedMinutes = *req.EstimatedMinutes
	}

	task.ApplyDetails(d)
	if err := s.tasks.UpdateDetails(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info("Task updated",
		zap.Int64("task_id", task.ID),
		zap.String("actor", actorID),
	)
	return task, nil
}

// Rate 完成后的评分，可重复评分覆盖
func (s *TaskService) Rate(ctx context.Context, actorID string, taskID int64, rating int) (*model.Task, error) {
	if rating < model.MinTaskRating || rating > model.MaxTaskRating {
		return nil, pkgerrors.InvalidTaskRating
	}

	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != model.TaskCompleted {
		return nil, pkgerrors.TaskNotCompleted
	}

	if err := s.tasks.SetRating(ctx, task.ID, rating); err != nil {
		return nil, err
	}
	task.Rating = &rating

	s.logger.Info("Task rated",
		zap.Int64("task_id", task.ID),
		zap.Int("rating", rating),
		zap.String("actor", actorID),
	)
	return task, nil
}

// Delete 软删除，任务不再出现在列表与工作量统计中
func (s *TaskService) Delete(ctx context.Context, actorID string, taskID int64) error {
	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return err
	}
	s.logger.Info("Task deleted",
		zap.Int64("task_id", taskID),
		zap.String("actor", actorID),
	)
	return nil
}

// List 管理员任务列表
func (s *TaskService) List(ctx context.Context, q dto.TaskListQuery) (*dto.TaskPage, error) {
	filter := model.TaskFilter{
		Date:       q.Date,
		Status:     model.TaskStatus(q.Status),
		AssignedTo: strings.TrimSpace(q.AssignedTo),
		Priority:   model.TaskPriority(strings.ToLower(q.Priority)),
		Category:   q.Category,
	}
	if filter.Date != "" {
		if _, err := utils.ParseDate(filter.Date, s.policy.loc()); err != nil {
			return nil, pkgerrors.InvalidRequest.WithMessage("date must be YYYY-MM-DD")
		}
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, pkgerrors.InvalidRequest.WithMessage("invalid task status")
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, pkgerrors.InvalidTaskPriority
	}
	if filter.Category != "" && !model.ValidTaskCategory(filter.Category) {
		return nil, pkgerrors.InvalidTaskCategory
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}

	tasks, total, err := s.tasks.List(ctx, filter, (q.Page-1)*q.Limit, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return &dto.TaskPage{Tasks: tasks, Page: q.Page, Limit: q.Limit, Total: total}, nil
}
