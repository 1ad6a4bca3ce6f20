package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"

	"StaffOps/internal/model"
	pkgerrors "StaffOps/pkg/errors"
)

// TaskRepo 任务存储
type TaskRepo struct {
	db *gorm.DB
}

func NewTaskRepo(db *gorm.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

func (r *TaskRepo) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func historyOrder(db *gorm.DB) *gorm.DB {
	return db.Order("task_reassignments.at ASC, task_reassignments.id ASC")
}

func (r *TaskRepo) Get(ctx context.Context, id int64) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Clauses(dbresolver.Write).
		Preload("History", historyOrder).
		First(&task, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.TaskNotFound
		}
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	return &task, nil
}

func (r *TaskRepo) ListByDate(ctx context.Context, date string) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Preload("History", historyOrder).
		Where("date = ?", date).
		Order("id ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *TaskRepo) ListByWorkerDate(ctx context.Context, workerID, date string) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Preload("History", historyOrder).
		Where("assigned_to = ? AND date = ?", workerID, date).
		Order("start_time ASC, id ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *TaskRepo) ListSweepable(ctx context.Context, date string) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).Clauses(dbresolver.Write).
		Where("date = ? AND status = ? AND is_reassigned = ?", date, model.TaskPending, false).
		Order("id ASC").
		Find(&tasks).Error
	return tasks, err
}

// CountOpen 走主库，刚改派的任务要立即计入工作量
func (r *TaskRepo) CountOpen(ctx context.Context, workerID, date string) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Clauses(dbresolver.Write).
		Model(&model.Task{}).
		Where("assigned_to = ? AND date = ? AND status IN ?", workerID, date, model.OpenTaskStatuses).
		Count(&n).Error
	return int(n), err
}

// Reassign 条件更新 + 追加历史在同一事务内；original_assignee 只在首次改派时写入
func (r *TaskRepo) Reassign(ctx context.Context, entry model.TaskReassignment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Task{}).
			Where("id = ? AND assigned_to = ? AND status IN ?", entry.TaskID, entry.FromUser, model.ReassignableStatuses).
			Updates(map[string]interface{}{
				"original_assignee":   gorm.Expr("COALESCE(original_assignee, ?)", entry.FromUser),
				"assigned_to":         entry.ToUser,
				"status":              model.TaskReassigned,
				"is_reassigned":       true,
				"reassignment_reason": entry.Reason,
				"reassigned_at":       entry.At,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to reassign task %d: %w", entry.TaskID, res.Error)
		}
		if res.RowsAffected == 0 {
			return pkgerrors.TaskConcurrentUpdate
		}

		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to append reassignment history: %w", err)
		}
		return nil
	})
}

func (r *TaskRepo) UpdateStatus(ctx context.Context, task *model.Task, from model.TaskStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND status = ?", task.ID, from).
		Updates(map[string]interface{}{
			"status":       task.Status,
			"completed_at": task.CompletedAt,
			"notes":        task.Notes,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update task %d: %w", task.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.TaskConcurrentUpdate
	}
	return nil
}

func (r *TaskRepo) UpdateDetails(ctx context.Context, task *model.Task) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND status IN ?", task.ID, model.OpenTaskStatuses).
		Updates(map[string]interface{}{
			"title":             task.Title,
			"description":       task.Description,
			"category":          task.Category,
			"start_time":        task.StartTime,
			"location":          task.Location,
			"priority":          task.Priority,
			"estimated_minutes": task.EstimatedMinutes,
			"notes":             task.Notes,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update task %d: %w", task.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.TaskConcurrentUpdate
	}
	return nil
}

func (r *TaskRepo) SetRating(ctx context.Context, id int64, rating int) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND status = ?", id, model.TaskCompleted).
		Update("rating", rating)
	if res.Error != nil {
		return fmt.Errorf("failed to rate task %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.TaskConcurrentUpdate
	}
	return nil
}

// Delete 软删除，改派历史保留
func (r *TaskRepo) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.Task{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.TaskNotFound
	}
	return nil
}

const priorityRank = "CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END"

func (r *TaskRepo) List(ctx context.Context, filter model.TaskFilter, offset, limit int) ([]model.Task, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Task{})
	if filter.Date != "" {
		query = query.Where("date = ?", filter.Date)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.AssignedTo != "" {
		query = query.Where("assigned_to = ?", filter.AssignedTo)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	var tasks []model.Task
	err := query.
		Preload("History", historyOrder).
		Order("date DESC").
		Order(priorityRank).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}
