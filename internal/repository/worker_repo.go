package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"StaffOps/internal/model"
	pkgerrors "StaffOps/pkg/errors"
)

// WorkerRepo 员工档案
type WorkerRepo struct {
	db *gorm.DB
}

func NewWorkerRepo(db *gorm.DB) *WorkerRepo {
	return &WorkerRepo{db: db}
}

func (r *WorkerRepo) GetProfile(ctx context.Context, workerID string) (*model.WorkerProfile, error) {
	var p model.WorkerProfile
	err := r.db.WithContext(ctx).Where("worker_id = ?", workerID).Take(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.WorkerNotFound
		}
		return nil, fmt.Errorf("failed to get worker %s: %w", workerID, err)
	}
	return &p, nil
}

func (r *WorkerRepo) ListActive(ctx context.Context) ([]model.WorkerProfile, error) {
	var workers []model.WorkerProfile
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("worker_id ASC").
		Find(&workers).Error
	return workers, err
}

func (r *WorkerRepo) ListVerified(ctx context.Context) ([]model.WorkerProfile, error) {
	var workers []model.WorkerProfile
	err := r.db.WithContext(ctx).
		Where("active = ? AND verified = ? AND role = ?", true, true, model.RoleUser).
		Order("worker_id ASC").
		Find(&workers).Error
	return workers, err
}

// Upsert 外部用户系统同步档案，按 worker_id 覆盖
func (r *WorkerRepo) Upsert(ctx context.Context, p *model.WorkerProfile) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "worker_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "email", "job_title", "department", "skills",
			"work_start", "work_end", "active", "verified", "role", "updated_at",
		}),
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("failed to upsert worker %s: %w", p.WorkerID, err)
	}
	return nil
}
