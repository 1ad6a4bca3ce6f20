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

// AttendanceRepo 考勤台账的 GORM 实现
type AttendanceRepo struct {
	db *gorm.DB
}

func NewAttendanceRepo(db *gorm.DB) *AttendanceRepo {
	return &AttendanceRepo{db: db}
}

func (r *AttendanceRepo) Get(ctx context.Context, id int64) (*model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := r.db.WithContext(ctx).Clauses(dbresolver.Write).First(&rec, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.AttendanceNotFound
		}
		return nil, fmt.Errorf("failed to get attendance %d: %w", id, err)
	}
	return &rec, nil
}

// GetByWorkerDate 走主库，打卡前的判断不能读到副本的旧数据
func (r *AttendanceRepo) GetByWorkerDate(ctx context.Context, workerID, date string) (*model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := r.db.WithContext(ctx).Clauses(dbresolver.Write).
		Where("worker_id = ? AND date = ?", workerID, date).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.AttendanceNotFound
		}
		return nil, fmt.Errorf("failed to get attendance of %s on %s: %w", workerID, date, err)
	}
	return &rec, nil
}

func (r *AttendanceRepo) Create(ctx context.Context, rec *model.AttendanceRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.AttendanceConflict
		}
		return fmt.Errorf("failed to create attendance: %w", err)
	}
	return nil
}

// Save 覆盖写全部字段（含零值），用于状态修正
func (r *AttendanceRepo) Save(ctx context.Context, rec *model.AttendanceRecord) error {
	res := r.db.WithContext(ctx).Model(rec).Select("*").Omit("id", "created_at").Updates(rec)
	if res.Error != nil {
		return fmt.Errorf("failed to save attendance %d: %w", rec.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.AttendanceNotFound
	}
	return nil
}

// guardedSave 仅当 cond 仍成立时覆盖写，否则返回 failed
func (r *AttendanceRepo) guardedSave(ctx context.Context, rec *model.AttendanceRecord, failed error, cond string, args ...interface{}) error {
	res := r.db.WithContext(ctx).Model(rec).
		Where(cond, args...).
		Select("*").Omit("id", "created_at").
		Updates(rec)
	if res.Error != nil {
		return fmt.Errorf("failed to update attendance %d: %w", rec.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return failed
	}
	return nil
}

func (r *AttendanceRepo) RecordCheckIn(ctx context.Context, rec *model.AttendanceRecord) error {
	return r.guardedSave(ctx, rec, pkgerrors.AlreadyCheckedIn, "check_in_time IS NULL")
}

func (r *AttendanceRepo) RecordCheckOut(ctx context.Context, rec *model.AttendanceRecord) error {
	return r.guardedSave(ctx, rec, pkgerrors.AlreadyCheckedOut, "check_out_time IS NULL")
}

func (r *AttendanceRepo) ApproveLeave(ctx context.Context, rec *model.AttendanceRecord) error {
	return r.guardedSave(ctx, rec, pkgerrors.LeaveAlreadyDecided,
		"status = ? AND leave_approval = ?", model.AttendanceLeave, model.LeavePending)
}

// DeletePendingLeave 物理删除，释放 (worker_id, date) 唯一键
func (r *AttendanceRepo) DeletePendingLeave(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status = ? AND leave_approval = ?", id, model.AttendanceLeave, model.LeavePending).
		Delete(&model.AttendanceRecord{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete leave %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.LeaveAlreadyDecided
	}
	return nil
}

func (r *AttendanceRepo) ListByDate(ctx context.Context, date string) ([]model.AttendanceRecord, error) {
	var records []model.AttendanceRecord
	err := r.db.WithContext(ctx).Clauses(dbresolver.Write).
		Where("date = ?", date).
		Order("id ASC").
		Find(&records).Error
	return records, err
}

func (r *AttendanceRepo) ListByWorker(ctx context.Context, workerID, month string, offset, limit int) ([]model.AttendanceRecord, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("worker_id = ?", workerID)
		if month != "" {
			db = db.Where("date LIKE ?", month+"-%")
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.AttendanceRecord{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []model.AttendanceRecord
	err := r.db.WithContext(ctx).Scopes(scope).
		Order("date DESC").Offset(offset).Limit(limit).
		Find(&records).Error
	return records, total, err
}

func (r *AttendanceRepo) ListPendingLeaves(ctx context.Context) ([]model.AttendanceRecord, error) {
	var records []model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND leave_approval = ?", model.AttendanceLeave, model.LeavePending).
		Order("date ASC, id ASC").
		Find(&records).Error
	return records, err
}
