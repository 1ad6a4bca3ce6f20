package service

import (
	"context"
	"errors"
	"fmt"

	"StaffOps/internal/model"
	pkgerrors "StaffOps/pkg/errors"
)

// Availability 判断员工某天能否被排班，每次调度都实时查询，不做缓存
type Availability struct {
	store AttendanceStore
	dir   WorkerDirectory
}

func NewAvailability(store AttendanceStore, dir WorkerDirectory) *Availability {
	return &Availability{store: store, dir: dir}
}

// IsAvailable 当天缺勤、请假已批准或档案停用即不可用；没有任何信息时视为可用
func (a *Availability) IsAvailable(ctx context.Context, workerID, date string) (bool, error) {
	rec, err := a.store.GetByWorkerDate(ctx, workerID, date)
	switch {
	case err == nil:
		if rec.BlocksAvailability() {
			return false, nil
		}
	case errors.Is(err, pkgerrors.AttendanceNotFound):
	default:
		return false, fmt.Errorf("failed to query attendance of %s: %w", workerID, err)
	}

	profile, err := a.dir.GetProfile(ctx, workerID)
	switch {
	case err == nil:
		return profile.Active, nil
	case errors.Is(err, pkgerrors.WorkerNotFound):
		return true, nil
	default:
		return false, fmt.Errorf("failed to load profile of %s: %w", workerID, err)
	}
}

// available 候选人档案已在手时跳过二次查询
func (a *Availability) available(ctx context.Context, profile *model.WorkerProfile, date string) (bool, error) {
	if !profile.Active {
		return false, nil
	}
	rec, err := a.store.GetByWorkerDate(ctx, profile.WorkerID, date)
	switch {
	case err == nil:
		return !rec.BlocksAvailability(), nil
	case errors.Is(err, pkgerrors.AttendanceNotFound):
		return true, nil
	default:
		return false, fmt.Errorf("failed to query attendance of %s: %w", profile.WorkerID, err)
	}
}

// Workload 员工某天未完成任务数，每次重新统计
type Workload struct {
	tasks TaskStore
}

func NewWorkload(tasks TaskStore) *Workload {
	return &Workload{tasks: tasks}
}

func (w *Workload) OpenCount(ctx context.Context, workerID, date string) (int, error) {
	n, err := w.tasks.CountOpen(ctx, workerID, date)
	if err != nil {
		return 0, fmt.Errorf("failed to count open tasks of %s: %w", workerID, err)
	}
	return n, nil
}
