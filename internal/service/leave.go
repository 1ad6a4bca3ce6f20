package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"StaffOps/internal/model"
	"StaffOps/internal/model/dto"
	"StaffOps/pkg/clock"
	pkgerrors "StaffOps/pkg/errors"
	"StaffOps/pkg/metrics"
	"StaffOps/utils"
)

// LeaveService 请假流程，请假记录本身存放在考勤台账中
type LeaveService struct {
	store    AttendanceStore
	dir      WorkerDirectory
	notifier Notifier
	clock    clock.Clock
	policy   Policy
	logger   *zap.Logger
}

func NewLeaveService(store AttendanceStore, dir WorkerDirectory, notifier Notifier, clk clock.Clock, policy Policy, logger *zap.Logger) *LeaveService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &LeaveService{store: store, dir: dir, notifier: notifier, clock: clk, policy: policy, logger: logger}
}

func (s *LeaveService) now() time.Time {
	return s.clock.Now().In(s.policy.loc())
}

// Apply 只能申请今天之后的日期
func (s *LeaveService) Apply(ctx context.Context, workerID string, req dto.ApplyLeaveRequest) (*model.AttendanceRecord, error) {
	if _, err := utils.ParseDate(req.Date, s.policy.loc()); err != nil {
		return nil, pkgerrors.InvalidRequest.WithMessage("date must be YYYY-MM-DD")
	}
	leaveType := model.LeaveType(strings.ToLower(strings.TrimSpace(req.Type)))
	if leaveType == "" {
		leaveType = model.LeaveOther
	}
	if !leaveType.Valid() {
		return nil, pkgerrors.InvalidRequest.WithMessage("unknown leave type " + req.Type)
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, pkgerrors.InvalidRequest.WithMessage("reason is required")
	}

	now := s.now()
	if req.Date <= utils.DateString(now) {
		return nil, pkgerrors.LeaveDateNotFuture
	}

	rec := &model.AttendanceRecord{
		WorkerID: workerID,
		Date:     req.Date,
		Status:   model.AttendanceLeave,
		Leave: model.LeaveDetail{
			Reason:   reason,
			Type:     leaveType,
			Approval: model.LeavePending,
		},
		Notes: fmt.Sprintf("Leave Application - Type: %s, Reason: %s", leaveType, reason),
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("Leave applied",
		zap.String("worker_id", workerID),
		zap.String("date", req.Date),
		zap.String("type", string(leaveType)),
	)

	s.notifier.Notify(ctx, model.EventLeaveApplied, workerID, map[string]interface{}{
		"attendance_id": rec.ID,
		"date":          rec.Date,
		"type":          string(leaveType),
		"reason":        reason,
	})

	return rec, nil
}

// Decide 审批请假。批准保留记录；驳回删除记录，结果只通过通知送达。
func (s *LeaveService) Decide(ctx context.Context, actorID string, attendanceID int64, approve bool, notes string) (*dto.LeaveDecision, error) {
	rec, err := s.store.Get(ctx, attendanceID)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.AttendanceLeave {
		return nil, pkgerrors.NotALeaveRecord
	}
	if rec.Leave.Approval != model.LeavePending {
		return nil, pkgerrors.LeaveAlreadyDecided
	}

	now := s.now()
	notes = strings.TrimSpace(notes)
	decision := &dto.LeaveDecision{AttendanceID: attendanceID}

	if approve {
		rec.Leave.Approval = model.LeaveApproved
		rec.Leave.ApprovedBy = actorID
		rec.Leave.DecidedAt = &now
		rec.Leave.Notes = notes
		rec.AppendNote(fmt.Sprintf("Leave approved by %s on %s%s", actorID, now.Format(time.RFC3339), suffix(notes)))

		if err := s.store.ApproveLeave(ctx, rec); err != nil {
			return nil, err
		}
		decision.Record = rec
		decision.Approval = model.LeaveApproved
	} else {
		if err := s.store.DeletePendingLeave(ctx, attendanceID); err != nil {
			return nil, err
		}
		decision.Approval = model.LeaveRejected
		decision.Deleted = true
	}

	metrics.RecordLeaveDecided(ctx, approve)
	s.logger.Info("Leave decided",
		zap.Int64("attendance_id", attendanceID),
		zap.String("worker_id", rec.WorkerID),
		zap.String("date", rec.Date),
		zap.String("approval", string(decision.Approval)),
		zap.String("actor", actorID),
	)

	s.notifier.Notify(ctx, model.EventLeaveDecided, rec.WorkerID, map[string]interface{}{
		"attendance_id": attendanceID,
		"date":          rec.Date,
		"type":          string(rec.Leave.Type),
		"reason":        rec.Leave.Reason,
		"approval":      string(decision.Approval),
		"decided_by":    actorID,
		"notes":         notes,
	})

	return decision, nil
}

func suffix(notes string) string {
	if notes == "" {
		return ""
	}
	return ": " + notes
}

// Pending 待审批请假，按距请假日天数升序
func (s *LeaveService) Pending(ctx context.Context) (*dto.PendingLeavesData, error) {
	records, err := s.store.ListPendingLeaves(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending leaves: %w", err)
	}

	today := utils.DateString(s.now())
	data := &dto.PendingLeavesData{Items: make([]dto.PendingLeaveItem, 0, len(records))}
	names := make(map[string]string)

	for i := range records {
		rec := records[i]
		days, err := utils.DaysBetween(today, rec.Date)
		if err != nil {
			s.logger.Warn("Skip leave with malformed date",
				zap.Int64("attendance_id", rec.ID), zap.String("date", rec.Date))
			continue
		}

		name, ok := names[rec.WorkerID]
		if !ok {
			if p, err := s.dir.GetProfile(ctx, rec.WorkerID); err == nil {
				name = p.Name
			} else if !errors.Is(err, pkgerrors.WorkerNotFound) {
				s.logger.Warn("Failed to load worker profile", zap.String("worker_id", rec.WorkerID), zap.Error(err))
			}
			names[rec.WorkerID] = name
		}

		item := dto.PendingLeaveItem{
			Record:     rec,
			WorkerName: name,
			DaysUntil:  days,
			Urgent:     days <= s.policy.UrgentLeaveDays,
		}
		if item.Urgent {
			data.Urgent++
		}
		data.Items = append(data.Items, item)
	}

	sort.SliceStable(data.Items, func(i, j int) bool {
		return data.Items[i].DaysUntil < data.Items[j].DaysUntil
	})
	data.Total = len(data.Items)
	return data, nil
}
