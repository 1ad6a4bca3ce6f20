package service

import (
	"context"
	"errors"
	"fmt"
	"math"
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

const (
	defaultLocation      = "Office"
	autoAbsentReason     = "Auto-marked for late arrival"
	defaultManualAbsence = "Marked absent by administrator"
)

// AttendanceService 考勤台账：每个员工每天至多一条记录
type AttendanceService struct {
	store  AttendanceStore
	dir    WorkerDirectory
	clock  clock.Clock
	policy Policy
	logger *zap.Logger
}

func NewAttendanceService(store AttendanceStore, dir WorkerDirectory, clk clock.Clock, policy Policy, logger *zap.Logger) *AttendanceService {
	return &AttendanceService{store: store, dir: dir, clock: clk, policy: policy, logger: logger}
}

func (s *AttendanceService) now() time.Time {
	return s.clock.Now().In(s.policy.loc())
}

// Today 业务时区下的当天日期
func (s *AttendanceService) Today() string {
	return utils.DateString(s.now())
}

// profile 档案缺失时返回 nil，由调用方回落到默认班次
func (s *AttendanceService) profile(ctx context.Context, workerID string) (*model.WorkerProfile, error) {
	p, err := s.dir.GetProfile(ctx, workerID)
	if err != nil {
		if errors.Is(err, pkgerrors.WorkerNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load worker profile: %w", err)
	}
	return p, nil
}

// existing 未找到时返回 nil, nil
func (s *AttendanceService) existing(ctx context.Context, workerID, date string) (*model.AttendanceRecord, error) {
	rec, err := s.store.GetByWorkerDate(ctx, workerID, date)
	if err != nil {
		if errors.Is(err, pkgerrors.AttendanceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	return rec, nil
}

// Classify 按分钟粒度（忽略秒）计算迟到时长并分类，超过缺勤阈值返回 absent
func (s *AttendanceService) Classify(now time.Time, shiftStart string) (model.AttendanceStatus, int, error) {
	startMinute, err := utils.ParseClock(shiftStart)
	if err != nil {
		return "", 0, err
	}

	delay := utils.MinuteOfDay(now) - startMinute
	switch {
	case delay <= s.policy.GraceMinutes:
		return model.AttendancePresent, delay, nil
	case delay <= s.policy.AbsentMinutes:
		return model.AttendanceLate, delay, nil
	default:
		return model.AttendanceAbsent, delay, nil
	}
}

// CheckIn 上班打卡。
// 迟到超过阈值时拒绝打卡，记录被写成手动缺勤，同时返回记录与 errors.ExcessiveDelay。
func (s *AttendanceService) CheckIn(ctx context.Context, workerID, location string) (*model.AttendanceRecord, error) {
	now := s.now()
	date := utils.DateString(now)
	if strings.TrimSpace(location) == "" {
		location = defaultLocation
	}

	rec, err := s.existing(ctx, workerID, date)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		if rec.HasCheckIn() {
			return nil, pkgerrors.AlreadyCheckedIn
		}
		if rec.Status == model.AttendanceLeave {
			return nil, pkgerrors.OnLeaveToday
		}
	}

	profile, err := s.profile(ctx, workerID)
	if err != nil {
		return nil, err
	}
	start, _ := s.policy.workingHours(profile)

	status, delay, err := s.Classify(now, start)
	if err != nil {
		return nil, fmt.Errorf("invalid working hours for worker %s: %w", workerID, err)
	}

	if status == model.AttendanceAbsent {
		return s.refuseCheckIn(ctx, rec, workerID, date, now, delay)
	}

	if rec == nil {
		rec = &model.AttendanceRecord{
			WorkerID: workerID,
			Date:     date,
			CheckIn:  model.Punch{Time: &now, Location: location},
			Status:   status,
		}
		if err := s.store.Create(ctx, rec); err != nil {
			if errors.Is(err, pkgerrors.AttendanceConflict) {
				// 并发打卡，另一请求已写入
				return nil, pkgerrors.AlreadyCheckedIn
			}
			return nil, fmt.Errorf("failed to create attendance: %w", err)
		}
	} else {
		// 复用自动缺勤等尚未打卡的记录
		if rec.Status == model.AttendanceAbsent {
			rec.AppendNote(fmt.Sprintf("Checked in at %s after being marked absent (%s)", now.Format("15:04"), rec.AbsentReason))
		}
		rec.CheckIn = model.Punch{Time: &now, Location: location}
		rec.Status = status
		rec.AbsentReason = ""
		rec.ManualEntry = false
		if err := s.store.RecordCheckIn(ctx, rec); err != nil {
			return nil, err
		}
	}

	metrics.RecordCheckIn(ctx, string(status), delay)
	s.logger.Info("Worker checked in",
		zap.String("worker_id", workerID),
		zap.String("date", date),
		zap.String("status", string(status)),
		zap.Int("delay_minutes", delay),
	)

	return rec, nil
}

func (s *AttendanceService) refuseCheckIn(ctx context.Context, rec *model.AttendanceRecord, workerID, date string, now time.Time, delay int) (*model.AttendanceRecord, error) {
	reason := "Excessive delay - " + utils.FormatDelay(delay) + " late"
	note := fmt.Sprintf("Check-in refused at %s, contact an administrator", now.Format("15:04"))

	if rec == nil {
		rec = &model.AttendanceRecord{WorkerID: workerID, Date: date}
		rec.Status = model.AttendanceAbsent
		rec.AbsentReason = reason
		rec.ManualEntry = true
		rec.AppendNote(note)
		if err := s.store.Create(ctx, rec); err != nil {
			if !errors.Is(err, pkgerrors.AttendanceConflict) {
				return nil, fmt.Errorf("failed to create absent record: %w", err)
			}
			// 并发请求已写入，返回已存储的记录
			stored, getErr := s.store.GetByWorkerDate(ctx, workerID, date)
			if getErr != nil {
				return nil, fmt.Errorf("failed to reload attendance: %w", getErr)
			}
			rec = stored
		}
	} else {
		rec.Status = model.AttendanceAbsent
		rec.AbsentReason = reason
		rec.ManualEntry = true
		rec.ClearLeave()
		rec.AppendNote(note)
		if err := s.store.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to update absent record: %w", err)
		}
	}

	metrics.RecordCheckIn(ctx, string(model.AttendanceAbsent), delay)
	s.logger.Warn("Check-in refused for excessive delay",
		zap.String("worker_id", workerID),
		zap.String("date", date),
		zap.Int("delay_minutes", delay),
	)

	return rec, pkgerrors.ExcessiveDelay.WithMessage(reason)
}

// CheckOut 下班打卡，工时不做班次长度截断
func (s *AttendanceService) CheckOut(ctx context.Context, workerID, location, notes string) (*model.AttendanceRecord, error) {
	now := s.now()
	date := utils.DateString(now)
	if strings.TrimSpace(location) == "" {
		location = defaultLocation
	}

	rec, err := s.existing(ctx, workerID, date)
	if err != nil {
		return nil, err
	}
	if rec == nil || !rec.HasCheckIn() {
		return nil, pkgerrors.CheckInNotFound
	}
	if rec.HasCheckOut() {
		return nil, pkgerrors.AlreadyCheckedOut
	}

	worked := int(now.Sub(*rec.CheckIn.Time) / time.Minute)
	rec.CheckOut = model.Punch{Time: &now, Location: location}
	rec.WorkedMinutes = &worked
	rec.AppendNote(strings.TrimSpace(notes))

	if err := s.store.RecordCheckOut(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("Worker checked out",
		zap.String("worker_id", workerID),
		zap.String("date", date),
		zap.Int("worked_minutes", worked),
	)
	return rec, nil
}

// MarkAbsent 手动标记缺勤，不覆盖已有记录
func (s *AttendanceService) MarkAbsent(ctx context.Context, actorID, workerID, date, reason string) (*model.AttendanceRecord, error) {
	if workerID == "" {
		return nil, pkgerrors.InvalidRequest.WithMessage("worker_id is required")
	}
	if _, err := utils.ParseDate(date, s.policy.loc()); err != nil {
		return nil, pkgerrors.InvalidRequest.WithMessage("date must be YYYY-MM-DD")
	}
	if _, err := s.dir.GetProfile(ctx, workerID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = defaultManualAbsence
	}

	rec := &model.AttendanceRecord{
		WorkerID:     workerID,
		Date:         date,
		Status:       model.AttendanceAbsent,
		AbsentReason: reason,
		ManualEntry:  true,
	}
	rec.AppendNote(fmt.Sprintf("Marked absent by %s at %s", actorID, s.now().Format(time.RFC3339)))

	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("Worker marked absent",
		zap.String("worker_id", workerID),
		zap.String("date", date),
		zap.String("actor", actorID),
	)
	return rec, nil
}

// ChangeStatus 管理员修正当天状态；与新状态矛盾的字段会被清空，备注只追加
func (s *AttendanceService) ChangeStatus(ctx context.Context, actorID, workerID, date string, status model.AttendanceStatus, reason string) (*model.AttendanceRecord, error) {
	if !status.Valid() {
		return nil, pkgerrors.InvalidAttendanceStat
	}
	now := s.now()
	if date == "" {
		date = utils.DateString(now)
	}
	if date != utils.DateString(now) {
		return nil, pkgerrors.StatusChangeNotToday
	}
	if _, err := s.dir.GetProfile(ctx, workerID); err != nil {
		return nil, err
	}

	rec, err := s.existing(ctx, workerID, date)
	if err != nil {
		return nil, err
	}
	created := rec == nil
	if created {
		rec = &model.AttendanceRecord{WorkerID: workerID, Date: date}
	}

	previous := rec.Status
	if previous == "" {
		previous = "unmarked"
	}

	switch status {
	case model.AttendancePresent, model.AttendanceLate:
		rec.AbsentReason = ""
		rec.ClearLeave()
	case model.AttendanceAbsent:
		rec.AbsentReason = reason
		rec.ClearLeave()
		clearPunches(rec)
	case model.AttendanceLeave:
		rec.AbsentReason = ""
		clearPunches(rec)
		rec.Leave = model.LeaveDetail{
			Reason:     reason,
			Type:       model.LeaveOther,
			Approval:   model.LeaveApproved,
			ApprovedBy: actorID,
			DecidedAt:  &now,
		}
	}

	rec.Status = status
	rec.ManualEntry = true
	rec.AppendNote(fmt.Sprintf("[%s] Status changed from %s to %s by %s: %s",
		now.Format(time.RFC3339), previous, status, actorID, reason))

	if created {
		err = s.store.Create(ctx, rec)
	} else {
		err = s.store.Save(ctx, rec)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Attendance status changed",
		zap.String("worker_id", workerID),
		zap.String("date", date),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
		zap.String("actor", actorID),
	)
	return rec, nil
}

func clearPunches(rec *model.AttendanceRecord) {
	rec.CheckIn = model.Punch{}
	rec.CheckOut = model.Punch{}
	rec.WorkedMinutes = nil
}

// AutoSweep 为宽限期后仍未打卡的已认证员工补一条自动缺勤记录。
// 重复执行安全：唯一约束保证每人每天至多一条。
func (s *AttendanceService) AutoSweep(ctx context.Context, date string) (*dto.AttendanceSweepResult, error) {
	if _, err := utils.ParseDate(date, s.policy.loc()); err != nil {
		return nil, pkgerrors.InvalidRequest.WithMessage("date must be YYYY-MM-DD")
	}
	result := &dto.AttendanceSweepResult{Date: date, Marked: []string{}}
	begin := time.Now()

	now := s.now()
	today := utils.DateString(now)
	if date > today {
		return result, nil
	}

	workers, err := s.dir.ListVerified(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list verified workers: %w", err)
	}

	records, err := s.store.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance for %s: %w", date, err)
	}
	recorded := make(map[string]struct{}, len(records))
	for i := range records {
		recorded[records[i].WorkerID] = struct{}{}
	}

	for i := range workers {
		w := &workers[i]
		if _, ok := recorded[w.WorkerID]; ok {
			result.Skipped++
			continue
		}

		start, _ := s.policy.workingHours(w)
		startMinute, err := utils.ParseClock(start)
		if err != nil {
			s.logger.Warn("Skip worker with invalid working hours",
				zap.String("worker_id", w.WorkerID), zap.String("work_start", start), zap.Error(err))
			result.Failed = append(result.Failed, w.WorkerID)
			continue
		}
		if date == today && utils.MinuteOfDay(now)-startMinute <= s.policy.GraceMinutes {
			result.Skipped++
			continue
		}

		rec := &model.AttendanceRecord{
			WorkerID:     w.WorkerID,
			Date:         date,
			Status:       model.AttendanceAbsent,
			AbsentReason: autoAbsentReason,
			ManualEntry:  false,
			Notes:        fmt.Sprintf("Auto-marked absent - No check-in after %s + %d min grace period", start, s.policy.GraceMinutes),
		}
		if err := s.store.Create(ctx, rec); err != nil {
			if errors.Is(err, pkgerrors.AttendanceConflict) {
				result.Skipped++
				continue
			}
			s.logger.Error("Failed to auto-mark absent",
				zap.String("worker_id", w.WorkerID), zap.String("date", date), zap.Error(err))
			result.Failed = append(result.Failed, w.WorkerID)
			continue
		}
		result.Marked = append(result.Marked, w.WorkerID)
	}

	metrics.RecordAutoAbsent(ctx, len(result.Marked))
	metrics.RecordSweep(ctx, "attendance", time.Since(begin).Seconds(), len(result.Marked), len(result.Failed))
	s.logger.Info("Attendance sweep finished",
		zap.String("date", date),
		zap.Int("marked", len(result.Marked)),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// TodayStatus 员工当天考勤视图
func (s *AttendanceService) TodayStatus(ctx context.Context, workerID string) (*dto.TodayStatusData, error) {
	date := s.Today()

	rec, err := s.existing(ctx, workerID, date)
	if err != nil {
		return nil, err
	}
	profile, err := s.profile(ctx, workerID)
	if err != nil {
		return nil, err
	}
	start, end := s.policy.workingHours(profile)

	data := &dto.TodayStatusData{
		Record:    rec,
		Date:      date,
		Status:    dto.TodayNotCheckedIn,
		WorkStart: start,
		WorkEnd:   end,
	}
	if rec == nil {
		return data, nil
	}

	switch {
	case rec.Status == model.AttendanceLeave:
		data.Status = dto.TodayLeave
	case rec.Status == model.AttendanceAbsent:
		data.Status = dto.TodayAbsent
	case rec.HasCheckOut():
		data.Status = dto.TodayCheckedOut
	case rec.HasCheckIn():
		data.Status = dto.TodayCheckedIn
	}
	data.AutoMarked = rec.AutoMarked()
	return data, nil
}

// History 考勤历史，按日期倒序
func (s *AttendanceService) History(ctx context.Context, workerID string, q dto.HistoryQuery) (*dto.HistoryPage, error) {
	if q.Month != "" && !utils.ValidMonth(q.Month) {
		return nil, pkgerrors.InvalidRequest.WithMessage("month must be YYYY-MM")
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}

	records, total, err := s.store.ListByWorker(ctx, workerID, q.Month, (q.Page-1)*q.Limit, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance history: %w", err)
	}
	if records == nil {
		records = []model.AttendanceRecord{}
	}

	return &dto.HistoryPage{Records: records, Page: q.Page, Limit: q.Limit, Total: total}, nil
}

// DailySummary 管理员视角的当天汇总
func (s *AttendanceService) DailySummary(ctx context.Context, date string) (*dto.DailySummary, error) {
	if date == "" {
		date = s.Today()
	}
	if _, err := utils.ParseDate(date, s.policy.loc()); err != nil {
		return nil, pkgerrors.InvalidRequest.WithMessage("date must be YYYY-MM-DD")
	}

	workers, err := s.dir.ListVerified(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list verified workers: %w", err)
	}
	records, err := s.store.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance for %s: %w", date, err)
	}

	sum := &dto.DailySummary{Date: date, TotalWorkers: len(workers)}
	marked := make(map[string]struct{}, len(records))
	for i := range records {
		rec := &records[i]
		marked[rec.WorkerID] = struct{}{}

		switch rec.Status {
		case model.AttendanceAbsent:
			sum.Absent++
			if rec.ManualEntry {
				sum.ManualAbsent++
			} else {
				sum.AutoAbsent++
			}
		case model.AttendanceLeave:
			switch rec.Leave.Approval {
			case model.LeaveApproved:
				sum.ApprovedLeave++
			case model.LeavePending:
				sum.PendingLeave++
			}
		}

		if !rec.HasCheckIn() {
			continue
		}
		sum.Present++
		if rec.Status == model.AttendanceLate {
			sum.Late++
		}
		if rec.HasCheckOut() {
			sum.CheckedOut++
		} else {
			sum.StillWorking++
		}
	}

	for i := range workers {
		if _, ok := marked[workers[i].WorkerID]; !ok {
			sum.NotMarked++
		}
	}

	if sum.TotalWorkers > 0 {
		sum.AttendanceRate = percent(sum.Present, sum.TotalWorkers)
	}
	if sum.Present > 0 {
		sum.PunctualityRate = percent(sum.Present-sum.Late, sum.Present)
	}
	return sum, nil
}

// percent 保留两位小数
func percent(part, whole int) float64 {
	return math.Round(float64(part)/float64(whole)*10000) / 100
}
