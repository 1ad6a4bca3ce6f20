package schedule

// 缺勤扫描 + 任务改派扫描：每个周期对当天执行一次，多实例部署时由 Redis 锁选主

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"StaffOps/internal/model/dto"
)

const sweepLockName = "sweep"

// Locker *cache.Locker 实现
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error)
	Unlock(ctx context.Context, name, token string) error
}

// AttendanceSweeper *service.AttendanceService 实现
type AttendanceSweeper interface {
	Today() string
	AutoSweep(ctx context.Context, date string) (*dto.AttendanceSweepResult, error)
}

// TaskSweeper *service.Engine 实现
type TaskSweeper interface {
	SweepDate(ctx context.Context, date string) (*dto.BatchResult, error)
}

type SweepScheduler struct {
	attendance AttendanceSweeper
	tasks      TaskSweeper
	locker     Locker
	lockTTL    time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	running bool
	lastRun time.Time
}

func NewSweepScheduler(attendance AttendanceSweeper, tasks TaskSweeper, locker Locker, lockTTL time.Duration, logger *zap.Logger) *SweepScheduler {
	return &SweepScheduler{
		attendance: attendance,
		tasks:      tasks,
		locker:     locker,
		lockTTL:    lockTTL,
		logger:     logger,
	}
}

// RunOnce 执行一轮扫描；本进程已在运行或其他实例持锁时直接返回 false
func (s *SweepScheduler) RunOnce(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info("Sweep already running, skipping")
		return false, nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	token, ok, err := s.locker.TryLock(ctx, sweepLockName, s.lockTTL)
	if err != nil {
		s.logger.Error("Failed to acquire sweep lock", zap.Error(err))
		return false, err
	}
	if !ok {
		s.logger.Debug("Sweep lock held by another instance, skipping")
		return false, nil
	}
	defer func() {
		// ctx 可能已超时，释放锁用独立的短超时
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
		if err := s.locker.Unlock(unlockCtx, sweepLockName, token); err != nil {
			s.logger.Warn("Failed to release sweep lock", zap.Error(err))
		}
	}()

	begin := time.Now()
	date := s.attendance.Today()

	// 先标记缺勤，任务扫描才能看到当天的缺勤员工
	absent, err := s.attendance.AutoSweep(ctx, date)
	if err != nil {
		s.logger.Error("Attendance sweep failed", zap.String("date", date), zap.Error(err))
		return true, err
	}

	moved, err := s.tasks.SweepDate(ctx, date)
	if err != nil {
		s.logger.Error("Task sweep failed", zap.String("date", date), zap.Error(err))
		return true, err
	}

	s.mu.Lock()
	s.lastRun = begin
	s.mu.Unlock()

	s.logger.Info("Sweep finished",
		zap.String("date", date),
		zap.Int("marked_absent", len(absent.Marked)),
		zap.Int("reassigned", len(moved.Successful)),
		zap.Int("reassign_failed", len(moved.Failed)),
		zap.Duration("elapsed", time.Since(begin)),
	)
	return true, nil
}

// Run 每 interval 触发一次，启动时立即执行一轮
func (s *SweepScheduler) Run(ctx context.Context, interval, timeout time.Duration) {
	s.tick(ctx, timeout)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, timeout)
		}
	}
}

func (s *SweepScheduler) tick(ctx context.Context, timeout time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := s.RunOnce(runCtx); err != nil {
		s.logger.Error("Sweep run failed", zap.Error(err))
	}
}

// LastRun 最近一次成功扫描的开始时间
func (s *SweepScheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}
