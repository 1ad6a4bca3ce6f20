package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"StaffOps/internal/model"
	"StaffOps/pkg/clock"
	pkgerrors "StaffOps/pkg/errors"
)

// memAttendance 内存考勤存储，遵守 (worker_id, date) 唯一约束与条件更新语义
type memAttendance struct {
	mu      sync.Mutex
	seq     int64
	records map[int64]model.AttendanceRecord
	unique  map[string]int64
}

func newMemAttendance() *memAttendance {
	return &memAttendance{records: map[int64]model.AttendanceRecord{}, unique: map[string]int64{}}
}

func attKey(workerID, date string) string { return workerID + "|" + date }

func (m *memAttendance) Get(_ context.Context, id int64) (*model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, pkgerrors.AttendanceNotFound
	}
	return &rec, nil
}

func (m *memAttendance) GetByWorkerDate(ctx context.Context, workerID, date string) (*model.AttendanceRecord, error) {
	m.mu.Lock()
	id, ok := m.unique[attKey(workerID, date)]
	m.mu.Unlock()
	if !ok {
		return nil, pkgerrors.AttendanceNotFound
	}
	return m.Get(ctx, id)
}

func (m *memAttendance) Create(_ context.Context, rec *model.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := attKey(rec.WorkerID, rec.Date)
	if _, ok := m.unique[key]; ok {
		return pkgerrors.AttendanceConflict
	}
	m.seq++
	rec.ID = m.seq
	m.unique[key] = rec.ID
	m.records[rec.ID] = *rec
	return nil
}

func (m *memAttendance) Save(_ context.Context, rec *model.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ID]; !ok {
		return pkgerrors.AttendanceNotFound
	}
	m.records[rec.ID] = *rec
	return nil
}

func (m *memAttendance) update(rec *model.AttendanceRecord, guard func(model.AttendanceRecord) bool, failed error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.records[rec.ID]
	if !ok || !guard(cur) {
		return failed
	}
	m.records[rec.ID] = *rec
	return nil
}

func (m *memAttendance) RecordCheckIn(_ context.Context, rec *model.AttendanceRecord) error {
	return m.update(rec, func(cur model.AttendanceRecord) bool { return cur.CheckIn.Time == nil }, pkgerrors.AlreadyCheckedIn)
}

func (m *memAttendance) RecordCheckOut(_ context.Context, rec *model.AttendanceRecord) error {
	return m.update(rec, func(cur model.AttendanceRecord) bool { return cur.CheckOut.Time == nil }, pkgerrors.AlreadyCheckedOut)
}

func (m *memAttendance) ApproveLeave(_ context.Context, rec *model.AttendanceRecord) error {
	return m.update(rec, func(cur model.AttendanceRecord) bool { return cur.Leave.Approval == model.LeavePending }, pkgerrors.LeaveAlreadyDecided)
}

func (m *memAttendance) DeletePendingLeave(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.records[id]
	if !ok || cur.Status != model.AttendanceLeave || cur.Leave.Approval != model.LeavePending {
		return pkgerrors.LeaveAlreadyDecided
	}
	delete(m.records, id)
	delete(m.unique, attKey(cur.WorkerID, cur.Date))
	return nil
}

func (m *memAttendance) ListByDate(_ context.Context, date string) ([]model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AttendanceRecord
	for _, rec := range m.records {
		if rec.Date == date {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memAttendance) ListByWorker(_ context.Context, workerID, month string, offset, limit int) ([]model.AttendanceRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.AttendanceRecord
	for _, rec := range m.records {
		if rec.WorkerID == workerID && strings.HasPrefix(rec.Date, month) {
			all = append(all, rec)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Date > all[j].Date })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *memAttendance) ListPendingLeaves(_ context.Context) ([]model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AttendanceRecord
	for _, rec := range m.records {
		if rec.Status == model.AttendanceLeave && rec.Leave.Approval == model.LeavePending {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (m *memAttendance) count(workerID, date string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.records {
		if rec.WorkerID == workerID && rec.Date == date {
			n++
		}
	}
	return n
}

// memTasks 内存任务存储，Reassign / UpdateStatus 为条件更新
type memTasks struct {
	mu    sync.Mutex
	seq   int64
	tasks map[int64]model.Task
}

func newMemTasks() *memTasks {
	return &memTasks{tasks: map[int64]model.Task{}}
}

func cloneTask(t model.Task) *model.Task {
	t.History = append([]model.TaskReassignment(nil), t.History...)
	if t.OriginalAssignee != nil {
		v := *t.OriginalAssignee
		t.OriginalAssignee = &v
	}
	if t.Rating != nil {
		v := *t.Rating
		t.Rating = &v
	}
	return &t
}

func (m *memTasks) Create(_ context.Context, task *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	task.ID = m.seq
	m.tasks[task.ID] = *cloneTask(*task)
	return nil
}

func (m *memTasks) Get(_ context.Context, id int64) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, pkgerrors.TaskNotFound
	}
	return cloneTask(t), nil
}

func (m *memTasks) list(match func(model.Task) bool) []model.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Task
	for _, t := range m.tasks {
		if match(t) {
			out = append(out, *cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memTasks) ListByDate(_ context.Context, date string) ([]model.Task, error) {
	return m.list(func(t model.Task) bool { return t.Date == date }), nil
}

func (m *memTasks) ListByWorkerDate(_ context.Context, workerID, date string) ([]model.Task, error) {
	return m.list(func(t model.Task) bool { return t.Date == date && t.AssignedTo == workerID }), nil
}

func (m *memTasks) ListSweepable(_ context.Context, date string) ([]model.Task, error) {
	return m.list(func(t model.Task) bool {
		return t.Date == date && t.Status == model.TaskPending && !t.IsReassigned
	}), nil
}

func (m *memTasks) CountOpen(_ context.Context, workerID, date string) (int, error) {
	return len(m.list(func(t model.Task) bool {
		return t.Date == date && t.AssignedTo == workerID && t.Status.Open()
	})), nil
}

func (m *memTasks) Reassign(_ context.Context, entry model.TaskReassignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[entry.TaskID]
	if !ok || !t.Status.Reassignable() || t.AssignedTo != entry.FromUser {
		return pkgerrors.TaskConcurrentUpdate
	}
	if t.OriginalAssignee == nil {
		from := entry.FromUser
		t.OriginalAssignee = &from
	}
	at := entry.At
	t.AssignedTo = entry.ToUser
	t.Status = model.TaskReassigned
	t.IsReassigned = true
	t.ReassignmentReason = entry.Reason
	t.ReassignedAt = &at
	t.History = append(append([]model.TaskReassignment(nil), t.History...), entry)
	m.tasks[t.ID] = t
	return nil
}

func (m *memTasks) UpdateStatus(_ context.Context, task *model.Task, from model.TaskStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[task.ID]
	if !ok || t.Status != from {
		return pkgerrors.TaskConcurrentUpdate
	}
	t.Status = task.Status
	t.CompletedAt = task.CompletedAt
	t.Notes = task.Notes
	m.tasks[t.ID] = t
	return nil
}

func (m *memTasks) UpdateDetails(_ context.Context, task *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[task.ID]
	if !ok || !t.Status.Open() {
		return pkgerrors.TaskConcurrentUpdate
	}
	t.ApplyDetails(task.Details())
	m.tasks[t.ID] = t
	return nil
}

func (m *memTasks) SetRating(_ context.Context, id int64, rating int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.Status != model.TaskCompleted {
		return pkgerrors.TaskConcurrentUpdate
	}
	t.Rating = &rating
	m.tasks[id] = t
	return nil
}

// Delete 直接移除，效果与软删除后的查询一致
func (m *memTasks) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return pkgerrors.TaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

var priorityOrder = map[model.TaskPriority]int{
	model.PriorityUrgent: 0,
	model.PriorityHigh:   1,
	model.PriorityMedium: 2,
}

func (m *memTasks) List(_ context.Context, f model.TaskFilter, offset, limit int) ([]model.Task, int64, error) {
	out := m.list(func(t model.Task) bool {
		return (f.Date == "" || t.Date == f.Date) &&
			(f.Status == "" || t.Status == f.Status) &&
			(f.AssignedTo == "" || t.AssignedTo == f.AssignedTo) &&
			(f.Priority == "" || t.Priority == f.Priority) &&
			(f.Category == "" || t.Category == f.Category)
	})
	rank := func(p model.TaskPriority) int {
		if r, ok := priorityOrder[p]; ok {
			return r
		}
		return 3
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		if rank(a.Priority) != rank(b.Priority) {
			return rank(a.Priority) < rank(b.Priority)
		}
		return a.ID > b.ID
	})
	total := int64(len(out))
	if offset >= len(out) {
		return []model.Task{}, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (m *memTasks) put(t model.Task) *model.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t.ID = m.seq
	m.tasks[t.ID] = t
	return cloneTask(t)
}

// memDirectory 内存员工档案
type memDirectory struct {
	mu       sync.Mutex
	profiles map[string]model.WorkerProfile
}

func newMemDirectory(profiles ...model.WorkerProfile) *memDirectory {
	d := &memDirectory{profiles: map[string]model.WorkerProfile{}}
	for _, p := range profiles {
		d.profiles[p.WorkerID] = p
	}
	return d
}

func (d *memDirectory) add(p model.WorkerProfile) {
	d.mu.Lock()
	d.profiles[p.WorkerID] = p
	d.mu.Unlock()
}

func (d *memDirectory) GetProfile(_ context.Context, workerID string) (*model.WorkerProfile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.profiles[workerID]
	if !ok {
		return nil, pkgerrors.WorkerNotFound
	}
	return &p, nil
}

func (d *memDirectory) sorted(match func(model.WorkerProfile) bool) []model.WorkerProfile {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.WorkerProfile
	for _, p := range d.profiles {
		if match(p) {
			out = append(out, p)
		}
	}
	// 故意按 worker_id 倒序返回，排序规则不能依赖存储顺序
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID > out[j].WorkerID })
	return out
}

func (d *memDirectory) ListVerified(context.Context) ([]model.WorkerProfile, error) {
	return d.sorted(func(p model.WorkerProfile) bool {
		return p.Active && p.Verified && p.Role == model.RoleUser
	}), nil
}

type sentEvent struct {
	Event    model.EventType
	WorkerID string
	Payload  map[string]interface{}
}

// recordingNotifier 记录所有事件
type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event model.EventType, workerID string, payload map[string]interface{}) {
	n.mu.Lock()
	n.events = append(n.events, sentEvent{Event: event, WorkerID: workerID, Payload: payload})
	n.mu.Unlock()
}

func (n *recordingNotifier) all() []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEvent(nil), n.events...)
}

func worker(id, jobTitle string) model.WorkerProfile {
	return model.WorkerProfile{
		WorkerID:  id,
		Name:      "Worker " + id,
		JobTitle:  jobTitle,
		WorkStart: "09:00",
		WorkEnd:   "17:00",
		Active:    true,
		Verified:  true,
		Role:      model.RoleUser,
	}
}

// fixture 组装一套内存依赖的服务
type fixture struct {
	clock      *clock.Fixed
	attendance *memAttendance
	tasks      *memTasks
	dir        *memDirectory
	notifier   *recordingNotifier

	ledger *AttendanceService
	leave  *LeaveService
	avail  *Availability
	load   *Workload
	engine *Engine
	task   *TaskService
}

func at(date, hhmm string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+hhmm, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func newFixture(t *testing.T, now time.Time, mutate ...func(*Policy)) *fixture {
	t.Helper()

	policy := DefaultPolicy()
	policy.Location = time.UTC
	for _, fn := range mutate {
		fn(&policy)
	}

	f := &fixture{
		clock:      clock.NewFixed(now),
		attendance: newMemAttendance(),
		tasks:      newMemTasks(),
		dir:        newMemDirectory(),
		notifier:   &recordingNotifier{},
	}
	log := zap.NewNop()

	f.ledger = NewAttendanceService(f.attendance, f.dir, f.clock, policy, log)
	f.leave = NewLeaveService(f.attendance, f.dir, f.notifier, f.clock, policy, log)
	f.avail = NewAvailability(f.attendance, f.dir)
	f.load = NewWorkload(f.tasks)
	f.engine = NewEngine(f.tasks, f.dir, f.avail, f.load, f.notifier, f.clock, policy, log)
	f.task = NewTaskService(f.tasks, f.dir, f.avail, f.load, f.engine, f.clock, policy, log)
	return f
}

// markAbsent 直接写入一条缺勤记录
func (f *fixture) markAbsent(t *testing.T, workerID, date string) {
	t.Helper()
	err := f.attendance.Create(context.Background(), &model.AttendanceRecord{
		WorkerID: workerID, Date: date, Status: model.AttendanceAbsent, ManualEntry: true,
	})
	if err != nil {
		t.Fatalf("seed absent record: %v", err)
	}
}

// openTasks 给员工塞 n 个待办任务
func (f *fixture) openTasks(workerID, date, category string, n int) {
	for i := 0; i < n; i++ {
		f.tasks.put(model.Task{
			Title: "filler", Category: category, Date: date, Location: "Block A",
			Priority: model.PriorityMedium, Status: model.TaskInProgress, AssignedTo: workerID,
			EstimatedMinutes: 30,
		})
	}
}
