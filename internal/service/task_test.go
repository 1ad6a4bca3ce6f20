package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"StaffOps/internal/model"
	"StaffOps/internal/model/dto"
	pkgerrors "StaffOps/pkg/errors"
)

func cleaningRequest(assignee string) dto.CreateTaskRequest {
	return dto.CreateTaskRequest{
		Title:      "Lobby floors",
		Category:   "Cleaning",
		Date:       day,
		StartTime:  "10:30",
		Location:   "Main lobby",
		AssignedTo: assignee,
	}
}

func TestCreateTaskValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(day, "08:00"))
	f.dir.add(worker("A", "Cleaning"))

	cases := []struct {
		name   string
		mutate func(*dto.CreateTaskRequest)
		want   error
	}{
		{"missing title", func(r *dto.CreateTaskRequest) { r.Title = "  " }, pkgerrors.InvalidRequest},
		{"missing location", func(r *dto.CreateTaskRequest) { r.Location = "" }, pkgerrors.InvalidRequest},
		{"bad date", func(r *dto.CreateTaskRequest) { r.Date = "2024/06/01" }, pkgerrors.InvalidRequest},
		{"bad start time", func(r *dto.CreateTaskRequest) { r.StartTime = "half past ten" }, pkgerrors.InvalidRequest},
		{"unknown category", func(r *dto.CreateTaskRequest) { r.Category = "Gardening" }, pkgerrors.InvalidTaskCategory},
		{"unknown priority", func(r *dto.CreateTaskRequest) { r.Priority = "asap" }, pkgerrors.InvalidTaskPriority},
		{"negative estimate", func(r *dto.CreateTaskRequest) { r.EstimatedMinutes = -5 }, pkgerrors.InvalidRequest},
		{"unknown assignee", func(r *dto.CreateTaskRequest) { r.AssignedTo = "ghost" }, pkgerrors.WorkerNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := cleaningRequest("A")
			tc.mutate(&req)
			_, err := f.task.Create(ctx, "admin", req)
			require.ErrorIs(t, err, tc.want)
		})
	}

	tasks, err := f.tasks.ListByDate(ctx, day)
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestCreateTaskDefaults(t *testing.T) {
	f := newFixture(t, at(day, "08:00"))
	f.dir.add(worker("A", "Cleaning"))

	res, err := f.task.Create(context.Background(), "admin", cleaningRequest("A"))
	require.NoError(t, err)
	require.False(t, res.Reassigned)
	require.Empty(t, res.ReassignError)
	require.Equal(t, model.TaskPending, res.Task.Status)
	require.Equal(t, model.PriorityMedium, res.Task.Priority)
	require.Equal(t, model.DefaultEstimatedMinutes, res.Task.EstimatedMinutes)
	require.Equal(t, "admin", res.Task.AssignedBy)
	require.NotZero(t, res.Task.ID)
}

func TestCreateTaskForAbsentWorkerReassigns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(day, "08:00"))
	f.dir.add(worker("A", "Cleaning"))
	f.dir.add(worker("B", "Cleaning"))
	f.markAbsent(t, "A", day)

	res, err := f.task.Create(ctx, "admin", cleaningRequest("A"))
	require.NoError(t, err)
	require.True(t, res.Reassigned)
	require.Equal(t, "B", res.Task.AssignedTo)
	require.Equal(t, model.ReasonUserAbsent, res.Task.ReassignmentReason)

	stored, err := f.tasks.Get(ctx, res.Task.ID)
	require.NoError(t, err)
	require.Equal(t, "B", stored.AssignedTo)
	require.Equal(t, "A", *stored.OriginalAssignee)
}

func TestCreateTaskWithoutCandidatesKeepsAssignee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(day, "08:00"))
	f.dir.add(worker("A", "Cleaning"))
	f.markAbsent(t, "A", day)

	res, err := f.task.Create(ctx, "admin", cleaningRequest("A"))
	require.NoError(t, err)
	require.False(t, res.Reassigned)
	require.NotEmpty(t, res.ReassignError)
	require.Equal(t, "A", res.Task.AssignedTo)
	require.Equal(t, model.TaskPending, res.Task.Status)
}

func TestCreateTaskOverloadedAssignee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(day, "08:00"), func(p *Policy) { p.MaxOpenTasks = 2 })
	f.dir.add(worker("A", "Cleaning"))
	f.dir.add(worker("B", "Cleaning"))
	f.openTasks("A", day, "Cleaning", 1)

	res, err := f.task.Create(ctx, "admin", cleaningRequest("A"))
	require.NoError(t, err)
	require.False(t, res.Reassigned)

	res, err = f.task.Create(ctx, "admin", cleaningRequest("A"))
	require.NoError(t, err)
	require.True(t, res.Reassigned)
	require.Equal(t, "B", res.Task.AssignedTo)
	require.Equal(t, model.ReasonUserOverloaded, res.Task.ReassignmentReason)
}

func TestBulkCreateTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(day, "08:00"))
	f.dir.add(worker("A", "Cleaning"))
	f.dir.add(worker("B", "Cleaning"))
	f.markAbsent(t, "A", day)

	bad := cleaningRequest("B")
	bad.Category = "Gardening"

	res, err := f.task.BulkCreate(ctx, "admin", []dto.CreateTaskRequest{
		cleaningRequest("B"),
		bad,
		cleaningRequest("A"),
	})
	require.NoError(t, err)
	require.Len(t, res.Successful, 2)
	require.Len(t, res.Failed, 1)
	require.Equal(t, 1, res.Failed[0].Index)
	require.Equal(t, pkgerrors.InvalidTaskCategory.Code, res.Failed[0].Code)
	require.Equal(t, 2, res.Successful[1].Index)
	require.Equal(t, "B", res.Successful[1].AssignedTo)

	_, err = f.task.BulkCreate(ctx, "admin", nil)
	require.ErrorIs(t, err, pkgerrors.InvalidRequest)
}

func TestUpdateTaskStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(day, "08:00"))
	f.dir.add(worker("A", "Cleaning"))
	f.dir.add(worker("B", "Cleaning"))
	task := f.pendingTask("A", "Cleaning")

	_, err := f.task.UpdateStatus(ctx, "B", false, task.ID, model.TaskInProgress, "")
	require.ErrorIs(t, err, pkgerrors.Forbidden)

	_, err = f.task.UpdateStatus(ctx, "A", false, task.ID, model.TaskCompleted, "")
	require.ErrorIs(t, err, pkgerrors.TaskTransitionInvalid)

	_, err = f.task.UpdateStatus(ctx, "admin", true, task.ID, model.TaskReassigned, "")
	require.ErrorIs(t, err, pkgerrors.TaskTransitionInvalid)

	updated, err := f.task.UpdateStatus(ctx, "A", false, task.ID, model.TaskInProgress, "starting")
	require.NoError(t, err)
	require.Equal(t, model.TaskInProgress, updated.Status)

	f.clock.Advance(90 * time.Minute)
	updated, err = f.task.UpdateStatus(ctx, "A", false, task.ID, model.TaskCompleted, "all clean")
	require.NoError(t, err)
	require.Equal(t, model.TaskCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)
	require.True(t, at(day, "09:30").Equal(*updated.CompletedAt))
	require.Equal(t, "starting\nall clean", updated.Notes)

	_, err = f.task.UpdateStatus(ctx, "admin", true, task.ID, model.TaskCancelled, "")
	require.ErrorIs(t, err, pkgerrors.TaskTransitionInvalid)

	stored, err := f.tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, model.TaskCompleted, stored.Status)
}

func TestTaskListingAndSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(day, "08:00"))
	f.dir.add(worker("A", "Cleaning"))
	f.dir.add(worker("B", "Cleaning"))
	f.pendingTask("A", "Cleaning")
	f.pendingTask("A", "Maintenance")
	moved := f.pendingTask("B", "Cleaning")
	_, err := f.engine.ManualReassign(ctx, moved.ID, "A", "")
	require.NoError(t, err)

	tasks, err := f.task.ListForWorker(ctx, "A", "")
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	tasks, err = f.task.ListForWorker(ctx, "B", "")
	require.NoError(t, err)
	require.NotNil(t, tasks)
	require.Empty(t, tasks)

	sum, err := f.task.DaySummary(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 3, sum.Total)
	require.Equal(t, 1, sum.Reassigned)
	require.Equal(t, 2, sum.ByStatus["pending"])
	require.Equal(t, 1, sum.ByStatus["reassigned"])
	require.Equal(t, 2, sum.ByCategory["Cleaning"])
}

func strPtr(s string) *string { return &s }

func TestUpdateTaskDetails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(day, "08:00"))
	f.dir.add(worker("A", "Cleaning"))
	task := f.pendingTask("A", "Cleaning")

	minutes := 90
	updated, err := f.task.Update(ctx, "admin", task.ID, dto.UpdateTaskRequest{
		Title:            strPtr("  Atrium floors "),
		Priority:         strPtr("URGENT"),
		StartTime:        strPtr("14:00"),
		EstimatedMinutes: &minutes,
	})
	require.NoError(t, err)
	require.Equal(t, "Atrium floors", updated.Title)
	require.Equal(t, model.PriorityUrgent, updated.Priority)

	stored, err := f.tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, "Atrium floors", stored.Title)
	require.Equal(t, "14:00", stored.StartTime)
	require.Equal(t, 90, stored.EstimatedMinutes)
	// 未提供的字段保持不变
	require.Equal(t, "Block B", stored.Location)
	require.Equal(t, "A", stored.AssignedTo)
	require.Equal(t, day, stored.Date)
}

func TestUpdateTaskRejectsSchedulingFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(day, "08:00"))
	f.dir.add(worker("A", "Cleaning"))
	f.dir.add(worker("B", "Cleaning"))
	task := f.pendingTask("A", "Cleaning")

	cases := []struct {
		name string
		req  dto.UpdateTaskRequest
		want error
	}{
		{"assignee", dto.UpdateTaskRequest{AssignedTo: strPtr("B")}, pkgerrors.InvalidRequest},
		{"date", dto.UpdateTaskRequest{Date: strPtr("2024-06-02")}, pkgerrors.InvalidRequest},
		{"empty title", dto.UpdateTaskRequest{Title: strPtr(" ")}, pkgerrors.InvalidRequest},
		{"bad start time", dto.UpdateTaskRequest{StartTime: strPtr("noon")}, pkgerrors.InvalidRequest},
		{"unknown category", dto.UpdateTaskRequest{Category: strPtr("Gardening")}, pkgerrors.InvalidTaskCategory},
		{"unknown priority", dto.UpdateTaskRequest{Priority: strPtr("asap")}, pkgerrors.InvalidTaskPriority},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.task.Update(ctx, "admin", task.ID, tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}

	stored, err := f.tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, "A", stored.AssignedTo)
	require.Empty(t, stored.History)
}

func TestUpdateClosedTaskRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(day, "08:00"))
	f.dir.add(worker("A", "Cleaning"))
	task := f.pendingTask("A", "Cleaning")
	_, err := f.task.UpdateStatus(ctx, "admin", true, task.ID, model.TaskCancelled, "")
	require.NoError(t, err)

	_, err = f.task.Update(ctx, "admin", task.ID, dto.UpdateTaskRequest{Title: strPtr("Too late")})
	require.ErrorIs(t, err, pkgerrors.TaskNotOpen)
}

func TestRateTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(day, "08:00"))
	f.dir.add(worker("A", "Cleaning"))
	task := f.pendingTask("A", "Cleaning")

	_, err := f.task.Rate(ctx, "admin", task.ID, 4)
	require.ErrorIs(t, err, pkgerrors.TaskNotCompleted)

	_, err = f.task.UpdateStatus(ctx, "A", false, task.ID, model.TaskInProgress, "")
	require.NoError(t, err)
	_, err = f.task.UpdateStatus(ctx, "A", false, task.ID, model.TaskCompleted, "")
	require.NoError(t, err)

	for _, bad := range []int{0, 6, -1} {
		_, err = f.task.Rate(ctx, "admin", task.ID, bad)
		require.ErrorIs(t, err, pkgerrors.InvalidTaskRating)
	}

	rated, err := f.task.Rate(ctx, "admin", task.ID, 5)
	require.NoError(t, err)
	require.NotNil(t, rated.Rating)
	require.Equal(t, 5, *rated.Rating)

	stored, err := f.tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Rating)
	require.Equal(t, 5, *stored.Rating)

	_, err = f.task.Rate(ctx, "admin", 999, 3)
	require.ErrorIs(t, err, pkgerrors.TaskNotFound)
}

func TestDeleteTaskFreesWorkload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(day, "08:00"))
	f.dir.add(worker("A", "Cleaning"))
	task := f.pendingTask("A", "Cleaning")
	f.pendingTask("A", "Cleaning")

	n, err := f.tasks.CountOpen(ctx, "A", day)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, f.task.Delete(ctx, "admin", task.ID))

	_, err = f.task.Get(ctx, task.ID)
	require.ErrorIs(t, err, pkgerrors.TaskNotFound)
	n, err = f.tasks.CountOpen(ctx, "A", day)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.ErrorIs(t, f.task.Delete(ctx, "admin", task.ID), pkgerrors.TaskNotFound)
}

func TestAdminTaskList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(day, "08:00"))
	f.dir.add(worker("A", "Cleaning"))
	f.dir.add(worker("B", "Cleaning"))
	low := f.tasks.put(model.Task{Title: "low", Category: "Cleaning", Date: day, Location: "L1",
		Priority: model.PriorityLow, Status: model.TaskPending, AssignedTo: "A", EstimatedMinutes: 30})
	urgent := f.tasks.put(model.Task{Title: "urgent", Category: "Emergency", Date: day, Location: "L2",
		Priority: model.PriorityUrgent, Status: model.TaskPending, AssignedTo: "B", EstimatedMinutes: 30})
	later := f.tasks.put(model.Task{Title: "later", Category: "Cleaning", Date: "2024-06-02", Location: "L3",
		Priority: model.PriorityMedium, Status: model.TaskPending, AssignedTo: "A", EstimatedMinutes: 30})

	page, err := f.task.List(ctx, dto.TaskListQuery{})
	require.NoError(t, err)
	require.Equal(t, int64(3), page.Total)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 20, page.Limit)
	require.Len(t, page.Tasks, 3)
	// 日期倒序，同日按优先级
	require.Equal(t, []int64{later.ID, urgent.ID, low.ID},
		[]int64{page.Tasks[0].ID, page.Tasks[1].ID, page.Tasks[2].ID})

	page, err = f.task.List(ctx, dto.TaskListQuery{Date: day, AssignedTo: "A"})
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	require.Equal(t, low.ID, page.Tasks[0].ID)

	page, err = f.task.List(ctx, dto.TaskListQuery{Status: "pending", Limit: 2, Page: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), page.Total)
	require.Len(t, page.Tasks, 1)
	require.Equal(t, low.ID, page.Tasks[0].ID)

	page, err = f.task.List(ctx, dto.TaskListQuery{Category: "Emergency", Priority: "urgent"})
	require.NoError(t, err)
	require.Len(t, page.Tasks, 1)
	require.Equal(t, urgent.ID, page.Tasks[0].ID)

	_, err = f.task.List(ctx, dto.TaskListQuery{Date: "06/01/2024"})
	require.ErrorIs(t, err, pkgerrors.InvalidRequest)
	_, err = f.task.List(ctx, dto.TaskListQuery{Status: "done"})
	require.ErrorIs(t, err, pkgerrors.InvalidRequest)
	_, err = f.task.List(ctx, dto.TaskListQuery{Priority: "asap"})
	require.ErrorIs(t, err, pkgerrors.InvalidTaskPriority)
}
