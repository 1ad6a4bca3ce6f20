package repository

import (
	"fmt"
	"os"

	"gorm.io/gen"

	"StaffOps/internal/model"
	"StaffOps/storage/database"
)

// ========== AttendanceRecord 相关查询接口 ==========

// AttendanceQuerier 考勤报表查询接口
type AttendanceQuerier interface {
	// GetByWorkerAndDate 查询员工某天的考勤记录
	//
	// SELECT * FROM @@table WHERE worker_id = @workerID AND date = @date LIMIT 1
	GetByWorkerAndDate(workerID, date string) (*gen.T, error)

	// ListByDateRange 按日期范围查询考勤（用于导出）
	//
	// SELECT * FROM @@table
	// WHERE date >= @fromDate AND date <= @toDate
	//   {{if status != ""}}
	//   AND status = @status
	//   {{end}}
	// ORDER BY date ASC, worker_id ASC
	ListByDateRange(fromDate, toDate, status string) ([]*gen.T, error)

	// CountByStatusOnDate 统计某天各状态人数
	//
	// SELECT status, COUNT(*) as count
	// FROM @@table
	// WHERE date = @date
	// GROUP BY status
	CountByStatusOnDate(date string) ([]gen.M, error)

	// CountLateByWorker 统计员工某月迟到次数
	//
	// SELECT COUNT(*) FROM @@table
	// WHERE worker_id = @workerID
	//   AND status = 'late'
	//   AND date LIKE CONCAT(@month, '-%')
	CountLateByWorker(workerID, month string) (int64, error)
}

// ========== Task 相关查询接口 ==========

// TaskQuerier 任务报表查询接口
type TaskQuerier interface {
	// ListByAssigneeAndDate 员工某天的任务
	//
	// SELECT * FROM @@table
	// WHERE assigned_to = @workerID AND date = @date AND deleted_at IS NULL
	// ORDER BY start_time ASC, id ASC
	ListByAssigneeAndDate(workerID, date string) ([]*gen.T, error)

	// CountOpenByAssignee 某天各员工未完成任务数
	//
	// SELECT assigned_to, COUNT(*) as count
	// FROM @@table
	// WHERE date = @date
	//   AND status IN ('pending', 'in-progress', 'reassigned')
	//   AND deleted_at IS NULL
	// GROUP BY assigned_to
	CountOpenByAssignee(date string) ([]gen.M, error)

	// CountByCategoryAndStatus 某天按类别、状态统计
	//
	// SELECT category, status, COUNT(*) as count
	// FROM @@table
	// WHERE date = @date AND deleted_at IS NULL
	// GROUP BY category, status
	CountByCategoryAndStatus(date string) ([]gen.M, error)
}

// ========== WorkerProfile 相关查询接口 ==========

// WorkerQuerier 员工档案查询接口
type WorkerQuerier interface {
	// GetByWorkerID 根据 worker_id 查询档案
	//
	// SELECT * FROM @@table WHERE worker_id = @workerID LIMIT 1
	GetByWorkerID(workerID string) (*gen.T, error)

	// ListByDepartment 按部门查询在职员工
	//
	// SELECT * FROM @@table
	// WHERE active = true
	//   {{if department != ""}}
	//   AND department = @department
	//   {{end}}
	// ORDER BY worker_id ASC
	ListByDepartment(department string) ([]*gen.T, error)
}

func Generate() error {
	if err := database.Init(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	db := database.DB()
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	g := gen.NewGenerator(gen.Config{
		OutPath:           "./internal/repository/query", // 生成代码的输出路径
		ModelPkgPath:      "StaffOps/internal/model",
		Mode:              gen.WithDefaultQuery | gen.WithQueryInterface,
		FieldNullable:     true,
		FieldCoverable:    false,
		FieldSignable:     false,
		FieldWithIndexTag: false,
		FieldWithTypeTag:  true,
	})

	g.UseDB(db)

	g.ApplyBasic(
		&model.AttendanceRecord{},
		&model.Task{},
		&model.TaskReassignment{},
		&model.WorkerProfile{},
	)

	g.ApplyInterface(func(AttendanceQuerier) {}, &model.AttendanceRecord{})
	g.ApplyInterface(func(TaskQuerier) {}, &model.Task{})
	g.ApplyInterface(func(WorkerQuerier) {}, &model.WorkerProfile{})

	g.Execute()

	return nil
}

func RunGenerate() {
	if err := Generate(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate code: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Code generation completed successfully!")
}
