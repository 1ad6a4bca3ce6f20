package dto

import "StaffOps/internal/model"

// ========== Task 相关 DTO ==========

// CreateTaskRequest 创建任务
type CreateTaskRequest struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	Category         string `json:"category"`
	Date             string `json:"date"`
	StartTime        string `json:"start_time"`
	Location         string `json:"location"`
	Priority         string `json:"priority"`
	AssignedTo       string `json:"assigned_to"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}

// BulkCreateTaskRequest 批量创建
type BulkCreateTaskRequest struct {
	Tasks []CreateTaskRequest `json:"tasks"`
}

// UpdateTaskStatusRequest 更新任务状态
type UpdateTaskStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// ReassignTaskRequest 手动改派
type ReassignTaskRequest struct {
	WorkerID string `json:"worker_id"`
}

// CreateTaskResult 创建结果；若指派人不可用会被自动改派
type CreateTaskResult struct {
	Task          *model.Task `json:"task"`
	Reassigned    bool        `json:"reassigned"`
	ReassignError string      `json:"reassign_error,omitempty"`
}

// ItemResult 批处理单项结果
type ItemResult struct {
	Index      int    `json:"index"`
	TaskID     int64  `json:"task_id,omitempty"`
	Success    bool   `json:"success"`
	AssignedTo string `json:"assigned_to,omitempty"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message,omitempty"`
}

// BatchResult 批处理汇总
type BatchResult struct {
	BatchID    string       `json:"batch_id,omitempty"`
	Successful []ItemResult `json:"successful"`
	Failed     []ItemResult `json:"failed"`
}

// Candidate 改派候选人
type Candidate struct {
	WorkerID string `json:"worker_id"`
	Name     string `json:"name"`
	Workload int    `json:"workload"`
}

// TaskDaySummary 管理员当天任务汇总
type TaskDaySummary struct {
	Date       string         `json:"date"`
	Total      int            `json:"total"`
	Reassigned int            `json:"reassigned"`
	ByStatus   map[string]int `json:"by_status"`
	ByCategory map[string]int `json:"by_category"`
}

// UpdateTaskRequest 编辑任务，仅覆盖非空字段；指派人与日期不在此修改
type UpdateTaskRequest struct {
	Title            *string `json:"title"`
	Description      *string `json:"description"`
	Category         *string `json:"category"`
	StartTime        *string `json:"start_time"`
	Location         *string `json:"location"`
	Priority         *string `json:"priority"`
	EstimatedMinutes *int    `json:"estimated_minutes"`
	Notes            *string `json:"notes"`
	AssignedTo       *string `json:"assigned_to"`
	Date             *string `json:"date"`
}

// RateTaskRequest 完成后评分
type RateTaskRequest struct {
	Rating int `json:"rating"`
}

// TaskListQuery 管理员任务列表查询参数
type TaskListQuery struct {
	Date       string `query:"date"`
	Status     string `query:"status"`
	AssignedTo string `query:"assigned_to"`
	Priority   string `query:"priority"`
	Category   string `query:"category"`
	Page       int    `query:"page"`
	Limit      int    `query:"limit"`
}

// TaskPage 分页结果
type TaskPage struct {
	Tasks []model.Task `json:"tasks"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int64        `json:"total"`
}
