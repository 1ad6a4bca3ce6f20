package model

import (
	"time"

	"gorm.io/gorm"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
	TaskReassigned TaskStatus = "reassigned"
)

// OpenTaskStatuses 计入工作量的状态
var OpenTaskStatuses = []TaskStatus{TaskPending, TaskInProgress, TaskReassigned}

// ReassignableStatuses 仍代表待开始工作的状态，只有这些状态允许改派
var ReassignableStatuses = []TaskStatus{TaskPending, TaskReassigned}

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:    {TaskInProgress, TaskCancelled, TaskReassigned},
	TaskReassigned: {TaskInProgress, TaskCancelled, TaskReassigned},
	TaskInProgress: {TaskCompleted, TaskCancelled},
}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskCancelled, TaskReassigned:
		return true
	}
	return false
}

// CanTransitionTo 完成和取消是终态
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Open 未结束，计入工作量
func (s TaskStatus) Open() bool {
	for _, open := range OpenTaskStatuses {
		if s == open {
			return true
		}
	}
	return false
}

func (s TaskStatus) Reassignable() bool {
	return s == TaskPending || s == TaskReassigned
}

// TaskPriority 优先级
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// TaskCategories 可选的任务类别
var TaskCategories = []string{"Cleaning", "Maintenance", "Event Setup", "Tea Service", "Waste Management", "Emergency", "Other"}

func ValidTaskCategory(category string) bool {
	for _, c := range TaskCategories {
		if c == category {
			return true
		}
	}
	return false
}

// ReassignmentReason 改派原因
type ReassignmentReason string

const (
	ReasonUserAbsent     ReassignmentReason = "user_absent"
	ReasonUserOverloaded ReassignmentReason = "user_overloaded"
	ReasonManualOverride ReassignmentReason = "manual_override"
)

func (r ReassignmentReason) Valid() bool {
	switch r {
	case ReasonUserAbsent, ReasonUserOverloaded, ReasonManualOverride:
		return true
	}
	return false
}

// DefaultEstimatedMinutes 未填写预计时长时的默认值
const DefaultEstimatedMinutes = 60

// Task 工作任务
type Task struct {
	BaseModel
	Title              string             `gorm:"type:varchar(200);not null" json:"title"`
	Description        string             `gorm:"type:text" json:"description,omitempty"`
	Category           string             `gorm:"type:varchar(64);not null;index" json:"category"`
	Date               string             `gorm:"type:varchar(10);not null;index:idx_tasks_date_status,priority:1" json:"date"`
	StartTime          string             `gorm:"type:varchar(5)" json:"start_time,omitempty"`
	Location           string             `gorm:"type:varchar(128);not null" json:"location"`
	Priority           TaskPriority       `gorm:"type:varchar(16);not null" json:"priority"`
	Status             TaskStatus         `gorm:"type:varchar(16);not null;index:idx_tasks_date_status,priority:2" json:"status"`
	AssignedTo         string             `gorm:"type:varchar(64);not null;index" json:"assigned_to"`
	AssignedBy         string             `gorm:"type:varchar(64)" json:"assigned_by,omitempty"`
	OriginalAssignee   *string            `gorm:"type:varchar(64)" json:"original_assignee,omitempty"`
	IsReassigned       bool               `gorm:"not null" json:"is_reassigned"`
	ReassignmentReason ReassignmentReason `gorm:"type:varchar(32)" json:"reassignment_reason,omitempty"`
	ReassignedAt       *time.Time         `json:"reassigned_at,omitempty"`
	EstimatedMinutes   int                `gorm:"not null" json:"estimated_minutes"`
	CompletedAt        *time.Time         `json:"completed_at,omitempty"`
	Notes              string             `gorm:"type:text" json:"notes,omitempty"`
	Rating             *int               `gorm:"type:smallint" json:"rating,omitempty"`
	History            []TaskReassignment `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"reassignment_history"`
	DeletedAt          gorm.DeletedAt     `gorm:"index" json:"-"`
}

func (Task) TableName() string {
	return "tasks"
}

// 评分范围
const (
	MinTaskRating = 1
	MaxTaskRating = 5
)

// TaskFilter 管理员任务列表的筛选条件，空值表示不过滤
type TaskFilter struct {
	Date       string
	Status     TaskStatus
	AssignedTo string
	Priority   TaskPriority
	Category   string
}

// TaskDetails 不影响指派关系的可编辑字段
type TaskDetails struct {
	Title            string
	Description      string
	Category         string
	StartTime        string
	Location         string
	Priority         TaskPriority
	EstimatedMinutes int
	Notes            string
}

// Details 取出当前可编辑字段
func (t *Task) Details() TaskDetails {
	return TaskDetails{
		Title:            t.Title,
		Description:      t.Description,
		Category:         t.Category,
		StartTime:        t.StartTime,
		Location:         t.Location,
		Priority:         t.Priority,
		EstimatedMinutes: t.EstimatedMinutes,
		Notes:            t.Notes,
	}
}

// ApplyDetails 写回可编辑字段
func (t *Task) ApplyDetails(d TaskDetails) {
	t.Title = d.Title
	t.Description = d.Description
	t.Category = d.Category
	t.StartTime = d.StartTime
	t.Location = d.Location
	t.Priority = d.Priority
	t.EstimatedMinutes = d.EstimatedMinutes
	t.Notes = d.Notes
}

// TaskReassignment 改派历史，只追加
type TaskReassignment struct {
	ID       int64              `gorm:"primaryKey;autoIncrement" json:"-"`
	TaskID   int64              `gorm:"not null;index" json:"-"`
	FromUser string             `gorm:"type:varchar(64);not null" json:"from_user"`
	ToUser   string             `gorm:"type:varchar(64);not null" json:"to_user"`
	Reason   ReassignmentReason `gorm:"type:varchar(32);not null" json:"reason"`
	At       time.Time          `gorm:"not null" json:"timestamp"`
}

func (TaskReassignment) TableName() string {
	return "task_reassignments"
}
