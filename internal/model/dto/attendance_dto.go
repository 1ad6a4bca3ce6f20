package dto

import "StaffOps/internal/model"

// ========== Attendance 相关 DTO ==========

// CheckInRequest 上班打卡
type CheckInRequest struct {
	Location string `json:"location"`
}

// CheckOutRequest 下班打卡
type CheckOutRequest struct {
	Location string `json:"location"`
	Notes    string `json:"notes"`
}

// MarkAbsentRequest 管理员手动标记缺勤
type MarkAbsentRequest struct {
	WorkerID string `json:"worker_id"`
	Date     string `json:"date"`
	Reason   string `json:"reason"`
}

// ChangeStatusRequest 管理员修改当天考勤状态
type ChangeStatusRequest struct {
	WorkerID string `json:"worker_id"`
	Date     string `json:"date"` // 为空表示当天，其他日期会被拒绝
	Status   string `json:"status"`
	Reason   string `json:"reason"`
}

// HistoryQuery 考勤历史查询参数，month 形如 2024-06
type HistoryQuery struct {
	Month string `query:"month"`
	Page  int    `query:"page"`
	Limit int    `query:"limit"`
}

// 当天展示状态
const (
	TodayNotCheckedIn = "not-checked-in"
	TodayCheckedIn    = "checked-in"
	TodayCheckedOut   = "checked-out"
	TodayAbsent       = "absent"
	TodayLeave        = "leave"
)

// TodayStatusData 员工当天考勤视图
type TodayStatusData struct {
	Record     *model.AttendanceRecord `json:"record,omitempty"`
	Date       string                  `json:"date"`
	Status     string                  `json:"status"`
	WorkStart  string                  `json:"work_start"`
	WorkEnd    string                  `json:"work_end"`
	AutoMarked bool                    `json:"auto_marked"`
}

// HistoryPage 分页结果
type HistoryPage struct {
	Records []model.AttendanceRecord `json:"records"`
	Page    int                      `json:"page"`
	Limit   int                      `json:"limit"`
	Total   int64                    `json:"total"`
}

// DailySummary 管理员当天考勤汇总
type DailySummary struct {
	Date            string  `json:"date"`
	TotalWorkers    int     `json:"total_workers"`
	Present         int     `json:"present"`
	Late            int     `json:"late"`
	CheckedOut      int     `json:"checked_out"`
	StillWorking    int     `json:"still_working"`
	Absent          int     `json:"absent"`
	AutoAbsent      int     `json:"auto_absent"`
	ManualAbsent    int     `json:"manual_absent"`
	ApprovedLeave   int     `json:"approved_leave"`
	PendingLeave    int     `json:"pending_leave"`
	NotMarked       int     `json:"not_marked"`
	AttendanceRate  float64 `json:"attendance_rate"`
	PunctualityRate float64 `json:"punctuality_rate"`
}

// AttendanceSweepResult 自动缺勤扫描结果
type AttendanceSweepResult struct {
	Date    string   `json:"date"`
	Marked  []string `json:"marked"`
	Skipped int      `json:"skipped"`
	Failed  []string `json:"failed,omitempty"`
}

// ========== Leave 相关 DTO ==========

// ApplyLeaveRequest 请假申请
type ApplyLeaveRequest struct {
	Date   string `json:"date"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// DecideLeaveRequest 审批请假
type DecideLeaveRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

// LeaveDecision 审批结果，驳回时 Record 为空
type LeaveDecision struct {
	Record       *model.AttendanceRecord `json:"record,omitempty"`
	AttendanceID int64                   `json:"attendance_id"`
	Approval     model.LeaveApproval     `json:"approval"`
	Deleted      bool                    `json:"deleted"`
}

// PendingLeaveItem 待审批请假
type PendingLeaveItem struct {
	Record     model.AttendanceRecord `json:"record"`
	WorkerName string                 `json:"worker_name,omitempty"`
	DaysUntil  int                    `json:"days_until"`
	Urgent     bool                   `json:"urgent"`
}

// PendingLeavesData 待审批列表，按距请假日天数升序
type PendingLeavesData struct {
	Items  []PendingLeaveItem `json:"items"`
	Total  int                `json:"total"`
	Urgent int                `json:"urgent"`
}
