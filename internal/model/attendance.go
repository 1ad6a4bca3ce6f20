package model

import (
	"time"
)

// AttendanceStatus 考勤状态
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLeave   AttendanceStatus = "leave"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceLate, AttendanceAbsent, AttendanceLeave:
		return true
	}
	return false
}

// LeaveApproval 请假审批状态
type LeaveApproval string

const (
	LeavePending  LeaveApproval = "pending"
	LeaveApproved LeaveApproval = "approved"
	LeaveRejected LeaveApproval = "rejected"
)

// LeaveType 请假类型
type LeaveType string

const (
	LeaveSick      LeaveType = "sick"
	LeaveCasual    LeaveType = "casual"
	LeaveEmergency LeaveType = "emergency"
	LeavePersonal  LeaveType = "personal"
	LeaveOther     LeaveType = "other"
)

func (t LeaveType) Valid() bool {
	switch t {
	case LeaveSick, LeaveCasual, LeaveEmergency, LeavePersonal, LeaveOther:
		return true
	}
	return false
}

// Punch 一次上/下班打卡
type Punch struct {
	Time     *time.Time `gorm:"column:time" json:"time,omitempty"`
	Location string     `gorm:"column:location;type:varchar(128)" json:"location,omitempty"`
}

// LeaveDetail 请假信息，仅 status=leave 时有值
type LeaveDetail struct {
	Reason     string        `gorm:"column:reason;type:varchar(500)" json:"reason,omitempty"`
	Type       LeaveType     `gorm:"column:type;type:varchar(32)" json:"type,omitempty"`
	Approval   LeaveApproval `gorm:"column:approval;type:varchar(16);index" json:"approval,omitempty"`
	ApprovedBy string        `gorm:"column:approved_by;type:varchar(64)" json:"approved_by,omitempty"`
	DecidedAt  *time.Time    `gorm:"column:decided_at" json:"decided_at,omitempty"`
	Notes      string        `gorm:"column:notes;type:varchar(500)" json:"notes,omitempty"`
}

// AttendanceRecord 每个员工每天至多一条
type AttendanceRecord struct {
	BaseModel
	WorkerID      string           `gorm:"type:varchar(64);not null;uniqueIndex:idx_attendance_worker_date,priority:1" json:"worker_id"`
	Date          string           `gorm:"type:varchar(10);not null;uniqueIndex:idx_attendance_worker_date,priority:2;index" json:"date"`
	CheckIn       Punch            `gorm:"embedded;embeddedPrefix:check_in_" json:"check_in"`
	CheckOut      Punch            `gorm:"embedded;embeddedPrefix:check_out_" json:"check_out"`
	WorkedMinutes *int             `json:"worked_minutes,omitempty"`
	Status        AttendanceStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	AbsentReason  string           `gorm:"type:varchar(255)" json:"absent_reason,omitempty"`
	Leave         LeaveDetail      `gorm:"embedded;embeddedPrefix:leave_" json:"leave"`
	ManualEntry   bool             `gorm:"not null" json:"manual_entry"`
	Notes         string           `gorm:"type:text" json:"notes,omitempty"`
}

func (AttendanceRecord) TableName() string {
	return "attendance_records"
}

func (r *AttendanceRecord) HasCheckIn() bool {
	return r.CheckIn.Time != nil
}

func (r *AttendanceRecord) HasCheckOut() bool {
	return r.CheckOut.Time != nil
}

// AutoMarked 由定时扫描标记的缺勤
func (r *AttendanceRecord) AutoMarked() bool {
	return r.Status == AttendanceAbsent && !r.ManualEntry
}

// BlocksAvailability 缺勤或已批准的请假使员工当天不可排班
func (r *AttendanceRecord) BlocksAvailability() bool {
	if r.Status == AttendanceAbsent {
		return true
	}
	return r.Leave.Approval == LeaveApproved
}

// AppendNote 备注只追加不覆盖
func (r *AttendanceRecord) AppendNote(note string) {
	if note == "" {
		return
	}
	if r.Notes == "" {
		r.Notes = note
		return
	}
	r.Notes += "\n" + note
}

// ClearLeave 清空请假字段
func (r *AttendanceRecord) ClearLeave() {
	r.Leave = LeaveDetail{}
}
