package errors

import stderrors "errors"

func (d Definition) Error() string {
	return d.Message
}

// Is 按错误码匹配，便于 fmt.Errorf("%w") 包装后仍能识别。
func (d Definition) Is(target error) bool {
	t, ok := target.(Definition)
	if !ok {
		return false
	}
	return d.Code == t.Code
}

// WithMessage 返回同码的新 Definition，用于携带上下文说明。
func (d Definition) WithMessage(msg string) Definition {
	d.Message = msg
	return d
}

// Kind 错误分类，决定 HTTP 状态码与批处理结果的呈现方式。
type Kind string

const (
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindInvalidState Kind = "invalid_state"
	KindNotFound     Kind = "not_found"
	KindNoCandidates Kind = "no_candidates"
	KindExternal     Kind = "external"
	KindUnavailable  Kind = "unavailable"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindRateLimited  Kind = "rate_limited"
	KindInternal     Kind = "internal"
)

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
	Kind    Kind
}

// 通用错误。
var (
	InvalidRequest = Definition{Code: "INVALID_REQUEST", Message: "Invalid request", Kind: KindValidation}
	Unauthorized   = Definition{Code: "UNAUTHORIZED", Message: "Unauthorized", Kind: KindUnauthorized}
	Forbidden      = Definition{Code: "FORBIDDEN", Message: "Permission denied", Kind: KindForbidden}
	InvalidUserID  = Definition{Code: "INVALID_USER_ID", Message: "Invalid worker ID", Kind: KindValidation}
	WorkerNotFound = Definition{Code: "WORKER_NOT_FOUND", Message: "Worker not found", Kind: KindNotFound}
	InvalidToken   = Definition{Code: "INVALID_TOKEN", Message: "Invalid or expired token", Kind: KindUnauthorized}

	TooManyRequests = Definition{Code: "TOO_MANY_REQUESTS", Message: "Too many requests, please retry later", Kind: KindRateLimited}
)

// 考勤模块错误。
var (
	AttendanceConflict    = Definition{Code: "ATTENDANCE_CONFLICT", Message: "Attendance already recorded for this date", Kind: KindConflict}
	AlreadyCheckedIn      = Definition{Code: "ALREADY_CHECKED_IN", Message: "Already checked in today", Kind: KindConflict}
	AlreadyCheckedOut     = Definition{Code: "ALREADY_CHECKED_OUT", Message: "Already checked out today", Kind: KindConflict}
	OnLeaveToday          = Definition{Code: "ON_LEAVE_TODAY", Message: "Cannot check in while on leave", Kind: KindConflict}
	CheckInNotFound       = Definition{Code: "CHECK_IN_NOT_FOUND", Message: "No check-in found for today", Kind: KindNotFound}
	AttendanceNotFound    = Definition{Code: "ATTENDANCE_NOT_FOUND", Message: "Attendance record not found", Kind: KindNotFound}
	ExcessiveDelay        = Definition{Code: "EXCESSIVE_DELAY", Message: "Check-in refused: too late, marked absent", Kind: KindConflict}
	StatusChangeNotToday  = Definition{Code: "STATUS_CHANGE_NOT_TODAY", Message: "Status can only be changed for the current date", Kind: KindValidation}
	InvalidAttendanceStat = Definition{Code: "INVALID_ATTENDANCE_STATUS", Message: "Invalid attendance status", Kind: KindValidation}
)

// 请假模块错误。
var (
	LeaveDateNotFuture  = Definition{Code: "LEAVE_DATE_NOT_FUTURE", Message: "Leave can only be applied for future dates", Kind: KindValidation}
	NotALeaveRecord     = Definition{Code: "NOT_A_LEAVE_RECORD", Message: "Attendance record is not a leave request", Kind: KindValidation}
	LeaveAlreadyDecided = Definition{Code: "LEAVE_ALREADY_DECIDED", Message: "Leave request already decided", Kind: KindConflict}
)

// 任务与调度模块错误。
var (
	TaskNotFound          = Definition{Code: "TASK_NOT_FOUND", Message: "Task not found", Kind: KindNotFound}
	TaskNotOpen           = Definition{Code: "TASK_NOT_OPEN", Message: "Task is not open for reassignment", Kind: KindInvalidState}
	TaskTransitionInvalid = Definition{Code: "TASK_TRANSITION_INVALID", Message: "Task status transition not allowed", Kind: KindInvalidState}
	TaskConcurrentUpdate  = Definition{Code: "TASK_CONCURRENT_UPDATE", Message: "Task was modified concurrently", Kind: KindConflict}
	SameAssignee          = Definition{Code: "SAME_ASSIGNEE", Message: "Task is already assigned to this worker", Kind: KindValidation}
	NoCandidates          = Definition{Code: "NO_CANDIDATES", Message: "No eligible worker available for reassignment", Kind: KindNoCandidates}
	InvalidTaskPriority   = Definition{Code: "INVALID_TASK_PRIORITY", Message: "Invalid task priority", Kind: KindValidation}
	InvalidTaskCategory   = Definition{Code: "INVALID_TASK_CATEGORY", Message: "Invalid task category", Kind: KindValidation}
	InvalidTaskRating     = Definition{Code: "INVALID_TASK_RATING", Message: "Rating must be between 1 and 5", Kind: KindValidation}
	TaskNotCompleted      = Definition{Code: "TASK_NOT_COMPLETED", Message: "Only completed tasks can be rated", Kind: KindInvalidState}
)

// 外部依赖错误，只用于日志与指标，不向调用方传播。
var (
	NotifyFailed = Definition{Code: "NOTIFY_FAILED", Message: "Notification dispatch failed", Kind: KindExternal}
	CircuitOpen  = Definition{Code: "CIRCUIT_OPEN", Message: "Downstream circuit breaker is open", Kind: KindExternal}

	ServiceUnavailable = Definition{Code: "SERVICE_UNAVAILABLE", Message: "Dependency not ready", Kind: KindUnavailable}
	Internal           = Definition{Code: "INTERNAL_SERVER_ERROR", Message: "Internal server error, please retry later", Kind: KindInternal}
)

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	InvalidRequest.Code:        InvalidRequest,
	Unauthorized.Code:          Unauthorized,
	Forbidden.Code:             Forbidden,
	InvalidUserID.Code:         InvalidUserID,
	WorkerNotFound.Code:        WorkerNotFound,
	InvalidToken.Code:          InvalidToken,
	TooManyRequests.Code:       TooManyRequests,
	AttendanceConflict.Code:    AttendanceConflict,
	AlreadyCheckedIn.Code:      AlreadyCheckedIn,
	AlreadyCheckedOut.Code:     AlreadyCheckedOut,
	OnLeaveToday.Code:          OnLeaveToday,
	CheckInNotFound.Code:       CheckInNotFound,
	AttendanceNotFound.Code:    AttendanceNotFound,
	ExcessiveDelay.Code:        ExcessiveDelay,
	StatusChangeNotToday.Code:  StatusChangeNotToday,
	InvalidAttendanceStat.Code: InvalidAttendanceStat,
	LeaveDateNotFuture.Code:    LeaveDateNotFuture,
	NotALeaveRecord.Code:       NotALeaveRecord,
	LeaveAlreadyDecided.Code:   LeaveAlreadyDecided,
	TaskNotFound.Code:          TaskNotFound,
	TaskNotOpen.Code:           TaskNotOpen,
	TaskTransitionInvalid.Code: TaskTransitionInvalid,
	TaskConcurrentUpdate.Code:  TaskConcurrentUpdate,
	SameAssignee.Code:          SameAssignee,
	NoCandidates.Code:          NoCandidates,
	InvalidTaskPriority.Code:   InvalidTaskPriority,
	InvalidTaskCategory.Code:   InvalidTaskCategory,
	InvalidTaskRating.Code:     InvalidTaskRating,
	TaskNotCompleted.Code:      TaskNotCompleted,
	NotifyFailed.Code:          NotifyFailed,
	CircuitOpen.Code:           CircuitOpen,
	ServiceUnavailable.Code:    ServiceUnavailable,
	Internal.Code:              Internal,
}

// Get 根据错误码返回 Definition，若不存在则返回空 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}

// As 从错误链中取出 Definition。
func As(err error) (Definition, bool) {
	var def Definition
	if stderrors.As(err, &def) {
		return def, true
	}
	return Definition{}, false
}

// KindOf 返回错误链上第一个 Definition 的分类，非业务错误返回空串。
func KindOf(err error) Kind {
	if def, ok := As(err); ok {
		return def.Kind
	}
	return ""
}
