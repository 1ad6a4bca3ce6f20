package model

// EventType 对外通知事件
type EventType string

const (
	EventLeaveApplied   EventType = "leave_applied"
	EventLeaveDecided   EventType = "leave_decided"
	EventTaskReassigned EventType = "task_reassigned"
)

// WorkforceEvent 投递到 MQ 的通知事件，worker 消费后交给邮件服务
type WorkforceEvent struct {
	MessageID  string                 `json:"message_id"` // 消息唯一ID，用于幂等性检查
	EventType  EventType              `json:"event_type"`
	WorkerID   string                 `json:"worker_id"`
	OccurredAt string                 `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}
