package queue

import (
	"encoding/json"
	"fmt"

	"StaffOps/internal/model"
	"StaffOps/storage/mq"
)

// RoutingKey 例如 workforce.leave_applied
func RoutingKey(event model.EventType) string {
	return mq.WorkforceRoutingPrefix + string(event)
}

func encodeEvent(evt model.WorkforceEvent) ([]byte, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workforce event: %w", err)
	}
	return body, nil
}

func decodeEvent(body []byte) (model.WorkforceEvent, error) {
	var evt model.WorkforceEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return evt, fmt.Errorf("failed to unmarshal workforce event: %w", err)
	}
	if evt.EventType == "" || evt.WorkerID == "" {
		return evt, fmt.Errorf("workforce event missing event_type or worker_id")
	}
	return evt, nil
}
