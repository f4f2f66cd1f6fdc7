package amqp

import (
	"encoding/json"
	"time"
)

// ReportMessage carries only the task id. The worker loads the job from the
// shared job store.
type ReportMessage struct {
	TaskID    string    `json:"task_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewReportMessage creates a message for a task.
func NewReportMessage(taskID string) *ReportMessage {
	return &ReportMessage{TaskID: taskID, Timestamp: time.Now().UTC()}
}

// ToJSON converts the message to JSON bytes.
func (m *ReportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportMessageFromJSON decodes a message and checks it names a task.
func ReportMessageFromJSON(data []byte) (*ReportMessage, error) {
	var msg ReportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TaskID == "" {
		return nil, errMissingTaskID
	}
	return &msg, nil
}
