package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const TaskSessionRefresh = "session:refresh"

// SessionRefreshPayload names the browser session to refresh and the
// expiry of the tokens the task was scheduled for.
type SessionRefreshPayload struct {
	SessionKey string `json:"sessionKey"`
	ExpiresAt  int64  `json:"expiresAt"`
}

func NewSessionRefreshTask(payload SessionRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionRefresh, data), nil
}

func ParseSessionRefreshPayload(task *asynq.Task) (SessionRefreshPayload, error) {
	var payload SessionRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SessionRefreshPayload{}, err
	}
	if payload.SessionKey == "" {
		return SessionRefreshPayload{}, fmt.Errorf("session refresh task without session key")
	}
	return payload, nil
}

// sessionRefreshTaskID makes rescheduling the same tokens idempotent.
func sessionRefreshTaskID(payload SessionRefreshPayload) string {
	return fmt.Sprintf("%s:%s:%d", TaskSessionRefresh, payload.SessionKey, payload.ExpiresAt)
}
