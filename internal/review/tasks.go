// Package review queues unverifiable cart lines for manual price review.
package review

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/toko-priceguard/internal/integrity"
)

// TaskUnverifiableLines is the asynq task type for a review request.
const TaskUnverifiableLines = "review:unverifiable_lines"

// Payload describes the unverifiable lines of one accepted validation.
type Payload struct {
	ValidationID string                       `json:"validationId"`
	BuyerID      string                       `json:"buyerId,omitempty"`
	Lines        []integrity.UnverifiableLine `json:"lines"`
	SubmittedAt  time.Time                    `json:"submittedAt"`
}

// NewTask encodes payload as an asynq task.
func NewTask(payload Payload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUnverifiableLines, data), nil
}

// ParsePayload decodes a review task.
func ParsePayload(task *asynq.Task) (Payload, error) {
	var payload Payload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return Payload{}, err
	}
	return payload, nil
}
