package notification

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskTypeDeliver is the asynq task type for delivering one notification
// over one channel.
const TaskTypeDeliver = "notification:deliver"

// DeliverPayload is the serialized payload of a delivery task. One task is
// enqueued per (notification, allowed channel) pair; workers are idempotent
// on resend.
type DeliverPayload struct {
	NotificationID string  `json:"notification_id"`
	Channel        Channel `json:"channel"`
	RecipientID    int64   `json:"recipient_id"`
}

// NewDeliverTask creates an asynq task for a single channel delivery.
func NewDeliverTask(notificationID string, ch Channel, recipientID int64) (*asynq.Task, error) {
	payload, err := json.Marshal(DeliverPayload{
		NotificationID: notificationID,
		Channel:        ch,
		RecipientID:    recipientID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling task payload: %w", err)
	}
	return asynq.NewTask(TaskTypeDeliver, payload), nil
}

// ParseDeliverPayload deserializes the task payload.
func ParseDeliverPayload(data []byte) (*DeliverPayload, error) {
	var p DeliverPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling task payload: %w", err)
	}
	return &p, nil
}
