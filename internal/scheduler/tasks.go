package scheduler

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskCampaignTick = "campaigns.tick"

const TaskTagsRecalculate = "tags.recalculate"

const TaskPriorityRecalculate = "priority.recalculate"

// RecalculatePayload scopes a recalculation. A nil target means a full pass.
type RecalculatePayload struct {
	TargetID *uuid.UUID `json:"targetId,omitempty"`
}

func NewCampaignTickTask() *asynq.Task {
	return asynq.NewTask(TaskCampaignTick, nil)
}

func NewTagsRecalculateTask(payload RecalculatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTagsRecalculate, data), nil
}

func NewPriorityRecalculateTask(payload RecalculatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPriorityRecalculate, data), nil
}

// ParseRecalculatePayload decodes either recalculation task. An empty
// payload is a full pass.
func ParseRecalculatePayload(task *asynq.Task) (RecalculatePayload, error) {
	var payload RecalculatePayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return RecalculatePayload{}, err
	}
	return payload, nil
}
