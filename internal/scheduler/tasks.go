// Package scheduler runs background jobs over asynq: the periodic allocation
// sweep that retries requests left open when no agent was eligible.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskAllocationSweep re-attempts assignment for the unassigned backlog.
const TaskAllocationSweep = "allocation:sweep"

// AllocationSweepPayload bounds how many requests one sweep run touches.
type AllocationSweepPayload struct {
	Batch int `json:"batch"`
}

// NewAllocationSweepTask builds an asynq task for a sweep run.
func NewAllocationSweepTask(payload AllocationSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAllocationSweep, data), nil
}

// ParseAllocationSweepPayload decodes a sweep task payload.
func ParseAllocationSweepPayload(task *asynq.Task) (AllocationSweepPayload, error) {
	var payload AllocationSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AllocationSweepPayload{}, err
	}
	return payload, nil
}
