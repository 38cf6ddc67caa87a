package jobs

import (
	"encoding/json"
	"strconv"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-grn/internal/grn"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGRNApproved verifies the ledger postings of a freshly approved GRN.
	TaskGRNApproved = "grn:approved"
	// TaskGRNIntegrityScan re-verifies every GRN approved in a trailing window.
	TaskGRNIntegrityScan = "grn:integrity_scan"
)

// IntegrityScanPayload configures the trailing window of the integrity scan.
type IntegrityScanPayload struct {
	Days int `json:"days"`
}

// NewGRNApprovedTask builds the post-approval verification task. The task id is derived from
// the GRN so a repeated publication of the same approval is collapsed by the queue.
func NewGRNApprovedTask(evt grn.ApprovedEvent) (*asynq.Task, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGRNApproved, data,
		asynq.TaskID("grn-approved-"+strconv.FormatInt(evt.GRNID, 10)),
		asynq.MaxRetry(5),
	), nil
}

// NewGRNIntegrityScanTask builds the scheduled integrity scan task.
func NewGRNIntegrityScanTask(days int) (*asynq.Task, error) {
	data, err := json.Marshal(IntegrityScanPayload{Days: days})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGRNIntegrityScan, data), nil
}
