// Package jobs は Redis を使ったジョブ保存と、受付済みジョブの Asynq キューへの通知を提供します。
package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/yourusername/smart-printer/internal/printjob"
)

const (
	// TaskTypeJobSubmitted は受付済みジョブを外部の配信処理へ渡すタスク種別です。
	TaskTypeJobSubmitted = "print:job_submitted"
	// QueueName は通知タスクを投入するキューです。
	QueueName = "print"
)

// SubmittedPayload は通知タスクのペイロードです。
type SubmittedPayload struct {
	JobID      string             `json:"jobId"`
	TotalPages int                `json:"totalPages"`
	Copies     int                `json:"copies"`
	Printer    string             `json:"printer"`
	ColorMode  printjob.ColorMode `json:"colorMode"`
	Sides      printjob.Sides     `json:"sides"`
}

// NewSubmittedTask はジョブから通知タスクを組み立てます。
func NewSubmittedTask(job printjob.Job, maxRetry int) (*asynq.Task, error) {
	if job.JobID == "" {
		return nil, fmt.Errorf("job id is required")
	}
	body, err := json.Marshal(SubmittedPayload{
		JobID:      job.JobID,
		TotalPages: job.TotalPages,
		Copies:     job.Settings.Copies,
		Printer:    job.Settings.Printer,
		ColorMode:  job.Settings.ColorMode,
		Sides:      job.Settings.Sides,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeJobSubmitted, body, asynq.Queue(QueueName), asynq.MaxRetry(maxRetry)), nil
}

// ParseSubmittedPayload はタスクのペイロードを復元します（配信側の実装用）。
func ParseSubmittedPayload(task *asynq.Task) (*SubmittedPayload, error) {
	if task.Type() != TaskTypeJobSubmitted {
		return nil, fmt.Errorf("unexpected task type: %s", task.Type())
	}
	var payload SubmittedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return nil, err
	}
	if payload.JobID == "" {
		return nil, fmt.Errorf("missing jobId in payload")
	}
	return &payload, nil
}
