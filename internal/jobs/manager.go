package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/yourusername/smart-printer/internal/printjob"
)

const defaultMaxRetry = 3

// Notifier は受付済みジョブを Asynq キューへ投入します。
type Notifier struct {
	client   *asynq.Client
	maxRetry int
	logger   *zap.Logger
}

var _ printjob.Notifier = (*Notifier)(nil)

// NewNotifier は redisURL のキューへ投入する Notifier を作成します。
func NewNotifier(redisURL string, logger *zap.Logger) (*Notifier, error) {
	if redisURL == "" {
		return nil, errors.New("queue redis url is empty")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		client:   asynq.NewClient(opt),
		maxRetry: defaultMaxRetry,
		logger:   logger,
	}, nil
}

// NotifySubmitted は print:job_submitted タスクを投入します。
func (n *Notifier) NotifySubmitted(ctx context.Context, job printjob.Job) error {
	task, err := NewSubmittedTask(job, n.maxRetry)
	if err != nil {
		return err
	}
	info, err := n.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", job.JobID, err)
	}
	n.logger.Debug("submission enqueued", zap.String("job_id", job.JobID), zap.String("task_id", info.ID), zap.String("queue", info.Queue))
	return nil
}

// Close はクライアントを閉じます。
func (n *Notifier) Close() error {
	return n.client.Close()
}
