package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yourusername/smart-printer/internal/pagecount"
	"github.com/yourusername/smart-printer/internal/printjob"
)

const (
	jobKeyPrefix  = "print:job:"
	fileIDCounter = "print:file:seq"
	maxTxRetries  = 10
)

// Store は printjob.Repository の Redis 実装です。
// ジョブは JSON 文字列、ファイルは追加順のリストとして保存します。
type Store struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

var _ printjob.Repository = (*Store)(nil)

// NewStore は Store を作成します。ttl が 0 の場合は期限なしで保存します。
func NewStore(rdb redis.UniversalClient, ttl time.Duration) *Store {
	return &Store{
		rdb: rdb,
		ttl: ttl,
	}
}

// CreateJob はジョブを保存します。同じIDが存在する場合は printjob.ErrDuplicateJobID を返します。
func (s *Store) CreateJob(ctx context.Context, job *printjob.Job) error {
	if job == nil || job.JobID == "" {
		return fmt.Errorf("job id is required")
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}
	job.Status = printjob.StatusPending
	job.TotalPages = 0

	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, jobKey(job.JobID), payload, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create job %s: %w", job.JobID, err)
	}
	if !ok {
		return fmt.Errorf("create job %s: %w", job.JobID, printjob.ErrDuplicateJobID)
	}
	return nil
}

// AddFile はファイルをリストに追加し、WATCH 下で total_pages を全ファイルの合計で再計算します。
func (s *Store) AddFile(ctx context.Context, jobID string, file *printjob.File) (int, error) {
	if file == nil {
		return 0, fmt.Errorf("file is nil")
	}
	id, err := s.rdb.Incr(ctx, fileIDCounter).Result()
	if err != nil {
		return 0, fmt.Errorf("allocate file id: %w", err)
	}

	now := time.Now().UTC()
	file.ID = id
	file.JobID = jobID
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	if file.PageCountMethod == "" {
		file.PageCountMethod = pagecount.MethodEstimated
	}
	filePayload, err := json.Marshal(file)
	if err != nil {
		return 0, err
	}

	key := jobKey(jobID)
	fkey := filesKey(jobID)
	var total int

	txf := func(tx *redis.Tx) error {
		job, err := getJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		files, err := listFiles(ctx, tx, jobID)
		if err != nil {
			return err
		}

		sum := file.PageCount
		for _, f := range files {
			sum += f.PageCount
		}
		job.TotalPages = sum
		job.UpdatedAt = now
		jobPayload, err := json.Marshal(job)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, fkey, filePayload)
			pipe.Set(ctx, key, jobPayload, redis.KeepTTL)
			if s.ttl > 0 {
				pipe.ExpireAt(ctx, fkey, job.CreatedAt.Add(s.ttl))
			}
			return nil
		})
		if err == nil {
			total = sum
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key, fkey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("add file to %s: %w", jobID, err)
		}
		return total, nil
	}
	return 0, fmt.Errorf("add file to %s: %w", jobID, redis.TxFailedErr)
}

// GetJobByID はジョブを返します。存在しない場合は printjob.ErrJobNotFound です。
func (s *Store) GetJobByID(ctx context.Context, jobID string) (*printjob.Job, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	return getJob(ctx, s.rdb, jobID)
}

// GetFilesByJobID は追加順のファイル一覧を返します。
func (s *Store) GetFilesByJobID(ctx context.Context, jobID string) ([]printjob.File, error) {
	return listFiles(ctx, s.rdb, jobID)
}

func getJob(ctx context.Context, c redis.Cmdable, jobID string) (*printjob.Job, error) {
	data, err := c.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, printjob.ErrJobNotFound
		}
		return nil, err
	}
	var job printjob.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	return &job, nil
}

func listFiles(ctx context.Context, c redis.Cmdable, jobID string) ([]printjob.File, error) {
	items, err := c.LRange(ctx, filesKey(jobID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	files := make([]printjob.File, 0, len(items))
	for _, item := range items {
		var f printjob.File
		if err := json.Unmarshal([]byte(item), &f); err != nil {
			return nil, fmt.Errorf("decode file of %s: %w", jobID, err)
		}
		files = append(files, f)
	}
	return files, nil
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

func filesKey(id string) string {
	return jobKeyPrefix + id + ":files"
}
