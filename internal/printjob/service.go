package printjob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourusername/smart-printer/internal/doctype"
	"github.com/yourusername/smart-printer/internal/pagecount"
	"github.com/yourusername/smart-printer/internal/storage"
)

// createAttempts はジョブID衝突時に CreateJob を試行する回数です。
const createAttempts = 3

// Repository はジョブとファイルの永続化を担います。
type Repository interface {
	// CreateJob はジョブを保存します。ID が既に存在する場合は ErrDuplicateJobID を返します。
	CreateJob(ctx context.Context, job *Job) error
	// AddFile はファイルを追加し、ジョブの total_pages を全ファイルの合計で再計算して返します。
	AddFile(ctx context.Context, jobID string, file *File) (int, error)
	// GetJobByID は存在しない場合 ErrJobNotFound を返します。
	GetJobByID(ctx context.Context, jobID string) (*Job, error)
	// GetFilesByJobID は追加順のファイル一覧を返します。
	GetFilesByJobID(ctx context.Context, jobID string) ([]File, error)
}

// FileStore はアップロードファイルを保存します。
type FileStore interface {
	Store(ctx context.Context, jobID string, seq int, originalName, contentType string, data []byte) (*storage.StoredFile, error)
}

// PageCounter はファイル種別に応じてページ数を算出します。
type PageCounter interface {
	Count(ctx context.Context, contentType string, data []byte) pagecount.Result
}

// Notifier は受付済みジョブを外部の配信処理へ通知します。
type Notifier interface {
	NotifySubmitted(ctx context.Context, job Job) error
}

// Options は Service の任意設定です。
type Options struct {
	Rules    Rules
	Notifier Notifier
	Logger   *zap.Logger
	Now      func() time.Time
	NewID    func(time.Time) string
}

// Service は印刷ジョブの受付と参照を行います。
type Service struct {
	repo     Repository
	store    FileStore
	counter  PageCounter
	notifier Notifier
	rules    Rules
	logger   *zap.Logger
	now      func() time.Time
	newID    func(time.Time) string
}

// NewService は Service を作成します。
func NewService(repo Repository, store FileStore, counter PageCounter, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = NewJobID
	}
	return &Service{
		repo:     repo,
		store:    store,
		counter:  counter,
		notifier: opts.Notifier,
		rules:    opts.Rules.withDefaults(),
		logger:   opts.Logger,
		now:      opts.Now,
		newID:    opts.NewID,
	}
}

// Rules は適用中の受付ルールを返します。
func (s *Service) Rules() Rules {
	return s.rules
}

// NewJobID は JOB_YYYYMMDD_HHMMSS_<12桁の16進> 形式のジョブIDを生成します。
func NewJobID(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("JOB_%s_%s", t.Format("20060102_150405"), suffix)
}

// Submit は印刷ジョブを受け付けます。
// 検証後にジョブを作成し、ファイルを順に 保存→ページ数算出→登録 します。
// 途中で失敗した場合、それまでに登録したジョブとファイルはそのまま残ります。
func (s *Service) Submit(ctx context.Context, settings Settings, uploads []Upload) (*Submission, error) {

	settings = normalizeSettings(settings)
	uploads = resolveContentTypes(uploads)

	metas := make([]FileMeta, len(uploads))
	for i, u := range uploads {
		metas[i] = u.Meta()
	}
	if err := Validate(settings, metas, s.rules); err != nil {
		return nil, err
	}

	job, err := s.createJob(ctx, settings)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(zap.String("job_id", job.JobID))

	results := make([]FileResult, 0, len(uploads))
	total := job.TotalPages
	for i, u := range uploads {
		seq := i + 1

		stored, err := s.store.Store(ctx, job.JobID, seq, u.Filename, u.ContentType, u.Data)
		if err != nil {
			logger.Error("file store failed", zap.Int("seq", seq), zap.String("file", u.Filename), zap.Error(err))
			return nil, newStorageError(u.Filename, fmt.Sprintf("%d件目のファイル（%s）の保存に失敗しました。", seq, u.Filename), err)
		}

		count := s.counter.Count(ctx, u.ContentType, u.Data)

		file := &File{
			JobID:            job.JobID,
			OriginalFilename: u.Filename,
			StoredFilename:   stored.StoredName,
			FilePath:         stored.Path,
			FileSize:         stored.Size,
			FileType:         u.ContentType,
			PageCount:        count.Pages,
			PageCountMethod:  count.Method,
			CreatedAt:        s.now(),
		}
		total, err = s.repo.AddFile(ctx, job.JobID, file)
		if err != nil {
			logger.Error("file record failed", zap.Int("seq", seq), zap.String("file", u.Filename), zap.Error(err))
			return nil, newPersistenceError(u.Filename, fmt.Sprintf("%d件目のファイル（%s）の登録に失敗しました。", seq, u.Filename), err)
		}

		results = append(results, FileResult{
			OriginalFilename: file.OriginalFilename,
			StoredFilename:   file.StoredFilename,
			PageCount:        file.PageCount,
			PageCountMethod:  file.PageCountMethod,
			FileSize:         file.FileSize,
			FileType:         file.FileType,
		})
	}
	job.TotalPages = total

	logger.Info("print job accepted", zap.Int("files", len(results)), zap.Int("total_pages", total))

	if s.notifier != nil {
		if err := s.notifier.NotifySubmitted(ctx, *job); err != nil {
			logger.Warn("submission notify failed", zap.Error(err))
		}
	}

	return &Submission{
		JobID:      job.JobID,
		Files:      results,
		TotalPages: total,
		Settings:   job.Settings,
		Status:     job.Status,
		CreatedAt:  job.CreatedAt,
	}, nil
}

func (s *Service) createJob(ctx context.Context, settings Settings) (*Job, error) {
	var lastErr error
	for attempt := 1; attempt <= createAttempts; attempt++ {
		now := s.now()
		job := &Job{
			JobID:     s.newID(now),
			Settings:  settings,
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err := s.repo.CreateJob(ctx, job)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, ErrDuplicateJobID) {
			s.logger.Error("create print job failed", zap.String("job_id", job.JobID), zap.Error(err))
			return nil, newPersistenceError("", "印刷ジョブの作成に失敗しました。", err)
		}
		s.logger.Warn("job id collision, regenerating", zap.String("job_id", job.JobID), zap.Int("attempt", attempt))
		lastErr = err
	}
	return nil, newPersistenceError("", "印刷ジョブの作成に失敗しました。", lastErr)
}

// Get はジョブとファイル一覧を返します。
func (s *Service) Get(ctx context.Context, jobID string) (*JobDetail, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, newValidationError(CodeInvalidInput, "ジョブIDを指定してください。")
	}

	job, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return nil, newNotFoundError(jobID)
		}
		s.logger.Error("get print job failed", zap.String("job_id", jobID), zap.Error(err))
		return nil, newPersistenceError("", "印刷ジョブの取得に失敗しました。", err)
	}

	files, err := s.repo.GetFilesByJobID(ctx, jobID)
	if err != nil {
		s.logger.Error("get print files failed", zap.String("job_id", jobID), zap.Error(err))
		return nil, newPersistenceError("", "印刷ジョブの取得に失敗しました。", err)
	}
	if files == nil {
		files = []File{}
	}
	return &JobDetail{Job: job, Files: files}, nil
}

func normalizeSettings(s Settings) Settings {
	s.CustomRange = strings.TrimSpace(s.CustomRange)
	if s.PageRange != PageRangeCustom {
		s.CustomRange = ""
	}
	s.Printer = strings.TrimSpace(s.Printer)
	return s
}

func resolveContentTypes(uploads []Upload) []Upload {
	out := make([]Upload, len(uploads))
	for i, u := range uploads {
		u.ContentType = doctype.Resolve(u.ContentType, u.Data)
		out[i] = u
	}
	return out
}
