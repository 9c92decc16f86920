package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/yourusername/smart-printer/internal/pagecount"
	"github.com/yourusername/smart-printer/internal/printjob"
)

const (
	tableJobs  = "print_jobs"
	tableFiles = "print_files"
)

var jobColumns = []string{
	"job_id", "color_mode", "sides", "orientation", "page_range_type", "custom_range",
	"copies", "printer", "total_pages", "status", "created_at", "updated_at",
}

var fileColumns = []string{
	"id", "job_id", "original_filename", "stored_filename", "file_path", "file_size",
	"file_type", "page_count", "page_count_method", "created_at",
}

// Store は printjob.Repository の SQL 実装です。
type Store struct {
	db      *sql.DB
	pool    *pgxpool.Pool
	dialect string
	logger  *zap.Logger
}

var _ printjob.Repository = (*Store)(nil)

func newStore(db *sql.DB, pool *pgxpool.Pool, name string, logger *zap.Logger) *Store {
	return &Store{db: db, pool: pool, dialect: name, logger: logger}
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

// CreateJob は pending 状態・total_pages=0 でジョブを保存します。
func (s *Store) CreateJob(ctx context.Context, job *printjob.Job) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}
	job.Status = printjob.StatusPending
	job.TotalPages = 0

	st := job.Settings
	query, args := s.builder().Insert(tableJobs).
		Columns(jobColumns...).
		Values(
			job.JobID, string(st.ColorMode), string(st.Sides), string(st.Orientation), string(st.PageRange), st.CustomRange,
			st.Copies, st.Printer, job.TotalPages, string(job.Status), job.CreatedAt, job.UpdatedAt,
		).
		Query()

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create job %s: %w", job.JobID, printjob.ErrDuplicateJobID)
		}
		s.logger.Error("failed to create print job", zap.String("job_id", job.JobID), zap.Error(err))
		return fmt.Errorf("create job %s: %w", job.JobID, err)
	}
	return nil
}

// AddFile はファイルを追加し、同一トランザクション内で total_pages を SUM(page_count) で再計算します。
func (s *Store) AddFile(ctx context.Context, jobID string, file *printjob.File) (total int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	b := s.builder()

	// 同じジョブへの再計算を直列化する
	lock := b.Select("job_id").From(b.Table(tableJobs)).Where(entsql.EQ("job_id", jobID))
	if s.dialect == dialect.Postgres {
		lock.ForUpdate()
	}
	query, args := lock.Query()
	var locked string
	if err = tx.QueryRowContext(ctx, query, args...).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = printjob.ErrJobNotFound
		}
		return 0, fmt.Errorf("add file to %s: %w", jobID, err)
	}

	now := time.Now().UTC()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	if file.PageCountMethod == "" {
		file.PageCountMethod = pagecount.MethodEstimated
	}
	file.JobID = jobID

	query, args = b.Insert(tableFiles).
		Columns(fileColumns[1:]...).
		Values(
			jobID, file.OriginalFilename, file.StoredFilename, file.FilePath, file.FileSize,
			file.FileType, file.PageCount, string(file.PageCountMethod), file.CreatedAt,
		).
		Returning("id").
		Query()
	if err = tx.QueryRowContext(ctx, query, args...).Scan(&file.ID); err != nil {
		return 0, fmt.Errorf("insert file for %s: %w", jobID, err)
	}

	query, args = b.Select("COALESCE(SUM(page_count), 0)").
		From(b.Table(tableFiles)).
		Where(entsql.EQ("job_id", jobID)).
		Query()
	var sum int64
	if err = tx.QueryRowContext(ctx, query, args...).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum pages for %s: %w", jobID, err)
	}
	total = int(sum)

	query, args = b.Update(tableJobs).
		Set("total_pages", total).
		Set("updated_at", now).
		Where(entsql.EQ("job_id", jobID)).
		Query()
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("update total pages for %s: %w", jobID, err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit add file for %s: %w", jobID, err)
	}
	return total, nil
}

// GetJobByID はジョブを返します。存在しない場合は printjob.ErrJobNotFound です。
func (s *Store) GetJobByID(ctx context.Context, jobID string) (*printjob.Job, error) {
	b := s.builder()
	query, args := b.Select(jobColumns...).
		From(b.Table(tableJobs)).
		Where(entsql.EQ("job_id", jobID)).
		Query()

	var (
		job                           printjob.Job
		colorMode, sides, orientation string
		pageRange, status             string
		createdAt, updatedAt          any
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&job.JobID, &colorMode, &sides, &orientation, &pageRange, &job.Settings.CustomRange,
		&job.Settings.Copies, &job.Settings.Printer, &job.TotalPages, &status, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, printjob.ErrJobNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}

	job.Settings.ColorMode = printjob.ColorMode(colorMode)
	job.Settings.Sides = printjob.Sides(sides)
	job.Settings.Orientation = printjob.Orientation(orientation)
	job.Settings.PageRange = printjob.PageRangeMode(pageRange)
	job.Status = printjob.Status(status)
	if job.CreatedAt, err = scanTime(createdAt); err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if job.UpdatedAt, err = scanTime(updatedAt); err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return &job, nil
}

// GetFilesByJobID は追加順（id 昇順）のファイル一覧を返します。
func (s *Store) GetFilesByJobID(ctx context.Context, jobID string) ([]printjob.File, error) {
	b := s.builder()
	query, args := b.Select(fileColumns...).
		From(b.Table(tableFiles)).
		Where(entsql.EQ("job_id", jobID)).
		OrderBy("id").
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list files for %s: %w", jobID, err)
	}
	defer rows.Close()

	files := []printjob.File{}
	for rows.Next() {
		var (
			f         printjob.File
			method    string
			createdAt any
		)
		if err := rows.Scan(
			&f.ID, &f.JobID, &f.OriginalFilename, &f.StoredFilename, &f.FilePath, &f.FileSize,
			&f.FileType, &f.PageCount, &method, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan file for %s: %w", jobID, err)
		}
		f.PageCountMethod = pagecount.Method(method)
		if f.CreatedAt, err = scanTime(createdAt); err != nil {
			return nil, fmt.Errorf("scan file for %s: %w", jobID, err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list files for %s: %w", jobID, err)
	}
	return files, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
