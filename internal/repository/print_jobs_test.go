package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/yourusername/smart-printer/internal/pagecount"
	"github.com/yourusername/smart-printer/internal/printjob"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := Config{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "print.db")}
	store, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func newJob(id string) *printjob.Job {
	created := time.Date(2025, time.March, 7, 14, 30, 0, 0, time.UTC)
	settings := printjob.DefaultSettings()
	settings.PageRange = printjob.PageRangeCustom
	settings.CustomRange = "1-3"
	settings.Copies = 2
	return &printjob.Job{
		JobID:     id,
		Settings:  settings,
		Status:    printjob.StatusPending,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func newFile(name string, pages int) *printjob.File {
	return &printjob.File{
		OriginalFilename: name,
		StoredFilename:   "stored_" + name,
		FilePath:         "/uploads/2025/03/07/stored_" + name,
		FileSize:         2048,
		FileType:         "application/pdf",
		PageCount:        pages,
		PageCountMethod:  pagecount.MethodExact,
	}
}

func TestCreateAndGetJob(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job := newJob("JOB_20250307_143000_aaaaaaaaaaaa")
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob returned error: %v", err)
	}

	got, err := store.GetJobByID(ctx, job.JobID)
	if err != nil {
		t.Fatalf("GetJobByID returned error: %v", err)
	}
	if got.Settings != job.Settings {
		t.Fatalf("settings mismatch: %#v vs %#v", got.Settings, job.Settings)
	}
	if got.TotalPages != 0 || got.Status != printjob.StatusPending {
		t.Fatalf("unexpected initial state: %#v", got)
	}
	if !got.CreatedAt.Equal(job.CreatedAt) {
		t.Fatalf("created_at mismatch: %v vs %v", got.CreatedAt, job.CreatedAt)
	}

	files, err := store.GetFilesByJobID(ctx, job.JobID)
	if err != nil {
		t.Fatalf("GetFilesByJobID returned error: %v", err)
	}
	if files == nil || len(files) != 0 {
		t.Fatalf("expected empty non-nil file list, got %#v", files)
	}
}

func TestCreateJobDuplicate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateJob(ctx, newJob("JOB_DUP")); err != nil {
		t.Fatalf("CreateJob returned error: %v", err)
	}
	err := store.CreateJob(ctx, newJob("JOB_DUP"))
	if !errors.Is(err, printjob.ErrDuplicateJobID) {
		t.Fatalf("expected ErrDuplicateJobID, got %v", err)
	}
}

func TestGetJobNotFound(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.GetJobByID(context.Background(), "JOB_MISSING"); !errors.Is(err, printjob.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestAddFileRecomputesTotal(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	job := newJob("JOB_TOTAL")
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob returned error: %v", err)
	}

	pages := []int{3, 1, 7}
	want := 0
	for i, p := range pages {
		f := newFile(string(rune('a'+i))+".pdf", p)
		total, err := store.AddFile(ctx, job.JobID, f)
		if err != nil {
			t.Fatalf("AddFile returned error: %v", err)
		}
		want += p
		if total != want {
			t.Fatalf("after file %d total = %d, want %d", i+1, total, want)
		}
		if f.ID == 0 {
			t.Fatal("file id should be assigned")
		}
	}

	got, err := store.GetJobByID(ctx, job.JobID)
	if err != nil {
		t.Fatalf("GetJobByID returned error: %v", err)
	}
	if got.TotalPages != 11 {
		t.Fatalf("persisted total = %d, want 11", got.TotalPages)
	}
	if !got.UpdatedAt.After(job.UpdatedAt) {
		t.Fatalf("updated_at should move forward: %v", got.UpdatedAt)
	}

	files, err := store.GetFilesByJobID(ctx, job.JobID)
	if err != nil {
		t.Fatalf("GetFilesByJobID returned error: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(files))
	}
	sum := 0
	for i, f := range files {
		if f.OriginalFilename != string(rune('a'+i))+".pdf" {
			t.Fatalf("files out of insertion order: %#v", files)
		}
		if f.PageCountMethod != pagecount.MethodExact || f.JobID != job.JobID {
			t.Fatalf("unexpected file record: %#v", f)
		}
		sum += f.PageCount
	}
	if sum != got.TotalPages {
		t.Fatalf("sum of files %d != total %d", sum, got.TotalPages)
	}
}

func TestAddFileUnknownJob(t *testing.T) {
	store := openTestStore(t)
	_, err := store.AddFile(context.Background(), "JOB_NONE", newFile("a.pdf", 1))
	if !errors.Is(err, printjob.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestDeleteJobCascadesFiles(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	job := newJob("JOB_CASCADE")
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob returned error: %v", err)
	}
	if _, err := store.AddFile(ctx, job.JobID, newFile("a.pdf", 2)); err != nil {
		t.Fatalf("AddFile returned error: %v", err)
	}

	if _, err := store.db.ExecContext(ctx, "DELETE FROM print_jobs WHERE job_id = ?", job.JobID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	var count int
	if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM print_files WHERE job_id = ?", job.JobID).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("files should be removed with the job, %d remain", count)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "oracle"}, nil); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestWithPragmas(t *testing.T) {
	cases := map[string]string{
		"print.db":                         "print.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		"file:print.db":                    "file:print.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		"print.db?_pragma=foreign_keys(1)": "print.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
	}
	for in, want := range cases {
		if got := withPragmas(in); got != want {
			t.Fatalf("withPragmas(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCreateJobStartsPending(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job := newJob("JOB_20250307_143000_bbbbbbbbbbbb")
	job.Status = printjob.StatusCompleted
	job.TotalPages = 42
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob returned error: %v", err)
	}

	got, err := store.GetJobByID(ctx, job.JobID)
	if err != nil {
		t.Fatalf("GetJobByID returned error: %v", err)
	}
	if got.Status != printjob.StatusPending || got.TotalPages != 0 {
		t.Fatalf("new job should be pending with no pages, got %s/%d", got.Status, got.TotalPages)
	}
}
