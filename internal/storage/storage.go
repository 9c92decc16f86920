// Package storage はアップロードファイルの保存先を抽象化します。
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Backend は保存キーに対してバイト列を書き込む保存先です。
// 戻り値はレコードに記録する保存場所（ファイルパスやオブジェクトURL）です。
type Backend interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// StoredFile は保存済みファイルの情報です。
type StoredFile struct {
	StoredName string
	Key        string
	Path       string
	Size       int64
}

// ErrInvalidName は保存名を組み立てられない入力を表します。
var ErrInvalidName = errors.New("invalid file name")

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// FileStore は保存名と日付パーティションを決めて Backend に書き込みます。
type FileStore struct {
	backend Backend
	now     func() time.Time
}

// NewFileStore は FileStore を作成します。now が nil の場合は time.Now を使います。
func NewFileStore(backend Backend, now func() time.Time) *FileStore {
	if now == nil {
		now = time.Now
	}
	return &FileStore{backend: backend, now: now}
}

// Store は1ファイルを保存します。seq は1始まりの通番です。
func (s *FileStore) Store(ctx context.Context, jobID string, seq int, originalName, contentType string, data []byte) (*StoredFile, error) {
	if s == nil || s.backend == nil {
		return nil, fmt.Errorf("storage backend is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, err := StoredFilename(jobID, seq, originalName)
	if err != nil {
		return nil, err
	}
	key := path.Join(PartitionDir(s.now()), name)

	location, err := s.backend.Put(ctx, key, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", name, err)
	}

	return &StoredFile{
		StoredName: name,
		Key:        key,
		Path:       location,
		Size:       int64(len(data)),
	}, nil
}

// StoredFilename は {jobID}_{seq}_{base}.{ext} 形式の保存名を返します。
// 拡張子は小文字化し、ベース名の [A-Za-z0-9._-] 以外の文字は _ に置き換えます。
func StoredFilename(jobID string, seq int, originalName string) (string, error) {
	if strings.TrimSpace(jobID) == "" || unsafeChars.MatchString(jobID) {
		return "", fmt.Errorf("%w: job id %q", ErrInvalidName, jobID)
	}
	if seq < 1 {
		return "", fmt.Errorf("%w: sequence %d", ErrInvalidName, seq)
	}

	// ブラウザによってはパス付きで送られてくるため最後の要素だけを使う
	base := filepath.Base(strings.ReplaceAll(originalName, `\`, "/"))
	if base == "." || base == "/" {
		base = ""
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))

	stem = unsafeChars.ReplaceAllString(stem, "_")
	if stem == "" {
		stem = "file"
	}
	ext = unsafeChars.ReplaceAllString(ext, "_")

	return fmt.Sprintf("%s_%d_%s.%s", jobID, seq, stem, ext), nil
}

// PartitionDir は YYYY/MM/DD 形式の日付パーティションを返します。
func PartitionDir(t time.Time) string {
	return t.Format("2006/01/02")
}
