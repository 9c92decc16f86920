package printjob

import (
	"errors"
	"fmt"
)

// Kind はエラーの分類です。
type Kind string

const (
	KindValidation  Kind = "validation"
	KindStorage     Kind = "storage"
	KindPersistence Kind = "persistence"
	KindNotFound    Kind = "not_found"
)

// APIレスポンスに載せるエラーコード。
const (
	CodeInvalidInput    = "INVALID_INPUT"
	CodeUnsupportedType = "UNSUPPORTED_TYPE"
	CodeLimitExceeded   = "LIMIT_EXCEEDED"
	CodeStorageFailed   = "STORAGE_FAILED"
	CodeInternal        = "INTERNAL_ERROR"
	CodeJobNotFound     = "JOB_NOT_FOUND"
)

// リポジトリ境界で使う番兵エラーです。
var (
	ErrJobNotFound    = errors.New("print job not found")
	ErrDuplicateJobID = errors.New("duplicate print job id")
)

// Error はクライアントへ返せる分類済みのエラーです。
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// File は失敗したファイルの元のファイル名です（ファイル単位のエラーのみ）。
	File string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newValidationError(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func newStorageError(file, message string, err error) *Error {
	return &Error{Kind: KindStorage, Code: CodeStorageFailed, Message: message, File: file, Err: err}
}

func newPersistenceError(file, message string, err error) *Error {
	return &Error{Kind: KindPersistence, Code: CodeInternal, Message: message, File: file, Err: err}
}

func newNotFoundError(jobID string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    CodeJobNotFound,
		Message: fmt.Sprintf("ジョブ %s が見つかりません。", jobID),
		Err:     ErrJobNotFound,
	}
}

// IsKind は err が指定した分類の *Error かどうかを返します。
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
