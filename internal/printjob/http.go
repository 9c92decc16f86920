package printjob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Submitter は印刷ジョブを受け付けるサービスが実装します。
type Submitter interface {
	Submit(ctx context.Context, settings Settings, uploads []Upload) (*Submission, error)
}

// JobReader はジョブを参照するサービスが実装します。
type JobReader interface {
	Get(ctx context.Context, jobID string) (*JobDetail, error)
}

// HandlerOptions はハンドラーの設定です。
type HandlerOptions struct {
	// MaxFileSize を超えるファイルは読み込まずにサイズだけを検証へ渡します。
	MaxFileSize int64
}

// SubmitHandler は POST /api/print-jobs のハンドラーを返します。
func SubmitHandler(svc Submitter, opts HandlerOptions) gin.HandlerFunc {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"code":    CodeInvalidInput,
				"message": "multipart/form-data で印刷設定とファイルを送信してください。",
			})
			return
		}
		defer form.RemoveAll()

		files := form.File["files[]"]
		if len(files) == 0 {
			files = form.File["files"]
		}

		uploads, err := readUploads(files, opts.MaxFileSize)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"code":    CodeInvalidInput,
				"message": err.Error(),
			})
			return
		}

		submission, err := svc.Submit(c.Request.Context(), parseSettings(c), uploads)
		if err != nil {
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"jobId":   submission.JobID,
			"message": "印刷ジョブを受け付けました。",
			"data":    submission,
		})
	}
}

// JobHandler は GET /api/print-jobs/:id のハンドラーを返します。
func JobHandler(svc JobReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    detail,
		})
	}
}

// parseSettings はフォーム値から印刷設定を組み立てます。未指定の項目は既定値です。
func parseSettings(c *gin.Context) Settings {
	def := DefaultSettings()
	s := Settings{
		ColorMode:   ColorMode(formValue(c, "colorMode", string(def.ColorMode))),
		Sides:       Sides(formValue(c, "sides", string(def.Sides))),
		Orientation: Orientation(formValue(c, "orientation", string(def.Orientation))),
		PageRange:   PageRangeMode(formValue(c, "pageRange", string(def.PageRange))),
		CustomRange: c.PostForm("customRange"),
		Copies:      def.Copies,
		Printer:     formValue(c, "printer", def.Printer),
	}
	if raw, ok := c.GetPostForm("copies"); ok && strings.TrimSpace(raw) != "" {
		copies, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			// 数値でない部数は検証で弾かれる
			copies = 0
		}
		s.Copies = copies
	}
	return s
}

func formValue(c *gin.Context, key, fallback string) string {
	v := strings.TrimSpace(c.PostForm(key))
	if v == "" {
		return fallback
	}
	return v
}

func readUploads(files []*multipart.FileHeader, maxFileSize int64) ([]Upload, error) {
	uploads := make([]Upload, 0, len(files))
	for i, fh := range files {
		u := Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
		}
		if fh.Size <= maxFileSize {
			data, err := readFileHeader(fh)
			if err != nil {
				return nil, fmt.Errorf("%d件目のファイル（%s）を読み込めませんでした。", i+1, fh.Filename)
			}
			u.Data = data
			u.Size = int64(len(data))
		}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func respondWithError(c *gin.Context, err error) {
	_ = c.Error(err)

	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		status, message := statusFor(apiErr)
		body := gin.H{
			"success": false,
			"code":    apiErr.Code,
			"message": message,
		}
		if apiErr.File != "" && apiErr.Kind != KindPersistence {
			body["file"] = apiErr.File
		}
		c.JSON(status, body)
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"success": false,
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"code":    CodeInternal,
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}

func statusFor(e *Error) (int, string) {
	switch e.Kind {
	case KindValidation:
		if e.Code == CodeLimitExceeded {
			return http.StatusRequestEntityTooLarge, e.Message
		}
		return http.StatusBadRequest, e.Message
	case KindNotFound:
		return http.StatusNotFound, e.Message
	case KindStorage:
		return http.StatusInternalServerError, e.Message
	default:
		// 永続化エラーの詳細はログにのみ残す
		return http.StatusInternalServerError, "サーバー内部でエラーが発生しました。"
	}
}
