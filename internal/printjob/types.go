// Package printjob は印刷ジョブの受付（検証・保存・ページ数算出・永続化）と参照を提供します。
package printjob

import (
	"time"

	"github.com/yourusername/smart-printer/internal/pagecount"
)

// ColorMode はカラー設定です。
type ColorMode string

const (
	ColorBlackWhite ColorMode = "black-white"
	ColorColor      ColorMode = "color"
)

// Sides は片面/両面の設定です。
type Sides string

const (
	SidesSingle Sides = "single"
	SidesDuplex Sides = "duplex"
)

// Orientation は用紙の向きです。
type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// PageRangeMode は印刷範囲の指定方法です。
type PageRangeMode string

const (
	PageRangeAll    PageRangeMode = "all"
	PageRangeCustom PageRangeMode = "custom"
)

// Status はジョブの状態です。
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

const (
	MinCopies = 1
	MaxCopies = 99
)

// DefaultPrinters は PRINTERS 未設定時に受け付けるプリンタ識別子です。
var DefaultPrinters = []string{"printer-1", "printer-2", "printer-3"}

// Settings は印刷設定です。
type Settings struct {
	ColorMode   ColorMode     `json:"colorMode"`
	Sides       Sides         `json:"sides"`
	Orientation Orientation   `json:"orientation"`
	PageRange   PageRangeMode `json:"pageRange"`
	CustomRange string        `json:"customRange"`
	Copies      int           `json:"copies"`
	Printer     string        `json:"printer"`
}

// DefaultSettings はフォーム未指定時の既定値です。
func DefaultSettings() Settings {
	return Settings{
		ColorMode:   ColorBlackWhite,
		Sides:       SidesSingle,
		Orientation: OrientationPortrait,
		PageRange:   PageRangeAll,
		Copies:      1,
		Printer:     DefaultPrinters[0],
	}
}

// Job は印刷ジョブのレコードです。
type Job struct {
	JobID      string    `json:"jobId"`
	Settings   Settings  `json:"settings"`
	TotalPages int       `json:"totalPages"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// File はジョブに属する保存済みファイルのレコードです。作成後に変更されることはありません。
type File struct {
	ID               int64            `json:"id"`
	JobID            string           `json:"jobId"`
	OriginalFilename string           `json:"originalFilename"`
	StoredFilename   string           `json:"storedFilename"`
	FilePath         string           `json:"filePath"`
	FileSize         int64            `json:"fileSize"`
	FileType         string           `json:"fileType"`
	PageCount        int              `json:"pageCount"`
	PageCountMethod  pagecount.Method `json:"pageCountMethod"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// Upload は受け付けたアップロードファイル1件です。
// Data が読み込まれていない場合（上限超過など）は Size のみで検証されます。
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// Meta は検証用のメタデータを返します。
func (u Upload) Meta() FileMeta {
	size := u.Size
	if size == 0 {
		size = int64(len(u.Data))
	}
	return FileMeta{Name: u.Filename, ContentType: u.ContentType, Size: size}
}

// FileResult は受付結果に含めるファイルごとの情報です。
type FileResult struct {
	OriginalFilename string           `json:"originalFilename"`
	StoredFilename   string           `json:"storedFilename"`
	PageCount        int              `json:"pageCount"`
	PageCountMethod  pagecount.Method `json:"pageCountMethod"`
	FileSize         int64            `json:"fileSize"`
	FileType         string           `json:"fileType"`
}

// Submission は受付成功時の結果です。
type Submission struct {
	JobID      string       `json:"jobId"`
	Files      []FileResult `json:"files"`
	TotalPages int          `json:"totalPages"`
	Settings   Settings     `json:"settings"`
	Status     Status       `json:"status"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// JobDetail はジョブとファイル一覧です。
type JobDetail struct {
	Job   *Job   `json:"job"`
	Files []File `json:"files"`
}
