// Package doctype は受け付ける文書の Content-Type を扱います。
package doctype

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// 受け付ける Content-Type
const (
	PDF  = "application/pdf"
	JPEG = "image/jpeg"
	PNG  = "image/png"
	DOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

const octetStream = "application/octet-stream"

var aliases = map[string]string{
	"image/jpg":         JPEG,
	"image/pjpeg":       JPEG,
	"application/x-pdf": PDF,
}

var allowed = map[string]struct{}{
	PDF:  {},
	JPEG: {},
	PNG:  {},
	DOCX: {},
}

// Normalize はパラメータを取り除き、小文字化したうえで別名を正規の型に置き換えます。
func Normalize(contentType string) string {
	ct := strings.TrimSpace(contentType)
	if ct == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(ct); err == nil {
		ct = parsed
	}
	ct = strings.ToLower(ct)
	if canonical, ok := aliases[ct]; ok {
		return canonical
	}
	return ct
}

// Resolve はクライアント申告の Content-Type を正規化します。
// 申告がない、または application/octet-stream の場合だけ内容から判定します。
func Resolve(declared string, data []byte) string {
	ct := Normalize(declared)
	if ct != "" && ct != octetStream {
		return ct
	}
	if len(data) == 0 {
		return ct
	}
	return Normalize(mimetype.Detect(data).String())
}

// Allowed は Content-Type が受付対象かどうかを返します。
func Allowed(contentType string) bool {
	_, ok := allowed[Normalize(contentType)]
	return ok
}

// AllowedList は受付対象の Content-Type を返します（エラーメッセージ用）。
func AllowedList() []string {
	return []string{PDF, JPEG, PNG, DOCX}
}
