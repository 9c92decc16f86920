// Package pagecount はアップロードされた文書の印刷ページ数を見積もります。
package pagecount

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"go.uber.org/zap"

	"github.com/yourusername/smart-printer/internal/doctype"
)

// BytesPerPage はサイズからページ数を見積もる際の1ページあたりのバイト数です（約50KB）。
const BytesPerPage = 51200

// Method はページ数の算出方法を表します。
type Method string

const (
	MethodExact     Method = "exact"
	MethodEstimated Method = "estimated"
)

// Result はページ数の算出結果です。
type Result struct {
	Pages  int    `json:"pages"`
	Method Method `json:"method"`
}

// Estimated は Method が見積もりかどうかを返します。
func (r Result) Estimated() bool {
	return r.Method == MethodEstimated
}

// ErrUnavailable は厳密なページ数算出機能が組み込まれていないことを表します。
var ErrUnavailable = errors.New("exact page counting is unavailable")

// ExactCounter はPDFを構造解析してページ数を返す機能です。
type ExactCounter interface {
	CountPages(ctx context.Context, rs io.ReadSeeker) (int, error)
}

// Unavailable は常に ErrUnavailable を返す ExactCounter です。
type Unavailable struct{}

// CountPages implements ExactCounter.
func (Unavailable) CountPages(context.Context, io.ReadSeeker) (int, error) {
	return 0, ErrUnavailable
}

// Counter はファイル種別ごとの戦略でページ数を算出します。
type Counter struct {
	pdf    ExactCounter
	logger *zap.Logger
}

// New は Counter を作成します。pdf が nil の場合は Unavailable を使います。
func New(pdf ExactCounter, logger *zap.Logger) *Counter {
	if pdf == nil {
		pdf = Unavailable{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Counter{pdf: pdf, logger: logger}
}

// Count は contentType に応じてページ数を返します。失敗はせず、必要ならサイズからの見積もりに切り替えます。
func (c *Counter) Count(ctx context.Context, contentType string, data []byte) Result {
	size := int64(len(data))
	switch doctype.Normalize(contentType) {
	case doctype.PDF:
		pages, err := c.countPDF(ctx, data)
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				c.logger.Debug("pdf parser unavailable, using size estimation", zap.Int64("size", size))
			} else {
				c.logger.Warn("pdf page count failed, using size estimation", zap.Int64("size", size), zap.Error(err))
			}
			return Result{Pages: Estimate(size), Method: MethodEstimated}
		}
		return Result{Pages: pages, Method: MethodExact}
	case doctype.JPEG, doctype.PNG:
		return Result{Pages: 1, Method: MethodExact}
	default:
		// DOCX ほかは構造解析しない
		return Result{Pages: Estimate(size), Method: MethodEstimated}
	}
}

func (c *Counter) countPDF(ctx context.Context, data []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("pdf parser panicked: %v", r)
		}
	}()

	pages, err = c.pdf.CountPages(ctx, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	if pages < 1 {
		return 0, fmt.Errorf("pdf reports %d pages", pages)
	}
	return pages, nil
}

// Estimate はファイルサイズから max(1, round(size/51200)) でページ数を見積もります。
func Estimate(size int64) int {
	pages := int(math.Round(float64(size) / BytesPerPage))
	if pages < 1 {
		return 1
	}
	return pages
}
