// Package pdf は pdfcpu を利用したPDFの構造解析を提供します。
package pdf

import (
	"context"
	"fmt"
	"io"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageCounter はPDFを構造解析して厳密なページ数を返します。
// pagecount.ExactCounter を満たします。
type PageCounter struct {
	conf *model.Configuration
}

// NewPageCounter は PageCounter を作成します。
// pdfcpu の設定ディレクトリは使わず、検証は緩和モードで行います。
func NewPageCounter() *PageCounter {
	pdfapi.DisableConfigDir()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PageCounter{conf: conf}
}

// CountPages は rs のページ数を返します。
func (p *PageCounter) CountPages(ctx context.Context, rs io.ReadSeeker) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if rs == nil {
		return 0, fmt.Errorf("pdf reader is nil")
	}

	pages, err := pdfapi.PageCount(rs, p.conf)
	if err != nil {
		return 0, fmt.Errorf("PDFの解析に失敗しました: %w", err)
	}
	return pages, nil
}
