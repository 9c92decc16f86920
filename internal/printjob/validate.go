package printjob

import (
	"fmt"
	"slices"
	"strings"

	"github.com/yourusername/smart-printer/internal/doctype"
)

const (
	DefaultMaxFiles    = 3
	DefaultMaxFileSize = 10 * 1024 * 1024
)

// Rules は受付時の上限値と許可プリンタです。ゼロ値の項目は既定値になります。
type Rules struct {
	MaxFiles    int
	MaxFileSize int64
	Printers    []string
}

// DefaultRules は既定の Rules を返します。
func DefaultRules() Rules {
	return Rules{
		MaxFiles:    DefaultMaxFiles,
		MaxFileSize: DefaultMaxFileSize,
		Printers:    slices.Clone(DefaultPrinters),
	}
}

func (r Rules) withDefaults() Rules {
	if r.MaxFiles <= 0 || r.MaxFiles > DefaultMaxFiles {
		r.MaxFiles = DefaultMaxFiles
	}
	if r.MaxFileSize <= 0 || r.MaxFileSize > DefaultMaxFileSize {
		r.MaxFileSize = DefaultMaxFileSize
	}
	if len(r.Printers) == 0 {
		r.Printers = DefaultPrinters
	}
	return r
}

// FileMeta は検証に必要なファイル情報です。
type FileMeta struct {
	Name        string
	ContentType string
	Size        int64
}

// Validate は印刷設定とファイル一覧を検証し、最初に見つかった違反を *Error で返します。
// 副作用はありません。
func Validate(settings Settings, files []FileMeta, rules Rules) error {
	rules = rules.withDefaults()

	if err := validateSettings(settings, rules); err != nil {
		return err
	}

	if len(files) == 0 {
		return newValidationError(CodeInvalidInput, "アップロードされたファイルが見つかりません。")
	}
	if len(files) > rules.MaxFiles {
		return newValidationError(CodeLimitExceeded, fmt.Sprintf("アップロードできるファイルは最大%d件です。", rules.MaxFiles))
	}

	for i, f := range files {
		if !doctype.Allowed(f.ContentType) {
			e := newValidationError(CodeUnsupportedType, fmt.Sprintf("%d件目のファイル（%s）は未対応の形式です（%s）。", i+1, f.Name, f.ContentType))
			e.File = f.Name
			return e
		}
		if f.Size > rules.MaxFileSize {
			e := newValidationError(CodeLimitExceeded, fmt.Sprintf("%d件目のファイル（%s）がサイズ上限（%dMB）を超えています。", i+1, f.Name, rules.MaxFileSize/(1024*1024)))
			e.File = f.Name
			return e
		}
	}
	return nil
}

func validateSettings(s Settings, rules Rules) error {
	switch s.ColorMode {
	case ColorBlackWhite, ColorColor:
	default:
		return invalidSetting("colorMode", string(s.ColorMode))
	}
	switch s.Sides {
	case SidesSingle, SidesDuplex:
	default:
		return invalidSetting("sides", string(s.Sides))
	}
	switch s.Orientation {
	case OrientationPortrait, OrientationLandscape:
	default:
		return invalidSetting("orientation", string(s.Orientation))
	}
	switch s.PageRange {
	case PageRangeAll, PageRangeCustom:
	default:
		return invalidSetting("pageRange", string(s.PageRange))
	}
	if !slices.Contains(rules.Printers, s.Printer) {
		return invalidSetting("printer", s.Printer)
	}

	if s.PageRange == PageRangeCustom && strings.TrimSpace(s.CustomRange) == "" {
		return newValidationError(CodeInvalidInput, "ページ範囲を指定してください。")
	}
	if s.Copies < MinCopies || s.Copies > MaxCopies {
		return newValidationError(CodeInvalidInput, fmt.Sprintf("部数は%d〜%dの範囲で指定してください。", MinCopies, MaxCopies))
	}
	return nil
}

func invalidSetting(field, value string) *Error {
	return newValidationError(CodeInvalidInput, fmt.Sprintf("印刷設定 %s の値が不正です: %q", field, value))
}
