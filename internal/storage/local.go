package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Local はローカルファイルシステムに保存する Backend です（開発環境・単一ノード用）。
type Local struct {
	root string
}

// NewLocal は root 配下に保存する Local を作成します。
func NewLocal(root string) *Local {
	return &Local{root: root}
}

// Root は保存先のルートディレクトリを返します。
func (l *Local) Root() string {
	return l.root
}

// Put はパーティションディレクトリを作成し、一時ファイル経由で書き込みます。
// 失敗時は一時ファイルを削除するため、途中までのファイルが保存名で見えることはありません。
func (l *Local) Put(ctx context.Context, key, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(l.root, filepath.FromSlash(key))
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("保存ディレクトリの作成に失敗しました: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("ファイルの書き込みに失敗しました: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("ファイルの書き込みに失敗しました: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("ファイルのクローズに失敗しました: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o640); err != nil {
		return "", fmt.Errorf("ファイル権限の設定に失敗しました: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return "", fmt.Errorf("ファイルの配置に失敗しました: %w", err)
	}
	committed = true
	return dst, nil
}
