package helm

import (
	"fmt"
	"os"
)

// WriteValuesFile は設定ペイロードを一時ファイルに書き、そのパスと
// クリーンアップ関数を返す。ファイルは単一のデプロイ呼び出しにスコープされ、
// 呼び出し側はcleanupを必ず実行すること。
func WriteValuesFile(config string) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", "helmgate-values-*.yaml")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create values file: %w", err)
	}
	cleanup = func() { os.Remove(f.Name()) }

	if _, err := f.WriteString(config); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write values file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close values file: %w", err)
	}
	return f.Name(), cleanup, nil
}
