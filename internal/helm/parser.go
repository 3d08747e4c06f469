package helm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/helmgate/internal/model"
)

// helm出力に含まれるマーカー文字列。
// 非構造化テキストを準安定なワイヤフォーマットとして扱うため、
// フォーマットに関する仮定はすべてこのファイルに閉じ込める。
const (
	deployedMarker        = "STATUS: DEPLOYED"
	noResultsMarker       = "No results found"
	errorMarker           = "Error"
	releaseNotFoundMarker = "not found"
)

// ErrNoResults はカタログ検索が明示的に「該当なし」を返したことを表す。
var ErrNoResults = errors.New("no matching applications")

// ErrMalformedOutput はhelm出力が期待する形式でないことを表す。
// 呼び出し元の入力ではなくGatewayの対象側に起因するデータ整合性エラーで、
// InternalErrorとして扱う。
var ErrMalformedOutput = errors.New("unexpected helm output")

// splitLines は出力を行に分割する。空の末尾行は落とす。
func splitLines(output string) []string {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// ParseSearch はカタログ検索出力（ヘッダ行 + タブ区切りデータ行）を
// アプリケーション一覧にパースする。
// データ行が0件（空カタログ）はエラーではない。4列未満の行は
// ErrMalformedOutputとなる。
func ParseSearch(output string) ([]model.Application, error) {
	if strings.Contains(output, noResultsMarker) {
		return nil, ErrNoResults
	}

	lines := splitLines(output)
	if len(lines) == 0 {
		return nil, nil
	}

	// 先頭行はヘッダ
	apps := make([]model.Application, 0, len(lines)-1)
	for _, line := range lines[1:] {
		cols := strings.Split(line, "\t")
		for i := range cols {
			cols[i] = strings.TrimSpace(cols[i])
		}
		if len(cols) < 4 {
			return nil, fmt.Errorf("%w: search row has %d columns, want 4: %q", ErrMalformedOutput, len(cols), line)
		}
		apps = append(apps, model.Application{
			Name:         cols[0],
			ChartVersion: cols[1],
			AppVersion:   cols[2],
			Description:  cols[3],
		})
	}
	return apps, nil
}

// ParseInspect はinspect出力を分類する。出力自体は不透明なテキストで、
// 「見つからない」マーカーを含む場合のみErrNoResultsを返す。
func ParseInspect(output string) (string, error) {
	if strings.Contains(output, errorMarker) {
		return "", ErrNoResults
	}
	return output, nil
}

// InstallOutcome はデプロイ出力の解釈結果を表す。
type InstallOutcome struct {
	Deployed   bool
	Diagnostic string // 失敗時に抽出したエラー行。見つからなければ空
}

// ParseInstallOutput はデプロイ出力を成功/失敗に分類する。
// 成功は「deployed」マーカーの存在で判定する。失敗時は出力を走査し、
// エラーマーカーを含む最初の行を診断として抽出する。
func ParseInstallOutput(output string) InstallOutcome {
	if strings.Contains(output, deployedMarker) {
		return InstallOutcome{Deployed: true}
	}

	outcome := InstallOutcome{}
	for _, line := range splitLines(output) {
		if strings.Contains(line, errorMarker) {
			outcome.Diagnostic = strings.TrimSpace(line)
			break
		}
	}
	return outcome
}

// ParseDeleteOutput は削除出力を分類する。エラーマーカーを含む行がなければ
// 成功。対象のリリースが既に存在しない場合（マーカー行がreleaseNotFoundMarkerを
// 含む場合）も、望んだ状態には到達しているため成功として扱う。
// それ以外のエラー行は診断として返す。
func ParseDeleteOutput(output string) (ok bool, diagnostic string) {
	for _, line := range splitLines(output) {
		if !strings.Contains(line, errorMarker) {
			continue
		}
		if strings.Contains(line, releaseNotFoundMarker) {
			return true, ""
		}
		return false, strings.TrimSpace(line)
	}
	return true, ""
}

// ParseStatusSummary はデプロイ後のステータス一覧出力（ヘッダ行 + 1データ行）
// からリビジョン番号と最終更新時刻を取り出す。
func ParseStatusSummary(output string) (model.InstanceSummary, error) {
	lines := splitLines(output)
	if len(lines) < 2 {
		return model.InstanceSummary{}, fmt.Errorf("%w: status output has no data row", ErrMalformedOutput)
	}

	cols := strings.Split(lines[1], "\t")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	if len(cols) < 3 {
		return model.InstanceSummary{}, fmt.Errorf("%w: status row has %d columns, want at least 3: %q", ErrMalformedOutput, len(cols), lines[1])
	}

	return model.InstanceSummary{
		Revision: cols[1],
		Updated:  cols[2],
	}, nil
}
