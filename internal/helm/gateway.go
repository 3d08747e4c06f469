// Package helm は外部のパッケージデプロイツール（helm CLI）との境界を提供する。
//
// Gatewayはコマンドを実行して生の出力と終了ステータスを返すだけで、
// 出力の意味解釈は一切行わない。解釈はすべてparser.goに隔離されている。
package helm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// CommandResult はコマンド実行の生の結果を表す。
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Output はstdoutとstderrを連結して返す。
// helmはエラー詳細をstderrに書くことがあるため、解釈時は両方を見る。
func (r CommandResult) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Runner はActuator Gatewayのインターフェース。
// kubeconfigはクラスタへ到達するための資格情報の中身で、単一の呼び出しに
// スコープされ、呼び出しを超えて保持されることはない。
type Runner interface {
	Run(ctx context.Context, kubeconfig string, args ...string) (CommandResult, error)
}

// Gateway はhelmバイナリをサブプロセスとして起動するRunner実装。
// リトライは行わず、トランスポート障害はそのまま呼び出し元に返す。
type Gateway struct {
	binary  string
	timeout time.Duration
}

// NewGateway はGatewayを生成する。
// binaryはhelm実行ファイルのパス、timeoutは1回の起動に許す最大時間。
func NewGateway(binary string, timeout time.Duration) *Gateway {
	return &Gateway{binary: binary, timeout: timeout}
}

// Run はhelmコマンドを実行し、生の出力と終了ステータスを返す。
// kubeconfigが空でない場合、その内容を呼び出し専用の一時ファイルに書き、
// KUBECONFIG環境変数経由でサブプロセスにのみ渡す。一時ファイルは
// 呼び出し終了時に必ず削除される。
//
// 非ゼロ終了は解釈対象の結果でありエラーではない。エラーを返すのは
// プロセスを起動できなかった場合とタイムアウトした場合のみ。
func (g *Gateway) Run(ctx context.Context, kubeconfig string, args ...string) (CommandResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	env := os.Environ()
	if kubeconfig != "" {
		f, err := os.CreateTemp("", "helmgate-kubeconfig-*")
		if err != nil {
			return CommandResult{}, fmt.Errorf("failed to create kubeconfig file: %w", err)
		}
		defer os.Remove(f.Name())

		if _, err := f.WriteString(kubeconfig); err != nil {
			f.Close()
			return CommandResult{}, fmt.Errorf("failed to write kubeconfig file: %w", err)
		}
		if err := f.Close(); err != nil {
			return CommandResult{}, fmt.Errorf("failed to close kubeconfig file: %w", err)
		}
		env = append(env, "KUBECONFIG="+f.Name())
	}

	cmd := exec.CommandContext(ctx, g.binary, args...)
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return result, fmt.Errorf("helm invocation timed out after %s: %w", g.timeout, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// 非ゼロ終了は結果の一部として返す
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("failed to run helm: %w", err)
	}

	return result, nil
}

// compile-time interface check
var _ Runner = (*Gateway)(nil)
