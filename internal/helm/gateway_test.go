package helm

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestGateway_Run_CapturesStdout(t *testing.T) {
	g := NewGateway("echo", 5*time.Second)

	result, err := g.Run(context.Background(), "", "hello", "world")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
	if strings.TrimSpace(result.Stdout) != "hello world" {
		t.Errorf("Stdout = %q, want %q", result.Stdout, "hello world")
	}
}

func TestGateway_Run_NonZeroExitIsNotAnError(t *testing.T) {
	// 非ゼロ終了は結果として返り、エラーにはならない
	g := NewGateway("false", 5*time.Second)

	result, err := g.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("non-zero exit should not be a transport error: %v", err)
	}
	if result.ExitCode == 0 {
		t.Error("expected a non-zero exit code")
	}
}

func TestGateway_Run_MissingBinaryIsAnError(t *testing.T) {
	g := NewGateway("definitely-not-a-real-binary-xyz", 5*time.Second)

	_, err := g.Run(context.Background(), "")
	if err == nil {
		t.Fatal("expected an error for a missing binary")
	}
}

func TestGateway_Run_Timeout(t *testing.T) {
	g := NewGateway("sleep", 50*time.Millisecond)

	_, err := g.Run(context.Background(), "", "10")
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestGateway_Run_KubeconfigScopedToInvocation(t *testing.T) {
	// KUBECONFIGは一時ファイル経由でサブプロセスにのみ渡る
	g := NewGateway("sh", 5*time.Second)

	result, err := g.Run(context.Background(), "fake-kubeconfig-content",
		"-c", "cat \"$KUBECONFIG\"")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Stdout != "fake-kubeconfig-content" {
		t.Errorf("subprocess should see the kubeconfig content, got %q", result.Stdout)
	}
}

func TestCommandResult_Output(t *testing.T) {
	tests := []struct {
		name   string
		result CommandResult
		want   string
	}{
		{"stdout only", CommandResult{Stdout: "out"}, "out"},
		{"stderr only", CommandResult{Stderr: "err"}, "err"},
		{"both", CommandResult{Stdout: "out", Stderr: "err"}, "out\nerr"},
		{"neither", CommandResult{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Output(); got != tt.want {
				t.Errorf("Output() = %q, want %q", got, tt.want)
			}
		})
	}
}
