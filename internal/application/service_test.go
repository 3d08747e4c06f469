package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/helmgate/internal/helm"
	"github.com/hitoshi/helmgate/internal/model"
)

type mockRunner struct {
	runFn func(ctx context.Context, kubeconfig string, args ...string) (helm.CommandResult, error)
}

func (m *mockRunner) Run(ctx context.Context, kubeconfig string, args ...string) (helm.CommandResult, error) {
	return m.runFn(ctx, kubeconfig, args...)
}

func newTestService(runFn func(ctx context.Context, kubeconfig string, args ...string) (helm.CommandResult, error)) *Service {
	return NewService(&mockRunner{runFn: runFn}, "slate", "slate-dev")
}

const searchOutput = "NAME\tCHART VERSION\tAPP VERSION\tDESCRIPTION\n" +
	"slate/name1\tv1\tv1\tdesc1\n" +
	"slate/name2\tv2\tv2\tdesc2\n"

func TestList_MapsCatalogRows(t *testing.T) {
	var gotArgs []string
	svc := newTestService(func(ctx context.Context, kubeconfig string, args ...string) (helm.CommandResult, error) {
		gotArgs = args
		if kubeconfig != "" {
			t.Error("catalog queries should not carry a kubeconfig")
		}
		return helm.CommandResult{Stdout: searchOutput}, nil
	})

	apps, err := svc.List(context.Background(), model.MainRepository)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("got %d applications, want 2", len(apps))
	}
	want := model.Application{Name: "name1", ChartVersion: "v1", AppVersion: "v1", Description: "desc1"}
	if apps[0] != want {
		t.Errorf("apps[0] = %+v, want %+v", apps[0], want)
	}
	if strings.Join(gotArgs, " ") != "search slate/" {
		t.Errorf("unexpected args: %v", gotArgs)
	}
}

func TestList_DevSelectorUsesDevRepo(t *testing.T) {
	var gotArgs []string
	svc := newTestService(func(ctx context.Context, kubeconfig string, args ...string) (helm.CommandResult, error) {
		gotArgs = args
		return helm.CommandResult{Stdout: "NAME\tCHART VERSION\tAPP VERSION\tDESCRIPTION\n"}, nil
	})

	if _, err := svc.List(context.Background(), model.DevRepository); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if strings.Join(gotArgs, " ") != "search slate-dev/" {
		t.Errorf("unexpected args: %v", gotArgs)
	}
}

func TestList_EmptyCatalog(t *testing.T) {
	svc := newTestService(func(ctx context.Context, kubeconfig string, args ...string) (helm.CommandResult, error) {
		return helm.CommandResult{Stdout: "No results found\n", ExitCode: 1}, nil
	})

	apps, err := svc.List(context.Background(), model.MainRepository)
	if err != nil {
		t.Fatalf("empty catalog should not be an error: %v", err)
	}
	if len(apps) != 0 {
		t.Errorf("got %d applications, want 0", len(apps))
	}
}

func TestList_MalformedOutputIsInternalError(t *testing.T) {
	svc := newTestService(func(ctx context.Context, kubeconfig string, args ...string) (helm.CommandResult, error) {
		return helm.CommandResult{Stdout: "NAME\nonly-one-column\n"}, nil
	})

	_, err := svc.List(context.Background(), model.MainRepository)
	if apiErr, ok := model.AsAPIError(err); !ok || apiErr.Code != model.ErrCodeInternal {
		t.Errorf("malformed catalog output should be InternalError, got: %v", err)
	}
}

func TestList_InvalidSelectorIsBadRequest(t *testing.T) {
	svc := newTestService(func(ctx context.Context, kubeconfig string, args ...string) (helm.CommandResult, error) {
		t.Fatal("invalid selectors must not reach the gateway")
		return helm.CommandResult{}, nil
	})

	_, err := svc.List(context.Background(), model.Repository("staging"))
	if apiErr, ok := model.AsAPIError(err); !ok || apiErr.Code != model.ErrCodeBadRequest {
		t.Errorf("expected BadRequest, got: %v", err)
	}
}

func TestList_TransportFailureIsInternalError(t *testing.T) {
	svc := newTestService(func(ctx context.Context, kubeconfig string, args ...string) (helm.CommandResult, error) {
		return helm.CommandResult{}, errors.New("spawn failed")
	})

	_, err := svc.List(context.Background(), model.MainRepository)
	if apiErr, ok := model.AsAPIError(err); !ok || apiErr.Code != model.ErrCodeInternal {
		t.Errorf("expected InternalError, got: %v", err)
	}
}

func TestDescribe_ReturnsChartText(t *testing.T) {
	svc := newTestService(func(ctx context.Context, kubeconfig string, args ...string) (helm.CommandResult, error) {
		if strings.Join(args, " ") != "inspect slate/name1" {
			t.Errorf("unexpected args: %v", args)
		}
		return helm.CommandResult{Stdout: "description: a chart\nversion: v1\n"}, nil
	})

	body, err := svc.Describe(context.Background(), model.MainRepository, "name1")
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if !strings.Contains(body, "a chart") {
		t.Errorf("unexpected body: %q", body)
	}
}

func TestDescribe_UnknownChartIsNotFound(t *testing.T) {
	svc := newTestService(func(ctx context.Context, kubeconfig string, args ...string) (helm.CommandResult, error) {
		return helm.CommandResult{Stderr: "Error: failed to download chart", ExitCode: 1}, nil
	})

	_, err := svc.Describe(context.Background(), model.MainRepository, "ghost")
	if apiErr, ok := model.AsAPIError(err); !ok || apiErr.Code != model.ErrCodeNotFound {
		t.Errorf("expected NotFound, got: %v", err)
	}
}

func TestDescribe_RejectsSingleQuote(t *testing.T) {
	svc := newTestService(func(ctx context.Context, kubeconfig string, args ...string) (helm.CommandResult, error) {
		t.Fatal("invalid names must not reach the gateway")
		return helm.CommandResult{}, nil
	})

	_, err := svc.Describe(context.Background(), model.MainRepository, "name'1")
	if apiErr, ok := model.AsAPIError(err); !ok || apiErr.Code != model.ErrCodeBadRequest {
		t.Errorf("expected BadRequest, got: %v", err)
	}
}

func TestResolve_ExactMatchOnly(t *testing.T) {
	svc := newTestService(func(ctx context.Context, kubeconfig string, args ...string) (helm.CommandResult, error) {
		// 検索は部分一致のエントリも返す
		return helm.CommandResult{Stdout: "NAME\tCHART VERSION\tAPP VERSION\tDESCRIPTION\n" +
			"slate/name1\tv1\tv1\tdesc1\n" +
			"slate/name1-test\tv1\tv1\ttest variant\n"}, nil
	})

	app, err := svc.Resolve(context.Background(), model.MainRepository, "name1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if app.Name != "name1" || app.ChartVersion != "v1" {
		t.Errorf("unexpected application: %+v", app)
	}

	_, err = svc.Resolve(context.Background(), model.MainRepository, "name")
	if apiErr, ok := model.AsAPIError(err); !ok || apiErr.Code != model.ErrCodeNotFound {
		t.Errorf("partial matches should not resolve, got: %v", err)
	}
}

func TestResolve_NoResultsIsNotFound(t *testing.T) {
	svc := newTestService(func(ctx context.Context, kubeconfig string, args ...string) (helm.CommandResult, error) {
		return helm.CommandResult{Stdout: "No results found\n", ExitCode: 1}, nil
	})

	_, err := svc.Resolve(context.Background(), model.MainRepository, "ghost")
	if apiErr, ok := model.AsAPIError(err); !ok || apiErr.Code != model.ErrCodeNotFound {
		t.Errorf("expected NotFound, got: %v", err)
	}
}
