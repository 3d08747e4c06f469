package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/helmgate/internal/instance"
	"github.com/hitoshi/helmgate/internal/middleware"
	"github.com/hitoshi/helmgate/internal/model"
)

// --- テスト ---

func installTestRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1alpha1/apps/jupyter/instances", strings.NewReader(body))
	ctx := chi.NewRouteContext()
	ctx.URLParams.Add("appName", "jupyter")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, ctx))
	req = req.WithContext(middleware.ContextWithUser(req.Context(), &model.User{ID: "user_1"}))
	return req
}

func TestInstanceHandler_InstallPassesParams(t *testing.T) {
	var got instance.InstallParams
	svc := &mockInstanceService{
		installFn: func(_ context.Context, actor *model.User, params instance.InstallParams) (*instance.InstallResult, error) {
			if actor == nil || actor.ID != "user_1" {
				t.Errorf("actor = %+v, want user_1", actor)
			}
			got = params
			return &instance.InstallResult{
				Instance: &model.ApplicationInstance{
					ID: "instance_1", Name: "jupyter-prod", Application: "jupyter",
					GroupID: "group_1", ClusterID: "cluster_1",
				},
				Summary: model.InstanceSummary{Revision: "1", Updated: "Mon Sep  1 10:00:00 2026"},
			}, nil
		},
	}
	h := NewInstanceHandler(svc)

	req := installTestRequest(t, `{"group":"group_1","cluster":"cluster_1","tag":"prod","configuration":"replicas: 2\n"}`)
	rec := httptest.NewRecorder()
	h.Install(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body=%s)", rec.Code, rec.Body.String())
	}
	want := instance.InstallParams{
		Application:   "jupyter",
		Repository:    model.MainRepository,
		GroupID:       "group_1",
		ClusterID:     "cluster_1",
		Tag:           "prod",
		Configuration: "replicas: 2\n",
	}
	if got != want {
		t.Errorf("params = %+v, want %+v", got, want)
	}

	var body instanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Kind != "ApplicationInstance" || body.Metadata.Revision != "1" {
		t.Errorf("response = %+v", body)
	}
}

func TestInstanceHandler_InstallEmptyTagAndConfigurationAreAccepted(t *testing.T) {
	var got instance.InstallParams
	called := false
	svc := &mockInstanceService{
		installFn: func(_ context.Context, _ *model.User, params instance.InstallParams) (*instance.InstallResult, error) {
			called = true
			got = params
			return &instance.InstallResult{
				Instance: &model.ApplicationInstance{ID: "instance_1", Name: "jupyter"},
			}, nil
		},
	}
	h := NewInstanceHandler(svc)

	// キーが存在していれば値は空文字でよい
	req := installTestRequest(t, `{"group":"group_1","cluster":"cluster_1","tag":"","configuration":""}`)
	rec := httptest.NewRecorder()
	h.Install(rec, req)

	if !called {
		t.Fatal("service was not called")
	}
	if got.Tag != "" || got.Configuration != "" {
		t.Errorf("tag/configuration = %q/%q, want empty strings", got.Tag, got.Configuration)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
}

func TestInstanceHandler_InstallMissingKeysRejected(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
	}{
		{"missing group", `{"cluster":"cluster_1","tag":"","configuration":""}`, "Missing group"},
		{"missing cluster", `{"group":"group_1","tag":"","configuration":""}`, "Missing cluster"},
		{"missing tag key", `{"group":"group_1","cluster":"cluster_1","configuration":""}`, "Missing tag"},
		{"missing configuration key", `{"group":"group_1","cluster":"cluster_1","tag":""}`, "Missing configuration"},
		{"malformed body", `{`, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &mockInstanceService{
				installFn: func(_ context.Context, _ *model.User, _ instance.InstallParams) (*instance.InstallResult, error) {
					called = true
					return nil, nil
				},
			}
			h := NewInstanceHandler(svc)

			req := installTestRequest(t, tt.body)
			rec := httptest.NewRecorder()
			h.Install(rec, req)

			if called {
				t.Error("service should not be called on invalid input")
			}
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var body middleware.ErrorResponseBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", body.Message, tt.wantMessage)
			}
		})
	}
}

func TestInstanceHandler_GetOmitsSummary(t *testing.T) {
	svc := &mockInstanceService{
		getFn: func(_ context.Context, _ *model.User, id string) (*model.ApplicationInstance, error) {
			if id != "instance_1" {
				t.Errorf("id = %q, want instance_1", id)
			}
			return &model.ApplicationInstance{ID: "instance_1", Name: "jupyter-prod", Application: "jupyter"}, nil
		},
	}
	h := NewInstanceHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/v1alpha1/instances/instance_1", nil)
	ctx := chi.NewRouteContext()
	ctx.URLParams.Add("instanceID", "instance_1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, ctx))
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "revision") {
		t.Errorf("revision should be omitted when empty: %s", rec.Body.String())
	}
}
