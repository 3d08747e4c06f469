// Package application はアプリケーションカタログの参照を提供する。
//
// カタログのアプリケーションは永続化されず、リクエストごとにデプロイツール
// へ問い合わせて解決される。カタログの参照に認証は不要。
package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hitoshi/helmgate/internal/helm"
	"github.com/hitoshi/helmgate/internal/model"
)

// Service はカタログの一覧・詳細・解決を提供する。
type Service struct {
	runner   helm.Runner
	mainRepo string
	devRepo  string
}

// NewService はServiceを生成する。
// mainRepo/devRepoはカタログセレクタが割り当てられるリポジトリ名。
func NewService(runner helm.Runner, mainRepo, devRepo string) *Service {
	return &Service{runner: runner, mainRepo: mainRepo, devRepo: devRepo}
}

// RepoName はカタログセレクタをリポジトリ名に解決する。
// 認識されるカタログは2つだけで、それ以外はBadRequestとなる。
func (s *Service) RepoName(selector model.Repository) (string, error) {
	switch selector {
	case model.MainRepository:
		return s.mainRepo, nil
	case model.DevRepository:
		return s.devRepo, nil
	default:
		return "", model.NewBadRequestError("Invalid catalog")
	}
}

// List は指定カタログの全アプリケーションを返す。空のカタログは空リスト。
func (s *Service) List(ctx context.Context, selector model.Repository) ([]model.Application, error) {
	repo, err := s.RepoName(selector)
	if err != nil {
		return nil, err
	}

	result, err := s.runner.Run(ctx, "", "search", repo+"/")
	if err != nil {
		slog.Error("catalog search failed", slog.String("repo", repo), slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	apps, err := helm.ParseSearch(result.Output())
	if err != nil {
		if errors.Is(err, helm.ErrNoResults) {
			return []model.Application{}, nil
		}
		slog.Error("catalog output not understood", slog.String("repo", repo), slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	// カタログ名にはリポジトリのプレフィックスが付くため外して返す
	for i := range apps {
		apps[i].Name = strings.TrimPrefix(apps[i].Name, repo+"/")
	}
	return apps, nil
}

// Describe は指定アプリケーションのチャート詳細テキストを返す。
// カタログに存在しない場合はNotFound。
func (s *Service) Describe(ctx context.Context, selector model.Repository, name string) (string, error) {
	repo, err := s.RepoName(selector)
	if err != nil {
		return "", err
	}
	if err := validateName(name); err != nil {
		return "", err
	}

	result, err := s.runner.Run(ctx, "", "inspect", repo+"/"+name)
	if err != nil {
		slog.Error("chart inspect failed", slog.String("application", name), slog.String("error", err.Error()))
		return "", model.NewInternalError()
	}

	body, err := helm.ParseInspect(result.Output())
	if err != nil {
		return "", model.NewNotFoundError("Application")
	}
	return body, nil
}

// Resolve はアプリケーション名をカタログに対して照合し、完全一致する
// エントリを返す。存在しない場合はNotFound。
func (s *Service) Resolve(ctx context.Context, selector model.Repository, name string) (*model.Application, error) {
	repo, err := s.RepoName(selector)
	if err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	result, err := s.runner.Run(ctx, "", "search", repo+"/"+name)
	if err != nil {
		slog.Error("catalog search failed", slog.String("application", name), slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	apps, err := helm.ParseSearch(result.Output())
	if err != nil {
		if errors.Is(err, helm.ErrNoResults) {
			return nil, model.NewNotFoundError("Application")
		}
		slog.Error("catalog output not understood", slog.String("application", name), slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	// 検索は部分一致を返すため、完全一致のエントリだけを採用する
	for _, app := range apps {
		if strings.TrimPrefix(app.Name, repo+"/") == name {
			app.Name = name
			return &app, nil
		}
	}
	return nil, model.NewNotFoundError("Application")
}

// validateName はアプリケーション名の形式を検査する。
// 名前はそのままコマンド引数になるため、空と引用符は拒否する。
func validateName(name string) error {
	if name == "" {
		return model.NewBadRequestError("Missing application name")
	}
	if strings.Contains(name, "'") {
		return model.NewBadRequestError("Application names cannot contain single quote characters")
	}
	return nil
}
