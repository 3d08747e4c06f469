// Package handler はHTTP APIのハンドラーとルーティングを提供する。
//
// レスポンスはapiVersionとkindを持つエンベロープ形式で、エンティティの
// 属性はmetadataオブジェクトに入る。クラスタのkubeconfigのような
// 資格情報はどのレスポンスにも決して含めない。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/helmgate/internal/middleware"
	"github.com/hitoshi/helmgate/internal/model"
)

var validate = validator.New()

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeRequest はリクエストボディをデコードし、宣言的バリデーションを
// 適用する。欠落フィールドはそのフィールド名を含むBadRequestになる。
func decodeRequest(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return model.NewBadRequestError("Invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := verrs[0].Field()
			if verrs[0].Tag() == "required" {
				return model.NewBadRequestError("Missing " + strings.ToLower(field))
			}
			return model.NewBadRequestError("Invalid " + strings.ToLower(field))
		}
		return model.NewBadRequestError("Invalid request body")
	}
	return nil
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// APIErrorでないエラーは詳細をログに残し、一般的な500を返す。
func handleServiceError(w http.ResponseWriter, err error) {
	if _, ok := model.AsAPIError(err); !ok {
		slog.Error("request failed", slog.String("error", err.Error()))
	}
	middleware.WriteError(w, err)
}

// repoSelector はdevクエリパラメータからカタログセレクタを決める。
func repoSelector(r *http.Request) model.Repository {
	if r.URL.Query().Get("dev") == "true" {
		return model.DevRepository
	}
	return model.MainRepository
}

// actor はリクエストコンテキストから認証済みユーザーを取り出す。
// 匿名の場合はnilを返し、認可の判定はサービス層が行う。
func actor(r *http.Request) *model.User {
	user, _ := middleware.UserFromContext(r.Context())
	return user
}

// userMetadata はユーザーのAPI表現。トークンは作成・再発行時のみ含まれる。
type userMetadata struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Institution string `json:"institution"`
	GlobusID    string `json:"globusID"`
	Admin       bool   `json:"admin"`
	Token       string `json:"access_token,omitempty"`
}

// userResponse はユーザーのレスポンスエンベロープ。
type userResponse struct {
	APIVersion string       `json:"apiVersion"`
	Kind       string       `json:"kind"`
	Metadata   userMetadata `json:"metadata"`
}

func toUserResponse(user *model.User, includeToken bool) userResponse {
	md := userMetadata{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		Phone:       user.Phone,
		Institution: user.Institution,
		GlobusID:    user.GlobusID,
		Admin:       user.Admin,
	}
	if includeToken {
		md.Token = user.Token
	}
	return userResponse{APIVersion: middleware.APIVersion, Kind: "User", Metadata: md}
}

// groupMetadata はGroupのAPI表現。
type groupMetadata struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ScienceField string `json:"scienceField"`
}

type groupResponse struct {
	APIVersion string        `json:"apiVersion"`
	Kind       string        `json:"kind"`
	Metadata   groupMetadata `json:"metadata"`
}

func toGroupResponse(group *model.Group) groupResponse {
	return groupResponse{
		APIVersion: middleware.APIVersion,
		Kind:       "Group",
		Metadata: groupMetadata{
			ID:           group.ID,
			Name:         group.Name,
			ScienceField: group.ScienceField,
		},
	}
}

// clusterMetadata はクラスタのAPI表現。kubeconfigは意図的に含まない。
type clusterMetadata struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	GroupID string `json:"group"`
}

type clusterResponse struct {
	APIVersion string          `json:"apiVersion"`
	Kind       string          `json:"kind"`
	Metadata   clusterMetadata `json:"metadata"`
}

func toClusterResponse(cluster *model.Cluster) clusterResponse {
	return clusterResponse{
		APIVersion: middleware.APIVersion,
		Kind:       "Cluster",
		Metadata: clusterMetadata{
			ID:      cluster.ID,
			Name:    cluster.Name,
			GroupID: cluster.GroupID,
		},
	}
}

// applicationMetadata はカタログアプリケーションのAPI表現。
type applicationMetadata struct {
	Name         string `json:"name"`
	ChartVersion string `json:"chart_version"`
	AppVersion   string `json:"app_version"`
	Description  string `json:"description"`
}

type applicationResponse struct {
	APIVersion string              `json:"apiVersion"`
	Kind       string              `json:"kind"`
	Metadata   applicationMetadata `json:"metadata"`
}

func toApplicationResponse(app model.Application) applicationResponse {
	return applicationResponse{
		APIVersion: middleware.APIVersion,
		Kind:       "Application",
		Metadata: applicationMetadata{
			Name:         app.Name,
			ChartVersion: app.ChartVersion,
			AppVersion:   app.AppVersion,
			Description:  app.Description,
		},
	}
}

// instanceMetadata はアプリケーションインスタンスのAPI表現。
type instanceMetadata struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Application string `json:"application"`
	GroupID     string `json:"group"`
	ClusterID   string `json:"cluster"`
	Revision    string `json:"revision,omitempty"`
	Updated     string `json:"updated,omitempty"`
}

type instanceResponse struct {
	APIVersion string           `json:"apiVersion"`
	Kind       string           `json:"kind"`
	Metadata   instanceMetadata `json:"metadata"`
}

func toInstanceResponse(instance *model.ApplicationInstance, summary model.InstanceSummary) instanceResponse {
	return instanceResponse{
		APIVersion: middleware.APIVersion,
		Kind:       "ApplicationInstance",
		Metadata: instanceMetadata{
			ID:          instance.ID,
			Name:        instance.Name,
			Application: instance.Application,
			GroupID:     instance.GroupID,
			ClusterID:   instance.ClusterID,
			Revision:    summary.Revision,
			Updated:     summary.Updated,
		},
	}
}

// listResponse は一覧レスポンスのエンベロープ。
type listResponse[T any] struct {
	APIVersion string `json:"apiVersion"`
	Kind       string `json:"kind"`
	Items      []T    `json:"items"`
}

func toListResponse[T any](kind string, items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{APIVersion: middleware.APIVersion, Kind: kind, Items: items}
}
