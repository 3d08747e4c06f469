// Package model はドメインモデルを定義する。
package model

import "time"

// InstanceNameMaxLength はインスタンス表示名の最大長。
// Kubernetesのリソース名（DNSラベル）制約に由来するハードリミット。
const InstanceNameMaxLength = 63

// ApplicationInstance はクラスタにデプロイされたアプリケーションの
// 永続レコードを表す。レコードの存在が「デプロイが存在する（または作成中で
// ある）」ことの正であり、所有権・認可判定はこのレコードに基づく。
type ApplicationInstance struct {
	ID          string
	Name        string // アプリケーション名 + 任意のタグ（"-"区切り）
	Application string
	GroupID     string
	ClusterID   string
	Config      string // 正規化済みの設定。空文字は許されず"\n"に置換される
	Valid       bool
	CreatedAt   time.Time
}

// InstanceSummary はデプロイ成功後にhelmから取得する補足情報を表す。
type InstanceSummary struct {
	Revision string
	Updated  string
}
