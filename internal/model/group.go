// Package model はドメインモデルを定義する。
package model

import "time"

// Group は仮想組織（VO）を表す。
// メンバー・クラスタ・アプリケーションインスタンスの所有主体となる。
// 最後のメンバーが削除されてもGroup自体は残り、削除は常に明示的に行う。
type Group struct {
	ID           string
	Name         string
	ScienceField string
	CreatedAt    time.Time
}

// NamespaceName はこのGroupのインスタンスがデプロイされる
// Kubernetesネームスペース名を返す。
func (g Group) NamespaceName() string {
	return "vo-" + g.Name
}

// Cluster は管理対象のKubernetesクラスタを表す。
// Kubeconfigはクラスタへ到達するための資格情報で、Actuator Gateway以外には
// 決して公開しない（APIレスポンスにも含めない）。
type Cluster struct {
	ID         string
	Name       string
	GroupID    string
	Kubeconfig string
	CreatedAt  time.Time
}
