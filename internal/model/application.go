// Package model はドメインモデルを定義する。
package model

// Repository はアプリケーションカタログの選択を表す。
// 認識されるカタログは本番用と開発用の2つだけ。
type Repository string

const (
	// MainRepository は本番カタログ。
	MainRepository Repository = "main"
	// DevRepository は開発カタログ。
	DevRepository Repository = "dev"
)

// Application はカタログ上のアプリケーションを表す。
// 永続化されないバーチャルな参照で、リクエスト時にカタログへ問い合わせて
// 解決される。
type Application struct {
	Name         string
	ChartVersion string
	AppVersion   string
	Description  string
}
