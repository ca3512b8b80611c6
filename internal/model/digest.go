// Package model はドメインモデルを定義する。
package model

import "time"

// Digest は1ユーザー・1暦日分のデイリーダイジェストを表す。
// (UserID, Date) の組み合わせは一意であり、このユニーク制約が
// 重複生成に対する冪等性ガードとして機能する。生成後は不変。
type Digest struct {
	ID        string
	UserID    string
	Date      string // 対象暦日 "2006-01-02"
	Title     string
	Body      string
	ItemCount int
	CreatedAt time.Time
}
