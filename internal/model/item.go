// Package model はドメインモデルを定義する。
package model

import "time"

// Item はソースから取り込んだ記事を表す。
// 同一ソース内ではタイトルで一意（items テーブルの
// (source_id, title) ユニーク制約が重複登録を防ぐ）。
type Item struct {
	ID          string
	SourceID    string
	UserID      string
	Title       string
	Link        string
	Content     string // フィード由来の短文コンテンツ（サニタイズ済みHTML）
	FullContent string // 本文抽出で得た全文。抽出失敗時は空
	PublishedAt time.Time
	IsRead      bool
	IsPinned    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ItemWithSource は記事とソースタイトルを結合したモデル。
// ダイジェスト生成の候補収集と記事一覧APIで使用される。
type ItemWithSource struct {
	Item
	SourceTitle string
}

// ItemFilter は記事一覧のフィルタ種別を表す。
type ItemFilter string

const (
	// ItemFilterAll は全記事を表示するフィルタ。
	ItemFilterAll ItemFilter = "all"
	// ItemFilterUnread は未読記事のみを表示するフィルタ。
	ItemFilterUnread ItemFilter = "unread"
	// ItemFilterPinned はピン留め記事のみを表示するフィルタ。
	ItemFilterPinned ItemFilter = "pinned"
)
