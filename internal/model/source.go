// Package model はドメインモデルを定義する。
package model

import "time"

// Source は購読中のRSS/Atomフィードを表す。
// (URL, UserID) の組み合わせはユーザーごとに一意。
type Source struct {
	ID            string
	UserID        string
	URL           string
	Title         string
	LastFetchedAt *time.Time // 未フェッチの場合はnil
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SourceWithUnread はソースと未読記事数を結合したモデル。
// ソース一覧APIで使用される。
type SourceWithUnread struct {
	Source
	UnreadCount int
}

// ParsedItem はフィードパーサーから取得した未保存の記事データを表す。
// フェッチャーがフィードをパースした後、鮮度フィルタ・重複排除を経て
// Itemとして永続化される。
type ParsedItem struct {
	Title       string
	Link        string
	Content     string     // 未サニタイズのHTML
	PublishedAt *time.Time // フィードに公開日時がない場合はnil
}

// ParsedSource はフィードパーサーから取得したフィード全体を表す。
type ParsedSource struct {
	Title string
	Link  string
	Items []ParsedItem
}
