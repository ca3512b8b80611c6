// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/digestman/internal/model"
)

// SourceRepository はソースデータの永続化インターフェース。
type SourceRepository interface {
	// FindByID は指定ユーザーが所有するソースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id, userID string) (*model.Source, error)

	// FindByURLAndUser は(URL, ユーザーID)でソースを検索する。見つからない場合はnilを返す。
	FindByURLAndUser(ctx context.Context, url, userID string) (*model.Source, error)

	// Create はソースを作成する。(url, user_id)が重複する場合はエラーを返す。
	Create(ctx context.Context, source *model.Source) error

	// ListByUser はユーザーのソース一覧を未読記事数付きで返す。
	ListByUser(ctx context.Context, userID string) ([]model.SourceWithUnread, error)

	// ListDue はリフレッシュ対象のソースを返す。
	// last_fetched_at が未設定、または before より古いソースが対象。
	ListDue(ctx context.Context, before time.Time) ([]*model.Source, error)

	// UpdateAfterFetch はフェッチ成功後にタイトルとlast_fetched_atを更新する。
	// 新着記事が0件でも呼び出され、適格性判定を前進させる。
	UpdateAfterFetch(ctx context.Context, id, title string, fetchedAt time.Time) error

	// Delete は指定ユーザーが所有するソースを削除する。
	// 関連する記事はCASCADE削除される。削除された場合はtrueを返す。
	Delete(ctx context.Context, id, userID string) (bool, error)
}

// ItemRepository は記事データの永続化インターフェース。
type ItemRepository interface {
	// TitlesBySource はソース内の既存記事タイトルのスナップショットを返す。
	// 1回の取り込みパスの重複排除はこのスナップショットに対して行う。
	TitlesBySource(ctx context.Context, sourceID string) (map[string]struct{}, error)

	// CreateIfAbsent は記事を挿入する。(source_id, title)が既に存在する場合は
	// 何もせずfalseを返す。ストレージレベルの重複排除ガード。
	CreateIfAbsent(ctx context.Context, item *model.Item) (bool, error)

	// ListByUser はユーザーの記事一覧をソースタイトル付きで返す。
	// sourceIDが空でない場合はそのソースの記事のみを返す。
	// published_at降順。
	ListByUser(ctx context.Context, userID string, filter model.ItemFilter, sourceID string) ([]model.ItemWithSource, error)

	// ListByPublishRange はユーザーの記事のうちpublished_atが[from, to)に
	// 含まれるものをソースタイトル付きで返す。ダイジェスト候補の収集に使用する。
	ListByPublishRange(ctx context.Context, userID string, from, to time.Time) ([]model.ItemWithSource, error)

	// FindByID は指定ユーザーが所有する記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id, userID string) (*model.ItemWithSource, error)

	// UpdateFlags は既読・ピン留めフラグを部分更新する。
	// nilのフィールドは変更されない。記事が見つからない場合はnilを返す。
	UpdateFlags(ctx context.Context, id, userID string, isRead, isPinned *bool) (*model.Item, error)

	// Delete は指定ユーザーが所有する記事を削除する。削除された場合はtrueを返す。
	Delete(ctx context.Context, id, userID string) (bool, error)

	// DeleteExpired は既読・非ピン留めかつpublished_atがcutoffより古い記事を
	// 削除し、削除件数を返す。ピン留め記事は年齢・既読状態に関わらず対象外。
	DeleteExpired(ctx context.Context, userID string, cutoff time.Time) (int64, error)
}

// DigestRepository はダイジェストデータの永続化インターフェース。
type DigestRepository interface {
	// CreateIfAbsent はダイジェストを作成する。(user_id, date)が既に存在する
	// 場合は何もせずfalseを返す。ユニーク制約による冪等性ガードであり、
	// 事前の存在チェックとの間の競合でも重複生成は起こらない。
	CreateIfAbsent(ctx context.Context, digest *model.Digest) (bool, error)

	// FindByUserAndDate は(user_id, date)でダイジェストを取得する。
	// 見つからない場合はnilを返す。
	FindByUserAndDate(ctx context.Context, userID, date string) (*model.Digest, error)

	// ListByUser はユーザーのダイジェスト一覧を作成日時降順で返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Digest, error)
}

// PreferenceRepository はユーザー設定の永続化インターフェース。
type PreferenceRepository interface {
	// FindOrCreate はユーザーの設定を取得する。存在しない場合は
	// デフォルト値の行を作成して返す（遅延生成）。
	FindOrCreate(ctx context.Context, userID string) (*model.Preference, error)

	// Update は設定を更新する。
	Update(ctx context.Context, pref *model.Preference) error

	// ListDigestEnabled はダイジェスト生成が有効かつAPIキーが設定済みの
	// 全ユーザーの設定を返す。
	ListDigestEnabled(ctx context.Context) ([]*model.Preference, error)

	// ListAutoCleanup は自動削除が有効な全ユーザーの設定を返す。
	ListAutoCleanup(ctx context.Context) ([]*model.Preference, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
// 認証フロー自体は外部コラボレータであり、本システムは検証のみを行う。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れまたは未存在の場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
}
