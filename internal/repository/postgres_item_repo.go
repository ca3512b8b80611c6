package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/digestman/internal/model"
)

// PostgresItemRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

// TitlesBySource はソース内の既存記事タイトルのスナップショットを返す。
func (r *PostgresItemRepo) TitlesBySource(ctx context.Context, sourceID string) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT title FROM items WHERE source_id = $1`,
		sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("既存タイトルの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	titles := make(map[string]struct{})
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("タイトル行のスキャンに失敗しました: %w", err)
		}
		titles[title] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("既存タイトルの走査に失敗しました: %w", err)
	}

	return titles, nil
}

// CreateIfAbsent は記事を挿入する。(source_id, title)が既に存在する場合は
// 何もせずfalseを返す。
func (r *PostgresItemRepo) CreateIfAbsent(ctx context.Context, item *model.Item) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO items (id, source_id, user_id, title, link, content, full_content,
		                    published_at, is_read, is_pinned, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT ON CONSTRAINT items_source_title_unique DO NOTHING`,
		item.ID, item.SourceID, item.UserID, item.Title, item.Link,
		item.Content, item.FullContent, item.PublishedAt,
		item.IsRead, item.IsPinned, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("記事の挿入に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("挿入件数の取得に失敗しました: %w", err)
	}

	return affected > 0, nil
}

// ListByUser はユーザーの記事一覧をソースタイトル付きで返す。
func (r *PostgresItemRepo) ListByUser(ctx context.Context, userID string, filter model.ItemFilter, sourceID string) ([]model.ItemWithSource, error) {
	baseQuery := `
		SELECT i.id, i.source_id, i.user_id, i.title, i.link, i.content, i.full_content,
		       i.published_at, i.is_read, i.is_pinned, i.created_at, i.updated_at,
		       s.title AS source_title
		FROM items i
		JOIN sources s ON s.id = i.source_id
		WHERE i.user_id = $1`

	args := []interface{}{userID}
	argIndex := 2

	if sourceID != "" {
		baseQuery += fmt.Sprintf(" AND i.source_id = $%d", argIndex)
		args = append(args, sourceID)
		argIndex++
	}

	switch filter {
	case model.ItemFilterUnread:
		baseQuery += " AND i.is_read = false"
	case model.ItemFilterPinned:
		baseQuery += " AND i.is_pinned = true"
	case model.ItemFilterAll:
		// 全件: 追加条件なし
	}

	baseQuery += " ORDER BY i.published_at DESC"

	rows, err := r.db.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanItemsWithSource(rows)
}

// ListByPublishRange はユーザーの記事のうちpublished_atが[from, to)に含まれるものを返す。
func (r *PostgresItemRepo) ListByPublishRange(ctx context.Context, userID string, from, to time.Time) ([]model.ItemWithSource, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT i.id, i.source_id, i.user_id, i.title, i.link, i.content, i.full_content,
		        i.published_at, i.is_read, i.is_pinned, i.created_at, i.updated_at,
		        s.title AS source_title
		 FROM items i
		 JOIN sources s ON s.id = i.source_id
		 WHERE i.user_id = $1 AND i.published_at >= $2 AND i.published_at < $3
		 ORDER BY i.published_at ASC`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("期間指定の記事取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanItemsWithSource(rows)
}

// FindByID は指定ユーザーが所有する記事を取得する。見つからない場合はnilを返す。
func (r *PostgresItemRepo) FindByID(ctx context.Context, id, userID string) (*model.ItemWithSource, error) {
	iws := &model.ItemWithSource{}

	err := r.db.QueryRowContext(ctx,
		`SELECT i.id, i.source_id, i.user_id, i.title, i.link, i.content, i.full_content,
		        i.published_at, i.is_read, i.is_pinned, i.created_at, i.updated_at,
		        s.title AS source_title
		 FROM items i
		 JOIN sources s ON s.id = i.source_id
		 WHERE i.id = $1 AND i.user_id = $2`,
		id, userID,
	).Scan(
		&iws.ID, &iws.SourceID, &iws.UserID, &iws.Title, &iws.Link,
		&iws.Content, &iws.FullContent, &iws.PublishedAt,
		&iws.IsRead, &iws.IsPinned, &iws.CreatedAt, &iws.UpdatedAt,
		&iws.SourceTitle,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}

	return iws, nil
}

// UpdateFlags は既読・ピン留めフラグを部分更新する。
// nilのフィールドは変更されない。記事が見つからない場合はnilを返す。
func (r *PostgresItemRepo) UpdateFlags(ctx context.Context, id, userID string, isRead, isPinned *bool) (*model.Item, error) {
	item := &model.Item{}

	err := r.db.QueryRowContext(ctx,
		`UPDATE items
		 SET is_read = COALESCE($3, is_read),
		     is_pinned = COALESCE($4, is_pinned),
		     updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING id, source_id, user_id, title, link, content, full_content,
		           published_at, is_read, is_pinned, created_at, updated_at`,
		id, userID, nullBool(isRead), nullBool(isPinned),
	).Scan(
		&item.ID, &item.SourceID, &item.UserID, &item.Title, &item.Link,
		&item.Content, &item.FullContent, &item.PublishedAt,
		&item.IsRead, &item.IsPinned, &item.CreatedAt, &item.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事フラグの更新に失敗しました: %w", err)
	}

	return item, nil
}

// Delete は指定ユーザーが所有する記事を削除する。削除された場合はtrueを返す。
func (r *PostgresItemRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM items WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("記事の削除に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	return affected > 0, nil
}

// DeleteExpired は既読・非ピン留めかつpublished_atがcutoffより古い記事を削除する。
func (r *PostgresItemRepo) DeleteExpired(ctx context.Context, userID string, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM items
		 WHERE user_id = $1 AND is_read = true AND is_pinned = false AND published_at < $2`,
		userID, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("期限切れ記事の削除に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	return affected, nil
}

// scanItemsWithSource は記事+ソースタイトルの結果セットをスキャンする。
func scanItemsWithSource(rows *sql.Rows) ([]model.ItemWithSource, error) {
	var items []model.ItemWithSource
	for rows.Next() {
		var iws model.ItemWithSource
		if err := rows.Scan(
			&iws.ID, &iws.SourceID, &iws.UserID, &iws.Title, &iws.Link,
			&iws.Content, &iws.FullContent, &iws.PublishedAt,
			&iws.IsRead, &iws.IsPinned, &iws.CreatedAt, &iws.UpdatedAt,
			&iws.SourceTitle,
		); err != nil {
			return nil, fmt.Errorf("記事行のスキャンに失敗しました: %w", err)
		}
		items = append(items, iws)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の走査に失敗しました: %w", err)
	}

	return items, nil
}

// nullBool は*boolをsql.NullBoolに変換する。
func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
