package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/digestman/internal/model"
)

// PostgresSourceRepo はPostgreSQLを使用したソースリポジトリ。
type PostgresSourceRepo struct {
	db *sql.DB
}

// NewPostgresSourceRepo はPostgresSourceRepoを生成する。
func NewPostgresSourceRepo(db *sql.DB) *PostgresSourceRepo {
	return &PostgresSourceRepo{db: db}
}

// FindByID は指定ユーザーが所有するソースを取得する。見つからない場合はnilを返す。
func (r *PostgresSourceRepo) FindByID(ctx context.Context, id, userID string) (*model.Source, error) {
	source := &model.Source{}
	var lastFetchedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, url, title, last_fetched_at, created_at, updated_at
		 FROM sources WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(
		&source.ID, &source.UserID, &source.URL, &source.Title,
		&lastFetchedAt, &source.CreatedAt, &source.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ソースの取得に失敗しました: %w", err)
	}

	if lastFetchedAt.Valid {
		source.LastFetchedAt = &lastFetchedAt.Time
	}

	return source, nil
}

// FindByURLAndUser は(URL, ユーザーID)でソースを検索する。見つからない場合はnilを返す。
func (r *PostgresSourceRepo) FindByURLAndUser(ctx context.Context, url, userID string) (*model.Source, error) {
	source := &model.Source{}
	var lastFetchedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, url, title, last_fetched_at, created_at, updated_at
		 FROM sources WHERE url = $1 AND user_id = $2`,
		url, userID,
	).Scan(
		&source.ID, &source.UserID, &source.URL, &source.Title,
		&lastFetchedAt, &source.CreatedAt, &source.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("URL によるソースの検索に失敗しました: %w", err)
	}

	if lastFetchedAt.Valid {
		source.LastFetchedAt = &lastFetchedAt.Time
	}

	return source, nil
}

// Create はソースを作成する。
func (r *PostgresSourceRepo) Create(ctx context.Context, source *model.Source) error {
	var lastFetchedAt sql.NullTime
	if source.LastFetchedAt != nil {
		lastFetchedAt = sql.NullTime{Time: *source.LastFetchedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sources (id, user_id, url, title, last_fetched_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		source.ID, source.UserID, source.URL, source.Title,
		lastFetchedAt, source.CreatedAt, source.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ソースの作成に失敗しました: %w", err)
	}

	return nil
}

// ListByUser はユーザーのソース一覧を未読記事数付きで返す。
func (r *PostgresSourceRepo) ListByUser(ctx context.Context, userID string) ([]model.SourceWithUnread, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.user_id, s.url, s.title, s.last_fetched_at, s.created_at, s.updated_at,
		        count(i.id) FILTER (WHERE i.is_read = false) AS unread_count
		 FROM sources s
		 LEFT JOIN items i ON i.source_id = s.id
		 WHERE s.user_id = $1
		 GROUP BY s.id
		 ORDER BY s.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ソース一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sources []model.SourceWithUnread
	for rows.Next() {
		var swu model.SourceWithUnread
		var lastFetchedAt sql.NullTime

		if err := rows.Scan(
			&swu.ID, &swu.UserID, &swu.URL, &swu.Title,
			&lastFetchedAt, &swu.CreatedAt, &swu.UpdatedAt,
			&swu.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("ソース行のスキャンに失敗しました: %w", err)
		}

		if lastFetchedAt.Valid {
			swu.LastFetchedAt = &lastFetchedAt.Time
		}
		sources = append(sources, swu)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ソース一覧の走査に失敗しました: %w", err)
	}

	return sources, nil
}

// ListDue はリフレッシュ対象のソースを返す。
// last_fetched_at が未設定、または before より古いソースが対象。
func (r *PostgresSourceRepo) ListDue(ctx context.Context, before time.Time) ([]*model.Source, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, url, title, last_fetched_at, created_at, updated_at
		 FROM sources
		 WHERE last_fetched_at IS NULL OR last_fetched_at < $1
		 ORDER BY last_fetched_at ASC NULLS FIRST`,
		before,
	)
	if err != nil {
		return nil, fmt.Errorf("リフレッシュ対象ソースの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sources []*model.Source
	for rows.Next() {
		source := &model.Source{}
		var lastFetchedAt sql.NullTime

		if err := rows.Scan(
			&source.ID, &source.UserID, &source.URL, &source.Title,
			&lastFetchedAt, &source.CreatedAt, &source.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ソース行のスキャンに失敗しました: %w", err)
		}

		if lastFetchedAt.Valid {
			source.LastFetchedAt = &lastFetchedAt.Time
		}
		sources = append(sources, source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リフレッシュ対象ソースの走査に失敗しました: %w", err)
	}

	return sources, nil
}

// UpdateAfterFetch はフェッチ成功後にタイトルとlast_fetched_atを更新する。
func (r *PostgresSourceRepo) UpdateAfterFetch(ctx context.Context, id, title string, fetchedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sources SET title = $2, last_fetched_at = $3, updated_at = $3 WHERE id = $1`,
		id, title, fetchedAt,
	)
	if err != nil {
		return fmt.Errorf("ソースのフェッチ状態更新に失敗しました: %w", err)
	}

	return nil
}

// Delete は指定ユーザーが所有するソースを削除する。削除された場合はtrueを返す。
func (r *PostgresSourceRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sources WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("ソースの削除に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	return affected > 0, nil
}
