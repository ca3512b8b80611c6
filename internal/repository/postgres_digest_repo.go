package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/digestman/internal/model"
)

// PostgresDigestRepo はPostgreSQLを使用したダイジェストリポジトリ。
type PostgresDigestRepo struct {
	db *sql.DB
}

// NewPostgresDigestRepo はPostgresDigestRepoを生成する。
func NewPostgresDigestRepo(db *sql.DB) *PostgresDigestRepo {
	return &PostgresDigestRepo{db: db}
}

// CreateIfAbsent はダイジェストを挿入する。(user_id, date)が既に存在する場合は
// 何もせずfalseを返す。
func (r *PostgresDigestRepo) CreateIfAbsent(ctx context.Context, digest *model.Digest) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO digests (id, user_id, date, title, body, item_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT ON CONSTRAINT digests_user_date_unique DO NOTHING`,
		digest.ID, digest.UserID, digest.Date, digest.Title, digest.Body,
		digest.ItemCount, digest.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("ダイジェストの挿入に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("挿入件数の取得に失敗しました: %w", err)
	}

	return affected > 0, nil
}

// FindByUserAndDate は指定日付のダイジェストを取得する。見つからない場合はnilを返す。
func (r *PostgresDigestRepo) FindByUserAndDate(ctx context.Context, userID, date string) (*model.Digest, error) {
	digest := &model.Digest{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, date, title, body, item_count, created_at
		 FROM digests
		 WHERE user_id = $1 AND date = $2`,
		userID, date,
	).Scan(
		&digest.ID, &digest.UserID, &digest.Date, &digest.Title,
		&digest.Body, &digest.ItemCount, &digest.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ダイジェストの取得に失敗しました: %w", err)
	}

	return digest, nil
}

// ListByUser はユーザーのダイジェスト一覧を日付降順で返す。
func (r *PostgresDigestRepo) ListByUser(ctx context.Context, userID string) ([]*model.Digest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, date, title, body, item_count, created_at
		 FROM digests
		 WHERE user_id = $1
		 ORDER BY date DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ダイジェスト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var digests []*model.Digest
	for rows.Next() {
		digest := &model.Digest{}
		if err := rows.Scan(
			&digest.ID, &digest.UserID, &digest.Date, &digest.Title,
			&digest.Body, &digest.ItemCount, &digest.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ダイジェスト行のスキャンに失敗しました: %w", err)
		}
		digests = append(digests, digest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ダイジェスト一覧の走査に失敗しました: %w", err)
	}

	return digests, nil
}
