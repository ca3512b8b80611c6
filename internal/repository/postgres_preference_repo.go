package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/digestman/internal/model"
)

// PostgresPreferenceRepo はPostgreSQLを使用した設定リポジトリ。
type PostgresPreferenceRepo struct {
	db *sql.DB
}

// NewPostgresPreferenceRepo はPostgresPreferenceRepoを生成する。
func NewPostgresPreferenceRepo(db *sql.DB) *PostgresPreferenceRepo {
	return &PostgresPreferenceRepo{db: db}
}

// FindOrCreate はユーザーの設定を取得する。存在しない場合は
// デフォルト値で作成してから返す。
func (r *PostgresPreferenceRepo) FindOrCreate(ctx context.Context, userID string) (*model.Preference, error) {
	pref, err := r.findByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pref != nil {
		return pref, nil
	}

	// 遅延作成。同時実行で先を越された場合はON CONFLICTで素通りし、
	// 既存行を読み直す。
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO preferences (id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO NOTHING`,
		uuid.New().String(), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("設定の作成に失敗しました: %w", err)
	}

	pref, err = r.findByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pref == nil {
		return nil, fmt.Errorf("作成した設定の読み直しに失敗しました")
	}

	return pref, nil
}

// Update は設定を更新する。
func (r *PostgresPreferenceRepo) Update(ctx context.Context, pref *model.Preference) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE preferences
		 SET retention_days = $2, auto_cleanup = $3, digest_enabled = $4,
		     digest_time = $5, digest_prompt = $6, api_key = $7, api_endpoint = $8,
		     updated_at = now()
		 WHERE user_id = $1`,
		pref.UserID, pref.RetentionDays, pref.AutoCleanup, pref.DigestEnabled,
		pref.DigestTime, pref.DigestPrompt, pref.APIKey, pref.APIEndpoint,
	)
	if err != nil {
		return fmt.Errorf("設定の更新に失敗しました: %w", err)
	}
	return nil
}

// ListDigestEnabled はダイジェスト生成が有効かつAPIキーが設定済みの設定を
// 全ユーザーから取得する。認証情報のないユーザーはダイジェスト生成の対象外。
func (r *PostgresPreferenceRepo) ListDigestEnabled(ctx context.Context) ([]*model.Preference, error) {
	return r.list(ctx, `digest_enabled = true AND api_key <> ''`)
}

// ListAutoCleanup は自動クリーンアップが有効な設定を全ユーザーから取得する。
func (r *PostgresPreferenceRepo) ListAutoCleanup(ctx context.Context) ([]*model.Preference, error) {
	return r.list(ctx, `auto_cleanup = true`)
}

func (r *PostgresPreferenceRepo) findByUser(ctx context.Context, userID string) (*model.Preference, error) {
	pref := &model.Preference{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, retention_days, auto_cleanup, digest_enabled,
		        digest_time, digest_prompt, api_key, api_endpoint, created_at, updated_at
		 FROM preferences
		 WHERE user_id = $1`,
		userID,
	).Scan(
		&pref.ID, &pref.UserID, &pref.RetentionDays, &pref.AutoCleanup,
		&pref.DigestEnabled, &pref.DigestTime, &pref.DigestPrompt,
		&pref.APIKey, &pref.APIEndpoint, &pref.CreatedAt, &pref.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}

	return pref, nil
}

func (r *PostgresPreferenceRepo) list(ctx context.Context, condition string) ([]*model.Preference, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, retention_days, auto_cleanup, digest_enabled,
		        digest_time, digest_prompt, api_key, api_endpoint, created_at, updated_at
		 FROM preferences
		 WHERE `+condition+`
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("設定一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var prefs []*model.Preference
	for rows.Next() {
		pref := &model.Preference{}
		if err := rows.Scan(
			&pref.ID, &pref.UserID, &pref.RetentionDays, &pref.AutoCleanup,
			&pref.DigestEnabled, &pref.DigestTime, &pref.DigestPrompt,
			&pref.APIKey, &pref.APIEndpoint, &pref.CreatedAt, &pref.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("設定行のスキャンに失敗しました: %w", err)
		}
		prefs = append(prefs, pref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("設定一覧の走査に失敗しました: %w", err)
	}

	return prefs, nil
}
