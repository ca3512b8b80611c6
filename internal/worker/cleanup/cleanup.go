// Package cleanup は保持期間を超過した記事の自動削除パスを提供する。
// 自動クリーンアップが有効なユーザーごとに、既読かつ非ピン留めで
// 保持期間を過ぎた記事を削除する。ピン留め記事と未読記事は
// 保持期間に関係なく削除されない。
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/digestman/internal/clock"
	"github.com/hitoshi/digestman/internal/metrics"
	"github.com/hitoshi/digestman/internal/model"
	"github.com/hitoshi/digestman/internal/repository"
)

// Result はクリーンアップパス1回分の実行結果。
type Result struct {
	UsersProcessed int   `json:"users_processed"`
	ItemsDeleted   int64 `json:"items_deleted"`
	Errors         int   `json:"errors"`
}

// Sweeper は保持期間を超過した記事の削除パスを実行する。
// 冪等: 削除対象がない場合でもエラーにならない。
type Sweeper struct {
	prefRepo  repository.PreferenceRepository
	itemRepo  repository.ItemRepository
	clk       clock.Clock
	logger    *slog.Logger
	collector metrics.MetricsCollector
}

// NewSweeper はSweeperの新しいインスタンスを生成する。
func NewSweeper(
	prefRepo repository.PreferenceRepository,
	itemRepo repository.ItemRepository,
	clk clock.Clock,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *Sweeper {
	return &Sweeper{
		prefRepo:  prefRepo,
		itemRepo:  itemRepo,
		clk:       clk,
		logger:    logger,
		collector: collector,
	}
}

// RunOnce はクリーンアップパスを1回実行する。
// 自動クリーンアップが有効な全ユーザーを順に処理し、
// 個別ユーザーの失敗はパス全体を中断させない。
func (s *Sweeper) RunOnce(ctx context.Context) (*Result, error) {
	start := time.Now()
	now := s.clk.Now()

	prefs, err := s.prefRepo.ListAutoCleanup(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{}

	if len(prefs) == 0 {
		s.logger.Info("クリーンアップ対象のユーザーはありません")
		return result, nil
	}

	for _, pref := range prefs {
		result.UsersProcessed++

		deleted, err := s.sweepUser(ctx, pref, now)
		if err != nil {
			result.Errors++
			s.logger.Error("記事クリーンアップに失敗しました",
				slog.String("user_id", pref.UserID),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.ItemsDeleted += deleted
	}

	s.logger.Info("クリーンアップパスが完了しました",
		slog.Int("user_count", len(prefs)),
		slog.Int64("items_deleted", result.ItemsDeleted),
		slog.Int("errors", result.Errors),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return result, nil
}

// sweepUser は単一ユーザーの期限切れ記事を削除する。
func (s *Sweeper) sweepUser(ctx context.Context, pref *model.Preference, now time.Time) (int64, error) {
	retentionDays := pref.RetentionDays
	if retentionDays <= 0 {
		retentionDays = model.DefaultRetentionDays
	}

	cutoff := now.AddDate(0, 0, -retentionDays)

	deleted, err := s.itemRepo.DeleteExpired(ctx, pref.UserID, cutoff)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		s.collector.RecordItemsDeleted(deleted)
		s.logger.Info("期限切れ記事を削除しました",
			slog.String("user_id", pref.UserID),
			slog.Int64("deleted_count", deleted),
			slog.Int("retention_days", retentionDays),
		)
	}

	return deleted, nil
}
