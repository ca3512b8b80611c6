// Package digestgen は日次ダイジェストの生成パスを提供する。
// ダイジェスト生成が有効な全ユーザーについて、前日分の記事を集めて
// 要約し、(user_id, date)で冪等に保存する。
package digestgen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/digestman/internal/clock"
	"github.com/hitoshi/digestman/internal/metrics"
	"github.com/hitoshi/digestman/internal/model"
	"github.com/hitoshi/digestman/internal/repository"
	"github.com/hitoshi/digestman/internal/summary"
)

// Result はダイジェスト生成パス1回分の実行結果。
type Result struct {
	UsersProcessed int `json:"users_processed"`
	DigestsCreated int `json:"digests_created"`
	Skipped        int `json:"skipped"`
	Errors         int `json:"errors"`
}

// Scheduler は日次ダイジェストの生成を統括する。
type Scheduler struct {
	prefRepo   repository.PreferenceRepository
	itemRepo   repository.ItemRepository
	digestRepo repository.DigestRepository
	factory    summary.SummarizerFactory
	clk        clock.Clock
	logger     *slog.Logger
	collector  metrics.MetricsCollector
	location   *time.Location
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// locationがnilの場合はtime.Localを使用する。
func NewScheduler(
	prefRepo repository.PreferenceRepository,
	itemRepo repository.ItemRepository,
	digestRepo repository.DigestRepository,
	factory summary.SummarizerFactory,
	clk clock.Clock,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	location *time.Location,
) *Scheduler {
	if location == nil {
		location = time.Local
	}
	return &Scheduler{
		prefRepo:   prefRepo,
		itemRepo:   itemRepo,
		digestRepo: digestRepo,
		factory:    factory,
		clk:        clk,
		logger:     logger,
		collector:  collector,
		location:   location,
	}
}

// RunOnce はダイジェスト生成パスを1回実行する。
// ダイジェスト生成が有効な全ユーザーを順に処理し、
// 個別ユーザーの失敗はパス全体を中断させない。
func (s *Scheduler) RunOnce(ctx context.Context) (*Result, error) {
	start := time.Now()
	now := s.clk.Now().In(s.location)

	prefs, err := s.prefRepo.ListDigestEnabled(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{}

	if len(prefs) == 0 {
		s.logger.Info("ダイジェスト生成対象のユーザーはありません")
		return result, nil
	}

	s.logger.Info("ダイジェスト生成パスを開始します",
		slog.Int("user_count", len(prefs)),
	)

	for _, pref := range prefs {
		result.UsersProcessed++

		created, err := s.generateForUser(ctx, pref, now)
		if err != nil {
			result.Errors++
			s.logger.Error("ダイジェスト生成に失敗しました",
				slog.String("user_id", pref.UserID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if created {
			result.DigestsCreated++
		} else {
			result.Skipped++
		}
	}

	s.logger.Info("ダイジェスト生成パスが完了しました",
		slog.Int("user_count", len(prefs)),
		slog.Int("digests_created", result.DigestsCreated),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors", result.Errors),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return result, nil
}

// generateForUser は単一ユーザーのダイジェストを生成する。
// 生成した場合はtrueを、対象外としてスキップした場合はfalseを返す。
func (s *Scheduler) generateForUser(ctx context.Context, pref *model.Preference, now time.Time) (bool, error) {
	// 有効化済みかつAPIキー設定済みのユーザーのみが生成対象
	if !pref.DigestReady() {
		return false, nil
	}

	hour, minute, err := pref.DigestClock()
	if err != nil {
		return false, fmt.Errorf("ダイジェスト時刻の設定が不正です: %w", err)
	}

	// 直近の生成トリガー時刻を求める。トリガーは毎日HH:MMに発生し、
	// 対象日はトリガー前日となる。
	trigger := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, s.location)
	if now.Before(trigger) {
		trigger = trigger.AddDate(0, 0, -1)
	}

	targetDay := trigger.AddDate(0, 0, -1)
	dateKey := targetDay.Format("2006-01-02")

	// 冪等性の早期チェック。要約APIの呼び出しを避けるため、
	// 既に生成済みの日付はここでスキップする。
	existing, err := s.digestRepo.FindByUserAndDate(ctx, pref.UserID, dateKey)
	if err != nil {
		return false, err
	}
	if existing != nil {
		s.logger.Debug("ダイジェストは生成済みです",
			slog.String("user_id", pref.UserID),
			slog.String("date", dateKey),
		)
		return false, nil
	}

	// 対象日の0時から24時間分の記事を集める
	dayStart := time.Date(targetDay.Year(), targetDay.Month(), targetDay.Day(), 0, 0, 0, 0, s.location)
	dayEnd := dayStart.AddDate(0, 0, 1)

	items, err := s.itemRepo.ListByPublishRange(ctx, pref.UserID, dayStart, dayEnd)
	if err != nil {
		return false, err
	}

	// 対象日に記事がない場合は生成しない
	if len(items) == 0 {
		s.logger.Info("対象日に記事がないためダイジェストをスキップします",
			slog.String("user_id", pref.UserID),
			slog.String("date", dateKey),
		)
		return false, nil
	}

	body := s.buildBody(ctx, pref, items)

	digest := &model.Digest{
		ID:        uuid.New().String(),
		UserID:    pref.UserID,
		Date:      dateKey,
		Title:     fmt.Sprintf("%s のダイジェスト", dateKey),
		Body:      body,
		ItemCount: len(items),
		CreatedAt: now,
	}

	created, err := s.digestRepo.CreateIfAbsent(ctx, digest)
	if err != nil {
		return false, err
	}
	if !created {
		// 早期チェック後に並行実行で先を越されたケース
		return false, nil
	}

	s.collector.RecordDigestCreated(pref.UserID)
	s.collector.RecordDigestItemCount(len(items))

	s.logger.Info("ダイジェストを生成しました",
		slog.String("user_id", pref.UserID),
		slog.String("date", dateKey),
		slog.Int("item_count", len(items)),
	)

	return true, nil
}

// buildBody はダイジェスト本文を生成する。
// 要約APIの失敗時はタイトル列挙のフォールバックを使用する。
func (s *Scheduler) buildBody(ctx context.Context, pref *model.Preference, items []model.ItemWithSource) string {
	prompt := pref.DigestPrompt
	if prompt == "" {
		prompt = summary.DefaultPrompt
	}

	summarizer := s.factory(pref.APIKey, pref.APIEndpoint)
	body, err := summarizer.Summarize(ctx, prompt, summary.BuildPrompt(items))
	if err != nil {
		s.logger.Warn("要約APIに失敗したためフォールバック本文を使用します",
			slog.String("user_id", pref.UserID),
			slog.String("error", err.Error()),
		)
		return summary.FallbackBody(items)
	}

	return body
}
