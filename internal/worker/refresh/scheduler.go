// Package refresh はソースの取り込みパス全体を提供する。
// フェッチ、鮮度フィルタ、重複排除、本文抽出、保存を統括する
// スケジューラを含む。
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/digestman/internal/clock"
	"github.com/hitoshi/digestman/internal/metrics"
	"github.com/hitoshi/digestman/internal/model"
	"github.com/hitoshi/digestman/internal/repository"
)

// Enricher は記事本文の抽出インターフェース。
type Enricher interface {
	Enrich(ctx context.Context, link string) (string, error)
}

// Sanitizer はHTMLサニタイズのインターフェース。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// Result は更新パス1回分の実行結果。
type Result struct {
	SourcesProcessed int `json:"sources_processed"`
	ItemsAdded       int `json:"items_added"`
	Errors           int `json:"errors"`
}

// Scheduler は更新対象ソースの選定と並列制御を行う。
// 1回の実行パスで鮮度閾値を超過したソースを取得し、
// semaphoreパターンで最大並列数を制御しながら更新を実行する。
type Scheduler struct {
	sourceRepo        repository.SourceRepository
	itemRepo          repository.ItemRepository
	fetcher           SourceFetcher
	enricher          Enricher
	sanitizer         Sanitizer
	dedup             *Deduplicator
	clk               clock.Clock
	logger            *slog.Logger
	collector         metrics.MetricsCollector
	staleness         time.Duration
	horizon           time.Duration
	maxConcurrency    int
	enrichConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
// enrichConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewScheduler(
	sourceRepo repository.SourceRepository,
	itemRepo repository.ItemRepository,
	fetcher SourceFetcher,
	enricher Enricher,
	sanitizer Sanitizer,
	dedup *Deduplicator,
	clk clock.Clock,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	staleness time.Duration,
	horizon time.Duration,
	maxConcurrency int,
	enrichConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	if enrichConcurrency <= 0 {
		enrichConcurrency = 4
	}
	if dedup == nil {
		dedup = NewDeduplicator(nil)
	}
	return &Scheduler{
		sourceRepo:        sourceRepo,
		itemRepo:          itemRepo,
		fetcher:           fetcher,
		enricher:          enricher,
		sanitizer:         sanitizer,
		dedup:             dedup,
		clk:               clk,
		logger:            logger,
		collector:         collector,
		staleness:         staleness,
		horizon:           horizon,
		maxConcurrency:    maxConcurrency,
		enrichConcurrency: enrichConcurrency,
	}
}

// RunOnce は更新パスを1回実行する。
// 鮮度閾値を超過したソースを取得し、並列で更新する。
// 個別ソースの失敗はパス全体を中断させず、Errorsにカウントされる。
// パス全体で単一の現在時刻を使用する。
func (s *Scheduler) RunOnce(ctx context.Context) (*Result, error) {
	start := time.Now()
	now := s.clk.Now()

	sources, err := s.sourceRepo.ListDue(ctx, now.Add(-s.staleness))
	if err != nil {
		return nil, err
	}

	result := &Result{}

	if len(sources) == 0 {
		s.logger.Info("更新対象のソースはありません")
		return result, nil
	}

	s.logger.Info("更新パスを開始します",
		slog.Int("source_count", len(sources)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, source := range sources {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(src *model.Source) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			added, err := s.refreshSource(ctx, src, now)

			mu.Lock()
			defer mu.Unlock()
			result.SourcesProcessed++
			result.ItemsAdded += added
			if err != nil {
				result.Errors++
				s.logger.Error("ソース更新に失敗しました",
					slog.String("source_id", src.ID),
					slog.String("source_url", src.URL),
					slog.String("error", err.Error()),
				)
			}
		}(source)
	}

	wg.Wait()

	s.logger.Info("更新パスが完了しました",
		slog.Int("source_count", len(sources)),
		slog.Int("items_added", result.ItemsAdded),
		slog.Int("errors", result.Errors),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return result, nil
}

// RefreshSource は単一ソースの更新を即時実行する。
// 手動更新APIやOPMLインポート後の初回取り込みで使用される。
func (s *Scheduler) RefreshSource(ctx context.Context, source *model.Source) (int, error) {
	return s.refreshSource(ctx, source, s.clk.Now())
}

// refreshSource は単一ソースの更新を実行する。
// フェッチ → 鮮度フィルタ → 重複排除 → 本文抽出 → 保存の順に処理し、
// 成功時はlast_fetched_atを現在時刻に進める。
// 新規記事が0件でもlast_fetched_atは更新される。
func (s *Scheduler) refreshSource(ctx context.Context, source *model.Source, now time.Time) (int, error) {
	fetchStart := time.Now()

	parsed, err := s.fetcher.Fetch(ctx, source.URL)
	if err != nil {
		s.collector.RecordRefreshFailure(source.ID, err.Error())
		return 0, err
	}

	s.collector.RecordRefreshLatency(time.Since(fetchStart))

	// 鮮度ウィンドウ外の記事と公開日時を持たない記事を除外
	recent := FilterRecent(parsed.Items, now, s.horizon)

	// 既存記事との重複排除
	existing, err := s.itemRepo.TitlesBySource(ctx, source.ID)
	if err != nil {
		s.collector.RecordRefreshFailure(source.ID, err.Error())
		return 0, err
	}
	fresh := s.dedup.Filter(recent, existing)

	// 本文抽出（ソース内で並列数を制御）
	fullContents := s.enrichItems(ctx, source.ID, fresh)

	added := 0
	for i, item := range fresh {
		record := &model.Item{
			ID:          uuid.New().String(),
			SourceID:    source.ID,
			UserID:      source.UserID,
			Title:       item.Title,
			Link:        item.Link,
			Content:     s.sanitizer.Sanitize(item.Content),
			FullContent: s.sanitizer.Sanitize(fullContents[i]),
			PublishedAt: *item.PublishedAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		created, err := s.itemRepo.CreateIfAbsent(ctx, record)
		if err != nil {
			s.collector.RecordRefreshFailure(source.ID, err.Error())
			return added, err
		}
		if created {
			added++
		}
	}

	// タイトルはパース結果を優先。空の場合は既存タイトルを維持する。
	title := parsed.Title
	if title == "" {
		title = source.Title
	}

	// 新規0件でもlast_fetched_atを進めることで、同じソースが
	// 次のパスで即座に再選定されるのを防ぐ。
	if err := s.sourceRepo.UpdateAfterFetch(ctx, source.ID, title, now); err != nil {
		s.collector.RecordRefreshFailure(source.ID, err.Error())
		return added, err
	}

	s.collector.RecordRefreshSuccess(source.ID)
	s.collector.RecordItemsIngested(added)

	s.logger.Info("ソース更新が完了しました",
		slog.String("source_id", source.ID),
		slog.Int("items_parsed", len(parsed.Items)),
		slog.Int("items_recent", len(recent)),
		slog.Int("items_added", added),
	)

	return added, nil
}

// enrichItems は記事本文を並列で抽出する。
// 抽出失敗は取り込みを中断させず、該当記事の本文は空文字列となる。
// 戻り値はitemsと同じ並び順。
func (s *Scheduler) enrichItems(ctx context.Context, sourceID string, items []model.ParsedItem) []string {
	contents := make([]string, len(items))

	sem := make(chan struct{}, s.enrichConcurrency)
	var wg sync.WaitGroup

	for i, item := range items {
		if item.Link == "" {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, link string) {
			defer wg.Done()
			defer func() { <-sem }()

			content, err := s.enricher.Enrich(ctx, link)
			if err != nil {
				s.collector.RecordEnrichFailure(sourceID)
				s.logger.Warn("本文抽出に失敗しました",
					slog.String("source_id", sourceID),
					slog.String("link", link),
					slog.String("error", err.Error()),
				)
				return
			}
			contents[idx] = content
		}(i, item.Link)
	}

	wg.Wait()

	return contents
}
