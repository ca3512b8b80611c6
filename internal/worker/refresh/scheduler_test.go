package refresh

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/digestman/internal/clock"
	"github.com/hitoshi/digestman/internal/model"
)

// --- モック定義 ---

// mockSourceRepo はSourceRepositoryのテスト用モック。
type mockSourceRepo struct {
	findByIDFunc         func(ctx context.Context, id, userID string) (*model.Source, error)
	findByURLAndUserFunc func(ctx context.Context, url, userID string) (*model.Source, error)
	createFunc           func(ctx context.Context, source *model.Source) error
	listByUserFunc       func(ctx context.Context, userID string) ([]model.SourceWithUnread, error)
	listDueFunc          func(ctx context.Context, before time.Time) ([]*model.Source, error)
	updateAfterFetchFunc func(ctx context.Context, id, title string, fetchedAt time.Time) error
	deleteFunc           func(ctx context.Context, id, userID string) (bool, error)
}

func (m *mockSourceRepo) FindByID(ctx context.Context, id, userID string) (*model.Source, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id, userID)
	}
	return nil, nil
}

func (m *mockSourceRepo) FindByURLAndUser(ctx context.Context, url, userID string) (*model.Source, error) {
	if m.findByURLAndUserFunc != nil {
		return m.findByURLAndUserFunc(ctx, url, userID)
	}
	return nil, nil
}

func (m *mockSourceRepo) Create(ctx context.Context, source *model.Source) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, source)
	}
	return nil
}

func (m *mockSourceRepo) ListByUser(ctx context.Context, userID string) ([]model.SourceWithUnread, error) {
	if m.listByUserFunc != nil {
		return m.listByUserFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockSourceRepo) ListDue(ctx context.Context, before time.Time) ([]*model.Source, error) {
	if m.listDueFunc != nil {
		return m.listDueFunc(ctx, before)
	}
	return nil, nil
}

func (m *mockSourceRepo) UpdateAfterFetch(ctx context.Context, id, title string, fetchedAt time.Time) error {
	if m.updateAfterFetchFunc != nil {
		return m.updateAfterFetchFunc(ctx, id, title, fetchedAt)
	}
	return nil
}

func (m *mockSourceRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id, userID)
	}
	return false, nil
}

// mockItemRepo はItemRepositoryのテスト用モック。
type mockItemRepo struct {
	titlesBySourceFunc     func(ctx context.Context, sourceID string) (map[string]struct{}, error)
	createIfAbsentFunc     func(ctx context.Context, item *model.Item) (bool, error)
	listByUserFunc         func(ctx context.Context, userID string, filter model.ItemFilter, sourceID string) ([]model.ItemWithSource, error)
	listByPublishRangeFunc func(ctx context.Context, userID string, from, to time.Time) ([]model.ItemWithSource, error)
	findByIDFunc           func(ctx context.Context, id, userID string) (*model.ItemWithSource, error)
	updateFlagsFunc        func(ctx context.Context, id, userID string, isRead, isPinned *bool) (*model.Item, error)
	deleteFunc             func(ctx context.Context, id, userID string) (bool, error)
	deleteExpiredFunc      func(ctx context.Context, userID string, cutoff time.Time) (int64, error)
}

func (m *mockItemRepo) TitlesBySource(ctx context.Context, sourceID string) (map[string]struct{}, error) {
	if m.titlesBySourceFunc != nil {
		return m.titlesBySourceFunc(ctx, sourceID)
	}
	return map[string]struct{}{}, nil
}

func (m *mockItemRepo) CreateIfAbsent(ctx context.Context, item *model.Item) (bool, error) {
	if m.createIfAbsentFunc != nil {
		return m.createIfAbsentFunc(ctx, item)
	}
	return true, nil
}

func (m *mockItemRepo) ListByUser(ctx context.Context, userID string, filter model.ItemFilter, sourceID string) ([]model.ItemWithSource, error) {
	if m.listByUserFunc != nil {
		return m.listByUserFunc(ctx, userID, filter, sourceID)
	}
	return nil, nil
}

func (m *mockItemRepo) ListByPublishRange(ctx context.Context, userID string, from, to time.Time) ([]model.ItemWithSource, error) {
	if m.listByPublishRangeFunc != nil {
		return m.listByPublishRangeFunc(ctx, userID, from, to)
	}
	return nil, nil
}

func (m *mockItemRepo) FindByID(ctx context.Context, id, userID string) (*model.ItemWithSource, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id, userID)
	}
	return nil, nil
}

func (m *mockItemRepo) UpdateFlags(ctx context.Context, id, userID string, isRead, isPinned *bool) (*model.Item, error) {
	if m.updateFlagsFunc != nil {
		return m.updateFlagsFunc(ctx, id, userID, isRead, isPinned)
	}
	return nil, nil
}

func (m *mockItemRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id, userID)
	}
	return false, nil
}

func (m *mockItemRepo) DeleteExpired(ctx context.Context, userID string, cutoff time.Time) (int64, error) {
	if m.deleteExpiredFunc != nil {
		return m.deleteExpiredFunc(ctx, userID, cutoff)
	}
	return 0, nil
}

// mockSourceFetcher はSourceFetcherのテスト用モック。
type mockSourceFetcher struct {
	fetchFunc func(ctx context.Context, sourceURL string) (*model.ParsedSource, error)
}

func (m *mockSourceFetcher) Fetch(ctx context.Context, sourceURL string) (*model.ParsedSource, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, sourceURL)
	}
	return &model.ParsedSource{}, nil
}

// mockEnricher はEnricherのテスト用モック。
type mockEnricher struct {
	enrichFunc func(ctx context.Context, link string) (string, error)
}

func (m *mockEnricher) Enrich(ctx context.Context, link string) (string, error) {
	if m.enrichFunc != nil {
		return m.enrichFunc(ctx, link)
	}
	return "", nil
}

// passthroughSanitizer はサニタイズを行わないテスト用Sanitizer。
type passthroughSanitizer struct{}

func (s *passthroughSanitizer) Sanitize(rawHTML string) string {
	return rawHTML
}

// nopCollector はメトリクス収集を行わないテスト用MetricsCollector。
type nopCollector struct{}

func (c *nopCollector) RecordRefreshSuccess(sourceID string)               {}
func (c *nopCollector) RecordRefreshFailure(sourceID string, reason string) {}
func (c *nopCollector) RecordRefreshLatency(duration time.Duration)        {}
func (c *nopCollector) RecordItemsIngested(count int)                      {}
func (c *nopCollector) RecordEnrichFailure(sourceID string)                {}
func (c *nopCollector) RecordDigestCreated(userID string)                  {}
func (c *nopCollector) RecordDigestItemCount(count int)                    {}
func (c *nopCollector) RecordItemsDeleted(count int64)                     {}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// testNow はテストで使用する固定の現在時刻。
var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestScheduler(sourceRepo *mockSourceRepo, itemRepo *mockItemRepo, fetcher *mockSourceFetcher, enricher *mockEnricher, buf *bytes.Buffer) *Scheduler {
	return NewScheduler(
		sourceRepo,
		itemRepo,
		fetcher,
		enricher,
		&passthroughSanitizer{},
		NewDeduplicator(nil),
		&clock.FixedClock{T: testNow},
		newTestLogger(buf),
		&nopCollector{},
		30*time.Minute,
		7*24*time.Hour,
		10,
		4,
	)
}

// --- スケジューラのテスト ---

func TestNewScheduler_DefaultConcurrency(t *testing.T) {
	var buf bytes.Buffer

	// 0以下の場合はデフォルト値を使用する
	s := NewScheduler(
		&mockSourceRepo{}, &mockItemRepo{}, &mockSourceFetcher{}, &mockEnricher{},
		&passthroughSanitizer{}, nil, &clock.FixedClock{T: testNow}, newTestLogger(&buf),
		&nopCollector{}, 30*time.Minute, 7*24*time.Hour, 0, 0,
	)
	if s.maxConcurrency != 10 {
		t.Errorf("maxConcurrency = %d, want 10 (default)", s.maxConcurrency)
	}
	if s.enrichConcurrency != 4 {
		t.Errorf("enrichConcurrency = %d, want 4 (default)", s.enrichConcurrency)
	}
}

func TestScheduler_RunOnce_SelectsStaleSourcesOnly(t *testing.T) {
	var buf bytes.Buffer

	var gotBefore time.Time
	sourceRepo := &mockSourceRepo{
		listDueFunc: func(ctx context.Context, before time.Time) ([]*model.Source, error) {
			gotBefore = before
			return nil, nil
		},
	}

	s := newTestScheduler(sourceRepo, &mockItemRepo{}, &mockSourceFetcher{}, &mockEnricher{}, &buf)
	_, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() がエラーを返した: %v", err)
	}

	// 鮮度閾値（30分）を引いた時刻でListDueが呼ばれること
	want := testNow.Add(-30 * time.Minute)
	if !gotBefore.Equal(want) {
		t.Errorf("ListDue の閾値時刻 = %v, want %v", gotBefore, want)
	}
}

func TestScheduler_RunOnce_IngestsItems(t *testing.T) {
	var buf bytes.Buffer

	sources := []*model.Source{
		{ID: "source-1", UserID: "user-1", URL: "https://example.com/feed.xml"},
	}

	parsed := &model.ParsedSource{
		Title: "テストフィード",
		Items: []model.ParsedItem{
			{Title: "記事1", Link: "https://example.com/1", Content: "<p>本文1</p>", PublishedAt: timePtr(testNow.Add(-time.Hour))},
			{Title: "記事2", Link: "https://example.com/2", Content: "<p>本文2</p>", PublishedAt: timePtr(testNow.Add(-2 * time.Hour))},
			{Title: "記事3", Link: "https://example.com/3", Content: "<p>本文3</p>", PublishedAt: timePtr(testNow.Add(-3 * time.Hour))},
		},
	}

	var created []*model.Item
	var mu sync.Mutex

	sourceRepo := &mockSourceRepo{
		listDueFunc: func(ctx context.Context, before time.Time) ([]*model.Source, error) {
			return sources, nil
		},
	}
	itemRepo := &mockItemRepo{
		createIfAbsentFunc: func(ctx context.Context, item *model.Item) (bool, error) {
			mu.Lock()
			created = append(created, item)
			mu.Unlock()
			return true, nil
		},
	}
	fetcher := &mockSourceFetcher{
		fetchFunc: func(ctx context.Context, sourceURL string) (*model.ParsedSource, error) {
			return parsed, nil
		},
	}

	s := newTestScheduler(sourceRepo, itemRepo, fetcher, &mockEnricher{}, &buf)
	result, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() がエラーを返した: %v", err)
	}

	if result.SourcesProcessed != 1 {
		t.Errorf("SourcesProcessed = %d, want 1", result.SourcesProcessed)
	}
	if result.ItemsAdded != 3 {
		t.Errorf("ItemsAdded = %d, want 3", result.ItemsAdded)
	}
	if result.Errors != 0 {
		t.Errorf("Errors = %d, want 0", result.Errors)
	}

	for _, item := range created {
		if item.SourceID != "source-1" || item.UserID != "user-1" {
			t.Errorf("記事の帰属が不正: %+v", item)
		}
		if item.PublishedAt.IsZero() {
			t.Errorf("PublishedAt が設定されていない: %+v", item)
		}
	}
}

func TestScheduler_RunOnce_SkipsDuplicates(t *testing.T) {
	var buf bytes.Buffer

	sources := []*model.Source{
		{ID: "source-1", UserID: "user-1", URL: "https://example.com/feed.xml"},
	}

	parsed := &model.ParsedSource{
		Items: []model.ParsedItem{
			{Title: "既存の記事", PublishedAt: timePtr(testNow.Add(-time.Hour))},
			{Title: "新しい記事", PublishedAt: timePtr(testNow.Add(-time.Hour))},
		},
	}

	var createdTitles []string
	var mu sync.Mutex

	sourceRepo := &mockSourceRepo{
		listDueFunc: func(ctx context.Context, before time.Time) ([]*model.Source, error) {
			return sources, nil
		},
	}
	itemRepo := &mockItemRepo{
		titlesBySourceFunc: func(ctx context.Context, sourceID string) (map[string]struct{}, error) {
			return map[string]struct{}{"既存の記事": {}}, nil
		},
		createIfAbsentFunc: func(ctx context.Context, item *model.Item) (bool, error) {
			mu.Lock()
			createdTitles = append(createdTitles, item.Title)
			mu.Unlock()
			return true, nil
		},
	}
	fetcher := &mockSourceFetcher{
		fetchFunc: func(ctx context.Context, sourceURL string) (*model.ParsedSource, error) {
			return parsed, nil
		},
	}

	s := newTestScheduler(sourceRepo, itemRepo, fetcher, &mockEnricher{}, &buf)
	result, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() がエラーを返した: %v", err)
	}

	if result.ItemsAdded != 1 {
		t.Errorf("ItemsAdded = %d, want 1", result.ItemsAdded)
	}
	if len(createdTitles) != 1 || createdTitles[0] != "新しい記事" {
		t.Errorf("保存された記事 = %v, want [新しい記事]", createdTitles)
	}
}

func TestScheduler_RunOnce_DropsStaleItems(t *testing.T) {
	var buf bytes.Buffer

	sources := []*model.Source{
		{ID: "source-1", UserID: "user-1", URL: "https://example.com/feed.xml"},
	}

	parsed := &model.ParsedSource{
		Items: []model.ParsedItem{
			{Title: "古い記事", PublishedAt: timePtr(testNow.Add(-8 * 24 * time.Hour))},
			{Title: "日付なし", PublishedAt: nil},
			{Title: "新しい記事", PublishedAt: timePtr(testNow.Add(-time.Hour))},
		},
	}

	sourceRepo := &mockSourceRepo{
		listDueFunc: func(ctx context.Context, before time.Time) ([]*model.Source, error) {
			return sources, nil
		},
	}
	itemRepo := &mockItemRepo{}
	fetcher := &mockSourceFetcher{
		fetchFunc: func(ctx context.Context, sourceURL string) (*model.ParsedSource, error) {
			return parsed, nil
		},
	}

	s := newTestScheduler(sourceRepo, itemRepo, fetcher, &mockEnricher{}, &buf)
	result, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() がエラーを返した: %v", err)
	}

	if result.ItemsAdded != 1 {
		t.Errorf("ItemsAdded = %d, want 1", result.ItemsAdded)
	}
}

func TestScheduler_RunOnce_AdvancesLastFetchedAtOnEmptyFeed(t *testing.T) {
	var buf bytes.Buffer

	sources := []*model.Source{
		{ID: "source-1", UserID: "user-1", URL: "https://example.com/feed.xml", Title: "既存タイトル"},
	}

	var updatedAt time.Time
	var updatedTitle string

	sourceRepo := &mockSourceRepo{
		listDueFunc: func(ctx context.Context, before time.Time) ([]*model.Source, error) {
			return sources, nil
		},
		updateAfterFetchFunc: func(ctx context.Context, id, title string, fetchedAt time.Time) error {
			updatedAt = fetchedAt
			updatedTitle = title
			return nil
		},
	}
	fetcher := &mockSourceFetcher{
		fetchFunc: func(ctx context.Context, sourceURL string) (*model.ParsedSource, error) {
			return &model.ParsedSource{Items: nil}, nil
		},
	}

	s := newTestScheduler(sourceRepo, &mockItemRepo{}, fetcher, &mockEnricher{}, &buf)
	result, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() がエラーを返した: %v", err)
	}

	// 新規0件でもlast_fetched_atが進むこと
	if !updatedAt.Equal(testNow) {
		t.Errorf("last_fetched_at = %v, want %v", updatedAt, testNow)
	}
	// パース結果のタイトルが空の場合は既存タイトルが維持されること
	if updatedTitle != "既存タイトル" {
		t.Errorf("title = %q, want %q", updatedTitle, "既存タイトル")
	}
	if result.ItemsAdded != 0 {
		t.Errorf("ItemsAdded = %d, want 0", result.ItemsAdded)
	}
}

func TestScheduler_RunOnce_FailureIsolation(t *testing.T) {
	var buf bytes.Buffer

	sources := []*model.Source{
		{ID: "source-1", UserID: "user-1", URL: "https://example.com/ok.xml"},
		{ID: "source-2", UserID: "user-1", URL: "https://example.com/broken.xml"},
		{ID: "source-3", UserID: "user-1", URL: "https://example.com/ok2.xml"},
	}

	var updatedIDs []string
	var mu sync.Mutex

	sourceRepo := &mockSourceRepo{
		listDueFunc: func(ctx context.Context, before time.Time) ([]*model.Source, error) {
			return sources, nil
		},
		updateAfterFetchFunc: func(ctx context.Context, id, title string, fetchedAt time.Time) error {
			mu.Lock()
			updatedIDs = append(updatedIDs, id)
			mu.Unlock()
			return nil
		},
	}
	fetcher := &mockSourceFetcher{
		fetchFunc: func(ctx context.Context, sourceURL string) (*model.ParsedSource, error) {
			if strings.Contains(sourceURL, "broken") {
				return nil, errors.New("fetch failed")
			}
			return &model.ParsedSource{Items: []model.ParsedItem{
				{Title: sourceURL, PublishedAt: timePtr(testNow.Add(-time.Hour))},
			}}, nil
		},
	}

	s := newTestScheduler(sourceRepo, &mockItemRepo{}, fetcher, &mockEnricher{}, &buf)
	result, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() は個別ソースの失敗でエラーを返すべきではない: %v", err)
	}

	if result.SourcesProcessed != 3 {
		t.Errorf("SourcesProcessed = %d, want 3", result.SourcesProcessed)
	}
	if result.Errors != 1 {
		t.Errorf("Errors = %d, want 1", result.Errors)
	}
	if result.ItemsAdded != 2 {
		t.Errorf("ItemsAdded = %d, want 2", result.ItemsAdded)
	}

	// 失敗したソースのlast_fetched_atは更新されないこと
	for _, id := range updatedIDs {
		if id == "source-2" {
			t.Error("失敗したソースのlast_fetched_atが更新された")
		}
	}
}

func TestScheduler_RunOnce_EnrichFailureDoesNotAbort(t *testing.T) {
	var buf bytes.Buffer

	sources := []*model.Source{
		{ID: "source-1", UserID: "user-1", URL: "https://example.com/feed.xml"},
	}

	parsed := &model.ParsedSource{
		Items: []model.ParsedItem{
			{Title: "記事1", Link: "https://example.com/1", Content: "<p>要約</p>", PublishedAt: timePtr(testNow.Add(-time.Hour))},
		},
	}

	var savedItem *model.Item
	var mu sync.Mutex

	sourceRepo := &mockSourceRepo{
		listDueFunc: func(ctx context.Context, before time.Time) ([]*model.Source, error) {
			return sources, nil
		},
	}
	itemRepo := &mockItemRepo{
		createIfAbsentFunc: func(ctx context.Context, item *model.Item) (bool, error) {
			mu.Lock()
			savedItem = item
			mu.Unlock()
			return true, nil
		},
	}
	fetcher := &mockSourceFetcher{
		fetchFunc: func(ctx context.Context, sourceURL string) (*model.ParsedSource, error) {
			return parsed, nil
		},
	}
	enricher := &mockEnricher{
		enrichFunc: func(ctx context.Context, link string) (string, error) {
			return "", errors.New("extraction failed")
		},
	}

	s := newTestScheduler(sourceRepo, itemRepo, fetcher, enricher, &buf)
	result, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() がエラーを返した: %v", err)
	}

	// 抽出失敗でも記事は保存され、本文は空になる
	if result.ItemsAdded != 1 {
		t.Errorf("ItemsAdded = %d, want 1", result.ItemsAdded)
	}
	if savedItem == nil {
		t.Fatal("記事が保存されていない")
	}
	if savedItem.FullContent != "" {
		t.Errorf("FullContent = %q, want empty", savedItem.FullContent)
	}
	if savedItem.Content == "" {
		t.Error("フィード由来のContentは保持されるべき")
	}
}

func TestScheduler_RunOnce_ConcurrencyLimit(t *testing.T) {
	var buf bytes.Buffer

	sources := make([]*model.Source, 20)
	for i := range sources {
		sources[i] = &model.Source{ID: "source-" + string(rune('a'+i)), UserID: "user-1", URL: "https://example.com/feed.xml"}
	}

	var maxConcurrent int32
	var currentConcurrent int32
	var fetchCount int32

	sourceRepo := &mockSourceRepo{
		listDueFunc: func(ctx context.Context, before time.Time) ([]*model.Source, error) {
			return sources, nil
		},
	}
	fetcher := &mockSourceFetcher{
		fetchFunc: func(ctx context.Context, sourceURL string) (*model.ParsedSource, error) {
			current := atomic.AddInt32(&currentConcurrent, 1)
			defer atomic.AddInt32(&currentConcurrent, -1)
			atomic.AddInt32(&fetchCount, 1)

			// 最大同時実行数を記録
			for {
				old := atomic.LoadInt32(&maxConcurrent)
				if current <= old {
					break
				}
				if atomic.CompareAndSwapInt32(&maxConcurrent, old, current) {
					break
				}
			}

			time.Sleep(10 * time.Millisecond)
			return &model.ParsedSource{}, nil
		},
	}

	s := NewScheduler(
		sourceRepo, &mockItemRepo{}, fetcher, &mockEnricher{},
		&passthroughSanitizer{}, NewDeduplicator(nil), &clock.FixedClock{T: testNow},
		newTestLogger(&buf), &nopCollector{},
		30*time.Minute, 7*24*time.Hour, 3, 4,
	)

	_, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() がエラーを返した: %v", err)
	}

	if atomic.LoadInt32(&fetchCount) != 20 {
		t.Errorf("フェッチ回数 = %d, want 20", atomic.LoadInt32(&fetchCount))
	}
	if atomic.LoadInt32(&maxConcurrent) > 3 {
		t.Errorf("最大同時実行数 = %d, 3以下であるべき", atomic.LoadInt32(&maxConcurrent))
	}
}

func TestScheduler_RunOnce_RepoError(t *testing.T) {
	var buf bytes.Buffer

	sourceRepo := &mockSourceRepo{
		listDueFunc: func(ctx context.Context, before time.Time) ([]*model.Source, error) {
			return nil, errors.New("db connection failed")
		},
	}

	s := newTestScheduler(sourceRepo, &mockItemRepo{}, &mockSourceFetcher{}, &mockEnricher{}, &buf)
	_, err := s.RunOnce(context.Background())
	if err == nil {
		t.Fatal("RunOnce() はリポジトリエラー時にエラーを返すべき")
	}
}

func TestScheduler_RunOnce_LogsFetchError(t *testing.T) {
	var buf bytes.Buffer

	sources := []*model.Source{
		{ID: "source-1", UserID: "user-1", URL: "https://example.com/feed.xml"},
	}

	sourceRepo := &mockSourceRepo{
		listDueFunc: func(ctx context.Context, before time.Time) ([]*model.Source, error) {
			return sources, nil
		},
	}
	fetcher := &mockSourceFetcher{
		fetchFunc: func(ctx context.Context, sourceURL string) (*model.ParsedSource, error) {
			return nil, errors.New("timeout")
		},
	}

	s := newTestScheduler(sourceRepo, &mockItemRepo{}, fetcher, &mockEnricher{}, &buf)
	_, _ = s.RunOnce(context.Background())

	// エラーログが出力されていること
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("フェッチエラー時にERRORレベルのログが記録されていない: %s", buf.String())
	}
}
