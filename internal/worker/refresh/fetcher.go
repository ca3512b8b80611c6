package refresh

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/digestman/internal/model"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// SourceFetcher はソースのHTTPフェッチとパースを行うインターフェース。
type SourceFetcher interface {
	// Fetch はソースURLからフィードを取得してパースする。
	Fetch(ctx context.Context, sourceURL string) (*model.ParsedSource, error)
}

// Fetcher はSourceFetcherの実装。
// SSRF検証付きHTTPクライアントでフィードを取得し、gofeedでパースする。
type Fetcher struct {
	ssrfGuard   SSRFValidator
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(
	ssrfGuard SSRFValidator,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *Fetcher {
	return &Fetcher{
		ssrfGuard:   ssrfGuard,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Fetch はソースURLからフィードを取得してパースする。
// SSRF検証 → HTTPフェッチ → gofeedパース → ParsedSourceへの変換を行う。
func (f *Fetcher) Fetch(ctx context.Context, sourceURL string) (*model.ParsedSource, error) {
	start := time.Now()

	// SSRF検証
	if err := f.ssrfGuard.ValidateURL(sourceURL); err != nil {
		return nil, fmt.Errorf("SSRF検証に失敗しました: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	client := f.ssrfGuard.NewSafeClient(f.timeout, f.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗しました: %w", err)
	}

	req.Header.Set("User-Agent", "Digestman/1.0 Feed Reader")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("フィードの取得に失敗しました: HTTPステータス %d", resp.StatusCode)
	}

	// レスポンスボディを読み込み（最大サイズ制限付き）
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスの読み取りに失敗しました: %w", err)
	}

	parser := gofeed.NewParser()
	parsedFeed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗しました: %w", err)
	}

	parsed := &model.ParsedSource{
		Title: parsedFeed.Title,
		Link:  parsedFeed.Link,
		Items: convertGofeedItems(parsedFeed.Items),
	}

	f.logger.Debug("フィードを取得しました",
		slog.String("source_url", sourceURL),
		slog.Int("item_count", len(parsed.Items)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return parsed, nil
}

// convertGofeedItems はgofeedの記事をmodel.ParsedItemに変換する。
func convertGofeedItems(items []*gofeed.Item) []model.ParsedItem {
	parsedItems := make([]model.ParsedItem, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		parsed := model.ParsedItem{
			Title:   item.Title,
			Link:    item.Link,
			Content: item.Content,
		}

		// 公開日時: PublishedParsedを優先し、なければUpdatedParsedを使用。
		// どちらもない場合はnilのまま（鮮度フィルタで除外される）。
		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			parsed.PublishedAt = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			parsed.PublishedAt = &t
		}

		// Contentが空の場合はDescriptionを使用
		if parsed.Content == "" && item.Description != "" {
			parsed.Content = item.Description
		}

		parsedItems = append(parsedItems, parsed)
	}

	return parsedItems
}
