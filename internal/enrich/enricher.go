// Package enrich は記事本文の抽出処理を提供する。
// フィード内の要約しか持たない記事に対して、リンク先ページから
// go-readabilityで本文を抽出する。
package enrich

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// ContentEnricher は記事リンクから本文を抽出するインターフェース。
// 抽出失敗は取り込み処理を中断させないため、呼び出し側は
// エラー時に空文字列として扱う。
type ContentEnricher interface {
	// Enrich は記事リンク先から本文HTMLを抽出する。
	Enrich(ctx context.Context, link string) (string, error)
}

// SafeClientFactory はSSRF防止付きHTTPクライアントの生成インターフェース。
type SafeClientFactory interface {
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Extractor はHTML本文抽出処理を抽象化する。
// go-readabilityをテストから差し替え可能にする。
type Extractor func(r io.Reader, pageURL *url.URL) (string, error)

// ReadabilityEnricher はgo-readabilityを使用したContentEnricherの実装。
type ReadabilityEnricher struct {
	clientFactory SafeClientFactory
	extract       Extractor
	logger        *slog.Logger
	timeout       time.Duration
	maxBodySize   int64
}

// NewReadabilityEnricher はReadabilityEnricherの新しいインスタンスを生成する。
func NewReadabilityEnricher(
	clientFactory SafeClientFactory,
	extract Extractor,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *ReadabilityEnricher {
	return &ReadabilityEnricher{
		clientFactory: clientFactory,
		extract:       extract,
		logger:        logger,
		timeout:       timeout,
		maxBodySize:   maxBodySize,
	}
}

// Enrich は記事リンク先から本文HTMLを抽出する。
// リンク先の取得と抽出にはそれぞれタイムアウトが適用される。
func (e *ReadabilityEnricher) Enrich(ctx context.Context, link string) (string, error) {
	if link == "" {
		return "", fmt.Errorf("リンクが空です")
	}

	pageURL, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("リンクのパースに失敗しました: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	client := e.clientFactory.NewSafeClient(e.timeout, e.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("リクエスト作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Digestman/1.0 Feed Reader")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("記事ページの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("記事ページの取得に失敗しました: HTTPステータス %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, e.maxBodySize)
	content, err := e.extract(body, pageURL)
	if err != nil {
		return "", fmt.Errorf("本文抽出に失敗しました: %w", err)
	}

	return content, nil
}

// NoopEnricher は本文抽出を行わないContentEnricherの実装。
// 本文抽出を無効化した構成で使用する。
type NoopEnricher struct{}

// Enrich は常に空文字列を返す。
func (e *NoopEnricher) Enrich(ctx context.Context, link string) (string, error) {
	return "", nil
}
