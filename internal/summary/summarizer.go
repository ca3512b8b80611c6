// Package summary はダイジェスト本文の生成を提供する。
// OpenAI互換APIによる要約と、API不通時の決定的なフォールバックを含む。
package summary

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/hitoshi/digestman/internal/model"
)

// DefaultPrompt は要約に使用するデフォルトのシステムプロンプト。
// ユーザー設定のdigest_promptが空の場合に使用される。
const DefaultPrompt = "あなたはニュース編集者です。以下の記事一覧をもとに、1日のダイジェストを日本語で作成してください。重要なトピックごとに見出しを付け、各記事の要点を簡潔にまとめてください。"

// maxExcerptRunes は記事1件あたりのプロンプトに含める抜粋の最大文字数。
const maxExcerptRunes = 300

// Summarizer はテキスト要約のインターフェース。
type Summarizer interface {
	// Summarize はシステムプロンプトと本文からダイジェスト本文を生成する。
	Summarize(ctx context.Context, systemPrompt, text string) (string, error)
}

// SummarizerFactory はユーザーごとのAPI設定からSummarizerを生成する関数。
// APIキーとエンドポイントはユーザー設定由来のため、呼び出しごとに構築する。
type SummarizerFactory func(apiKey, endpoint string) Summarizer

// BuildPrompt は記事一覧から要約用の入力テキストを構築する。
// 各記事は番号付きで、タイトル、ソース名、HTML除去済みの抜粋を含む。
func BuildPrompt(items []model.ItemWithSource) string {
	var b strings.Builder

	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item.Title)
		if item.SourceTitle != "" {
			fmt.Fprintf(&b, "ソース: %s\n", item.SourceTitle)
		}

		content := item.FullContent
		if content == "" {
			content = item.Content
		}
		excerpt := truncateRunes(StripHTML(content), maxExcerptRunes)
		if excerpt != "" {
			fmt.Fprintf(&b, "%s\n", excerpt)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// FallbackBody は要約APIが使用できない場合の決定的なダイジェスト本文を生成する。
// 記事タイトルの番号付き列挙を返す。
func FallbackBody(items []model.ItemWithSource) string {
	var b strings.Builder

	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s", i+1, item.Title)
		if item.SourceTitle != "" {
			fmt.Fprintf(&b, " (%s)", item.SourceTitle)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// StripHTML はHTMLからテキストのみを抽出する。
// script/styleタグの中身は除外される。
func StripHTML(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}

	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))

	skipDepth := 0
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return normalizeSpace(b.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if isSkippedTag(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if isSkippedTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
				b.WriteString(" ")
			}
		}
	}
}

func isSkippedTag(name string) bool {
	return name == "script" || name == "style"
}

// normalizeSpace は連続する空白を1つにまとめる。
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes は文字列を最大n文字（rune単位）に切り詰める。
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
