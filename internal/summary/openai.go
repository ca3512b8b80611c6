package summary

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAISummarizer はOpenAI互換APIを使用したSummarizerの実装。
// エンドポイントを指定することでOpenAI互換のローカルサーバーにも接続できる。
type OpenAISummarizer struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAISummarizer はOpenAISummarizerの新しいインスタンスを生成する。
// endpointが空の場合はapi.openai.comに接続する。
func NewOpenAISummarizer(apiKey, endpoint, model string, timeout time.Duration) *OpenAISummarizer {
	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}
	return &OpenAISummarizer{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

// NewFactory はユーザー設定からOpenAISummarizerを生成するSummarizerFactoryを返す。
func NewFactory(model string, timeout time.Duration) SummarizerFactory {
	return func(apiKey, endpoint string) Summarizer {
		return NewOpenAISummarizer(apiKey, endpoint, model, timeout)
	}
}

// Summarize はシステムプロンプトと本文からダイジェスト本文を生成する。
func (s *OpenAISummarizer) Summarize(ctx context.Context, systemPrompt, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("要約APIの呼び出しに失敗しました: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("要約APIが空のレスポンスを返しました: model=%s", s.model)
	}

	return resp.Choices[0].Message.Content, nil
}
