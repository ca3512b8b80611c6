package opml

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/digestman/internal/clock"
	"github.com/hitoshi/digestman/internal/model"
	"github.com/hitoshi/digestman/internal/repository"
)

// URLValidator はインポート対象URLの安全性を検証する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Ingester は新規ソースの初回取り込みを実行する。
type Ingester interface {
	RefreshSource(ctx context.Context, source *model.Source) (int, error)
}

// ImportResult はOPMLインポート1回分の実行結果。
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

// Importer はOPMLファイルからソースを一括登録する。
// 登録済みURLや不正なURLはスキップされ、個別の失敗は
// インポート全体を中断させない。
type Importer struct {
	sourceRepo repository.SourceRepository
	validator  URLValidator
	ingester   Ingester
	clk        clock.Clock
	logger     *slog.Logger
}

// NewImporter はImporterの新しいインスタンスを生成する。
func NewImporter(
	sourceRepo repository.SourceRepository,
	validator URLValidator,
	ingester Ingester,
	clk clock.Clock,
	logger *slog.Logger,
) *Importer {
	return &Importer{
		sourceRepo: sourceRepo,
		validator:  validator,
		ingester:   ingester,
		clk:        clk,
		logger:     logger,
	}
}

// Import はOPMLドキュメントを読み込み、ユーザーのソースとして登録する。
// 登録済みのURLはスキップされる。新規ソースは登録後に初回取り込みが
// 実行されるが、取り込みの失敗は登録自体を取り消さない。
func (i *Importer) Import(ctx context.Context, r io.Reader, userID string) (*ImportResult, error) {
	entries, err := Parse(r)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Total: len(entries)}

	for _, entry := range entries {
		ok, err := i.importEntry(ctx, entry, userID)
		if err != nil {
			result.Skipped++
			i.logger.Warn("フィードのインポートをスキップしました",
				slog.String("user_id", userID),
				slog.String("url", entry.URL),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			result.Imported++
		} else {
			result.Skipped++
		}
	}

	i.logger.Info("OPMLインポートが完了しました",
		slog.String("user_id", userID),
		slog.Int("imported", result.Imported),
		slog.Int("skipped", result.Skipped),
		slog.Int("total", result.Total),
	)

	return result, nil
}

// importEntry は単一フィードの登録を試みる。
// 登録済みの場合は(false, nil)を返す。
func (i *Importer) importEntry(ctx context.Context, entry Entry, userID string) (bool, error) {
	if err := i.validator.ValidateURL(entry.URL); err != nil {
		return false, err
	}

	existing, err := i.sourceRepo.FindByURLAndUser(ctx, entry.URL, userID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	now := i.clk.Now()
	source := &model.Source{
		ID:        uuid.New().String(),
		UserID:    userID,
		URL:       entry.URL,
		Title:     entry.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := i.sourceRepo.Create(ctx, source); err != nil {
		return false, err
	}

	// 初回取り込みの失敗は登録を取り消さない。
	// 次回の定期更新パスで再試行される。
	if _, err := i.ingester.RefreshSource(ctx, source); err != nil {
		i.logger.Warn("初回取り込みに失敗しました",
			slog.String("source_id", source.ID),
			slog.String("url", source.URL),
			slog.String("error", err.Error()),
		)
	}

	return true, nil
}
