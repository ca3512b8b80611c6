package refresh

import (
	"time"

	"github.com/hitoshi/digestman/internal/model"
)

// FilterRecent は鮮度ウィンドウ内の記事のみを残す純粋関数。
// 公開日時が [now-horizon, now] に含まれる記事を保持し、
// 公開日時を持たない記事は除外する。
// 入力スライスは変更されない。
func FilterRecent(items []model.ParsedItem, now time.Time, horizon time.Duration) []model.ParsedItem {
	cutoff := now.Add(-horizon)

	kept := make([]model.ParsedItem, 0, len(items))
	for _, item := range items {
		if item.PublishedAt == nil {
			continue
		}
		pub := *item.PublishedAt
		// 境界は両端とも含む
		if pub.Before(cutoff) || pub.After(now) {
			continue
		}
		kept = append(kept, item)
	}

	return kept
}
