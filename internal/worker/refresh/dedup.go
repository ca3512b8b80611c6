package refresh

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/hitoshi/digestman/internal/model"
)

// KeyFunc は記事の重複判定キーを導出する関数。
type KeyFunc func(item model.ParsedItem) string

// TitleKey はタイトルをそのまま重複判定キーとして使用する。
// デフォルトのキー導出方式。
func TitleKey(item model.ParsedItem) string {
	return item.Title
}

// FingerprintKey はリンクとタイトルのSHA-256ハッシュを
// 重複判定キーとして使用する。タイトルの衝突が問題になる
// ソース向けの代替方式。
func FingerprintKey(item model.ParsedItem) string {
	h := sha256.New()
	h.Write([]byte(item.Link))
	h.Write([]byte{0})
	h.Write([]byte(item.Title))
	return hex.EncodeToString(h.Sum(nil))
}

// Deduplicator は重複判定キーに基づいて記事の重複を排除する。
type Deduplicator struct {
	key KeyFunc
}

// NewDeduplicator はDeduplicatorの新しいインスタンスを生成する。
// keyがnilの場合はTitleKeyを使用する。
func NewDeduplicator(key KeyFunc) *Deduplicator {
	if key == nil {
		key = TitleKey
	}
	return &Deduplicator{key: key}
}

// Key は記事の重複判定キーを返す。
func (d *Deduplicator) Key(item model.ParsedItem) string {
	return d.key(item)
}

// Filter は既存キー集合に含まれない記事のみを残す。
// 同一バッチ内の重複も排除される（先勝ち）。
// existingは変更されない。
func (d *Deduplicator) Filter(items []model.ParsedItem, existing map[string]struct{}) []model.ParsedItem {
	seen := make(map[string]struct{}, len(existing)+len(items))
	for k := range existing {
		seen[k] = struct{}{}
	}

	kept := make([]model.ParsedItem, 0, len(items))
	for _, item := range items {
		k := d.key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, item)
	}

	return kept
}
