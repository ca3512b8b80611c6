// Package clock は現在時刻の取得を抽象化する。
// バッチパスの適格性判定やダイジェストのウィンドウ判定など、
// 時刻境界に依存するロジックを決定的にテストするために注入して使用する。
package clock

import "time"

// Clock は現在時刻の取得インターフェース。
type Clock interface {
	// Now は現在時刻を返す。
	Now() time.Time
}

// SystemClock はシステム時刻を返す実装。
type SystemClock struct{}

// Now はtime.Now()を返す。
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock は固定時刻を返すテスト用実装。
type FixedClock struct {
	T time.Time
}

// NewFixedClock は指定時刻を返すFixedClockを生成する。
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{T: t}
}

// Now は設定された固定時刻を返す。
func (c FixedClock) Now() time.Time {
	return c.T
}
