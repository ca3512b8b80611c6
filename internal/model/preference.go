// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// デフォルト設定値。Preferenceの遅延生成時に使用される。
const (
	// DefaultRetentionDays は既読記事の保持日数のデフォルト。
	DefaultRetentionDays = 30
	// DefaultDigestTime はダイジェスト生成時刻のデフォルト（"HH:MM"）。
	DefaultDigestTime = "09:00"
)

// Preference はユーザーごとの設定を表す。
// 初回アクセス時に遅延生成され、ユーザーごとに1行のみ存在する。
type Preference struct {
	ID             string
	UserID         string
	RetentionDays  int    // 既読記事の保持日数
	AutoCleanup    bool   // 期限切れ記事の自動削除を有効にするか
	DigestEnabled  bool   // デイリーダイジェスト生成を有効にするか
	DigestTime     string // ダイジェスト生成時刻 "HH:MM"
	DigestPrompt   string // カスタムプロンプト。空の場合はデフォルトを使用
	APIKey         string // 要約プロバイダのAPIキー。未設定の場合は空
	APIEndpoint    string // 要約プロバイダのエンドポイント。空の場合はデフォルト
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DigestReady はダイジェスト生成の前提条件（有効化済みかつAPIキー設定済み）を
// 満たしているかを返す。
func (p *Preference) DigestReady() bool {
	return p.DigestEnabled && p.APIKey != ""
}

// DigestClock はDigestTimeを時・分にパースして返す。
// 不正な形式の場合はエラーを返す。
func (p *Preference) DigestClock() (hour, minute int, err error) {
	return ParseClockTime(p.DigestTime)
}

// ParseClockTime は"HH:MM"形式の時刻文字列をパースする。
func ParseClockTime(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("時刻の形式が不正です（HH:MM が必要）: %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("時刻の形式が不正です（HH:MM が必要）: %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("時刻の形式が不正です（HH:MM が必要）: %q", s)
	}
	return hour, minute, nil
}
