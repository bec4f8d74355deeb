package model

import "time"

// Credential はログイン可能なユーザーの認証情報を表す。
// 起動時に1回だけ生成され、以後変更されない。
type Credential struct {
	Username     string
	PasswordHash []byte
	Roles        []string
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string    `db:"id"`
	Username  string    `db:"username"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// Expired はnow時点でセッションが期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
