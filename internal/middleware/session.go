// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/todoapp/internal/model"
)

const (
	// SessionCookieName はセッションIDを保持するCookieの名前。
	SessionCookieName = "session_id"

	// SavedRequestCookieName はログイン前に要求されたパスを保持するCookieの名前。
	SavedRequestCookieName = "saved_request"

	savedRequestMaxAge = 300 // 5分
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// usernameContextKey はリクエストコンテキストにユーザー名を格納するためのキー。
var usernameContextKey = contextKey("username")

// SessionResolver はセッションIDから有効なセッションを解決するインターフェース。
// auth.Serviceが実装し、解決のたびに有効期限を延長する。
type SessionResolver interface {
	CurrentUser(ctx context.Context, sessionID string) (*model.Session, error)
}

// CookieConfig はCookie発行時の共通設定。
type CookieConfig struct {
	Secure bool
	Domain string
}

// SessionGateConfig はセッションゲートの設定。
type SessionGateConfig struct {
	LoginPath     string // 未認証時のリダイレクト先
	SessionMaxAge int    // 延長後のセッションCookieの有効期間（秒）
	Cookie        CookieConfig
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効性を検証するミドルウェアを返す。
// 認証済みユーザー名をリクエストコンテキストに注入し、セッションCookieの有効期間を延ばす。
// 未認証リクエストはログイン画面へ302でリダイレクトし、GETの場合は要求パスを保存する。
func NewSessionMiddleware(sessions SessionResolver, config SessionGateConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからセッションIDを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				redirectToLogin(w, r, config)
				return
			}

			// 2. セッションの有効性を検証
			session, err := sessions.CurrentUser(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to resolve session",
					slog.String("error", err.Error()),
				)
				redirectToLogin(w, r, config)
				return
			}
			if session == nil {
				redirectToLogin(w, r, config)
				return
			}

			// 3. 最終アクセスから有効期間を数え直す
			SetSessionCookie(w, session.ID, config.SessionMaxAge, config.Cookie)

			// 4. 認証済みユーザー名をコンテキストに注入
			ctx := ContextWithUsername(r.Context(), session.Username)
			setRequestUsername(ctx, session.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetSessionCookie はセッションIDをHTTP Only Cookieとして発行する。
func SetSessionCookie(w http.ResponseWriter, sessionID string, maxAge int, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// redirectToLogin はログイン画面へリダイレクトする。
// GETリクエストの場合はログイン後に戻れるよう要求パスをCookieに保存する。
func redirectToLogin(w http.ResponseWriter, r *http.Request, config SessionGateConfig) {
	if r.Method == http.MethodGet {
		http.SetCookie(w, &http.Cookie{
			Name:     SavedRequestCookieName,
			Value:    url.QueryEscape(r.URL.RequestURI()),
			Path:     "/",
			Domain:   config.Cookie.Domain,
			MaxAge:   savedRequestMaxAge,
			HttpOnly: true,
			Secure:   config.Cookie.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	http.Redirect(w, r, config.LoginPath, http.StatusFound)
}

// SavedRequestPath は保存された要求パスを返す。
// 保存されていない場合や同一オリジンの絶対パスでない場合はfallbackを返す。
func SavedRequestPath(r *http.Request, fallback string) string {
	cookie, err := r.Cookie(SavedRequestCookieName)
	if err != nil || cookie.Value == "" {
		return fallback
	}
	path, err := url.QueryUnescape(cookie.Value)
	if err != nil || !isLocalPath(path) {
		return fallback
	}
	return path
}

// ClearSavedRequest は保存された要求パスのCookieを削除する。
func ClearSavedRequest(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SavedRequestCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// isLocalPath は"/"で始まる同一オリジンのパスかどうかを判定する。
// "//host" や "/\host" のようなスキーム相対URLは拒否する。
func isLocalPath(path string) bool {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return false
	}
	u, err := url.Parse(path)
	return err == nil && u.Scheme == "" && u.Host == ""
}

// UsernameFromContext はリクエストコンテキストからユーザー名を取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UsernameFromContext(ctx context.Context) (string, error) {
	username, ok := ctx.Value(usernameContextKey).(string)
	if !ok || username == "" {
		return "", fmt.Errorf("username not found in context")
	}
	return username, nil
}

// ContextWithUsername はコンテキストにユーザー名を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameContextKey, username)
}
