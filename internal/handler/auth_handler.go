package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/todoapp/internal/metrics"
	"github.com/hitoshi/todoapp/internal/middleware"
	"github.com/hitoshi/todoapp/internal/model"
	"github.com/hitoshi/todoapp/internal/view"
)

// ログイン関連のパス
const (
	LoginPath          = "/login"
	loginErrorPath     = "/login?error"
	loginLoggedOutPath = "/login?logout"
	defaultTargetPath  = "/"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	Cookie        middleware.CookieConfig
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はフォームログイン関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	renderer Renderer
	metrics  MetricsRecorder
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。recorderがnilの場合はメトリクスを記録しない。
func NewAuthHandler(service AuthServiceInterface, renderer Renderer, recorder MetricsRecorder, config AuthHandlerConfig) *AuthHandler {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &AuthHandler{
		service:  service,
		renderer: renderer,
		metrics:  recorder,
		config:   config,
	}
}

// LoginForm はログイン画面を表示する。
// GET /login
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	renderPage(w, r, h.renderer, http.StatusOK, view.PageLogin, view.LoginData{
		Common: commonData(r),
		Error:  query.Has("error"),
		Logout: query.Has("logout"),
	})
}

// Login は資格情報を照合し、成功した場合はセッションCookieを発行する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	session, err := h.service.Login(r.Context(), username, password)
	if errors.Is(err, model.ErrInvalidCredentials) {
		h.metrics.RecordLogin(metrics.LoginFailure)
		http.Redirect(w, r, loginErrorPath, http.StatusFound)
		return
	}
	if err != nil {
		writeError(w, r, h.renderer, err)
		return
	}
	h.metrics.RecordLogin(metrics.LoginSuccess)

	middleware.SetSessionCookie(w, session.ID, h.config.SessionMaxAge, h.config.Cookie)

	// ログイン前に要求されたパスへ戻る
	target := middleware.SavedRequestPath(r, defaultTargetPath)
	middleware.ClearSavedRequest(w, h.config.Cookie)

	http.Redirect(w, r, target, http.StatusFound)
}

// Logout はセッションを破棄し、ログイン画面へリダイレクトする。
// GET|POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	// セッションCookieをクリア
	middleware.SetSessionCookie(w, "", -1, h.config.Cookie)

	http.Redirect(w, r, loginLoggedOutPath, http.StatusFound)
}
