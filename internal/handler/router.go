package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/todoapp/internal/metrics"
	"github.com/hitoshi/todoapp/internal/middleware"
	"github.com/hitoshi/todoapp/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger         *slog.Logger
	Sessions       middleware.SessionResolver
	RateLimiter    *middleware.RateLimiter
	Metrics        metrics.MetricsCollector
	CSRFProtection bool

	// 画面
	Renderer Renderer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ToDo
	TodoService TodoServiceInterface
}

// NewRouter は全画面のルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Metrics → Recovery → SecurityHeaders → (CSRF) → SessionGate → RateLimit(General)
//
// ログイン・ログアウト（/login, /logout）はセッションゲートの外に配置する。
// それ以外のパスは未知のパスも含めて全て認証が必要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	errRender := NewErrorRenderer(deps.Renderer)

	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(recorder))
	r.Use(middleware.NewRecoveryMiddleware(errRender))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.AuthConfig.Cookie))
	if deps.CSRFProtection {
		r.Use(middleware.NewCSRFMiddleware(middleware.CSRFConfig{
			Cookie: deps.AuthConfig.Cookie,
			Render: errRender,
		}))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.Renderer, recorder, deps.AuthConfig)
	welcomeHandler := NewWelcomeHandler(deps.Renderer)
	todoHandler := NewTodoHandler(deps.TodoService, deps.Renderer, recorder)

	gate := middleware.NewSessionMiddleware(deps.Sessions, middleware.SessionGateConfig{
		LoginPath:     LoginPath,
		SessionMaxAge: deps.AuthConfig.SessionMaxAge,
		Cookie:        deps.AuthConfig.Cookie,
	})

	// --- 認証不要のルート ---
	r.Get(LoginPath, authHandler.LoginForm)
	r.With(deps.RateLimiter.LoginMiddleware()).Post(LoginPath, authHandler.Login)
	r.Get("/logout", authHandler.Logout)
	r.Post("/logout", authHandler.Logout)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: SessionGate → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(gate)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/", welcomeHandler.ShowWelcome)

		r.Get("/list-todos", todoHandler.List)
		r.Get("/add-todo", todoHandler.ShowCreateForm)
		r.Post("/add-todo", todoHandler.SubmitCreate)
		r.Get("/update-todo", todoHandler.ShowEditForm)
		r.Post("/update-todo", todoHandler.SubmitUpdate)
		r.Get("/delete-todo", todoHandler.Delete)
	})

	// 未知のパスも未認証ならログイン画面へ誘導する
	r.NotFound(gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errRender(w, r, http.StatusNotFound, model.NewNotFoundError(r.URL.Path))
	})).ServeHTTP)
	r.MethodNotAllowed(gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errRender(w, r, http.StatusMethodNotAllowed, model.NewNotFoundError(r.URL.Path))
	})).ServeHTTP)

	return r
}
