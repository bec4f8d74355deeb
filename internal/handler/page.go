// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/todoapp/internal/middleware"
	"github.com/hitoshi/todoapp/internal/model"
	"github.com/hitoshi/todoapp/internal/view"
)

// Renderer はHTMLページを描画するインターフェース。view.Rendererが実装する。
type Renderer interface {
	Render(w http.ResponseWriter, status int, page string, data any) error
}

// MetricsRecorder はハンドラーが記録するメトリクスのインターフェース。
// metrics.MetricsCollectorの部分集合として定義する。
type MetricsRecorder interface {
	RecordLogin(result string)
	RecordTodoOperation(op string)
}

// commonData はレイアウトで使う共通値をリクエストから組み立てる。
func commonData(r *http.Request) view.Common {
	username, _ := middleware.UsernameFromContext(r.Context())
	return view.Common{
		Username:  username,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
	}
}

// renderPage はページを描画する。描画に失敗した場合はログに記録し、500を返す。
func renderPage(w http.ResponseWriter, r *http.Request, renderer Renderer, status int, page string, data any) {
	if err := renderer.Render(w, status, page, data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w, r, nil)
	}
}

// NewErrorRenderer はエラー画面をHTMLテンプレートで描画するmiddleware.ErrorRendererを返す。
func NewErrorRenderer(renderer Renderer) middleware.ErrorRenderer {
	return func(w http.ResponseWriter, r *http.Request, status int, appErr *model.AppError) {
		renderPage(w, r, renderer, status, view.PageError, view.ErrorData{
			Common: commonData(r),
			Status: status,
			Error:  appErr,
		})
	}
}

// statusForAppError はAppErrorのコードに対応するHTTPステータスを返す。
func statusForAppError(appErr *model.AppError) int {
	switch appErr.Code {
	case model.ErrCodeTodoNotFound, model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidTodoID:
		return http.StatusBadRequest
	case model.ErrCodeCSRF:
		return http.StatusForbidden
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError はサービス層のエラーをエラー画面として書き込む。
// AppError以外のエラーはログに記録し、詳細を隠した500画面を返す。
func writeError(w http.ResponseWriter, r *http.Request, renderer Renderer, err error) {
	render := NewErrorRenderer(renderer)

	var appErr *model.AppError
	if errors.As(err, &appErr) {
		render(w, r, statusForAppError(appErr), appErr)
		return
	}

	slog.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w, r, render)
}
