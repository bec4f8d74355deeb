package middleware

import (
	"fmt"
	"net/http"

	"github.com/hitoshi/todoapp/internal/model"
)

// ErrorRenderer はエラー画面を描画する関数。
// handlerパッケージがHTMLテンプレートを使って実装する。
type ErrorRenderer func(w http.ResponseWriter, r *http.Request, status int, appErr *model.AppError)

// WriteErrorResponse は統一フォーマットでエラーレスポンスを書き込む。
// renderがnilの場合はプレーンテキストで書き込む。
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, appErr *model.AppError, render ErrorRenderer) {
	if render != nil {
		render(w, r, statusCode, appErr)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, "%s\n%s\n", appErr.Message, appErr.Action)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter, r *http.Request, render ErrorRenderer) {
	WriteErrorResponse(w, r, http.StatusInternalServerError, model.NewInternalError(), render)
}
