package handler

import (
	"net/http"

	"github.com/hitoshi/todoapp/internal/view"
)

// WelcomeHandler はログイン後のウェルカム画面のHTTPハンドラー。
type WelcomeHandler struct {
	renderer Renderer
}

// NewWelcomeHandler はWelcomeHandlerを生成する。
func NewWelcomeHandler(renderer Renderer) *WelcomeHandler {
	return &WelcomeHandler{renderer: renderer}
}

// ShowWelcome は認証済みユーザー名を含む挨拶を表示する。
// GET /
func (h *WelcomeHandler) ShowWelcome(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, h.renderer, http.StatusOK, view.PageWelcome, view.WelcomeData{
		Common: commonData(r),
	})
}
