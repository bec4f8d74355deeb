// Package view はサーバーサイドで描画するHTMLテンプレートを提供する。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/hitoshi/todoapp/internal/model"
)

//go:embed templates/*.html
var templatesFS embed.FS

// ページ名（templates/<name>.html に対応）
const (
	PageLogin     = "login"
	PageWelcome   = "welcome"
	PageListTodos = "list_todos"
	PageTodo      = "todo"
	PageError     = "error"
)

var pageNames = []string{PageLogin, PageWelcome, PageListTodos, PageTodo, PageError}

// Common は全ページのレイアウトで使う値。
type Common struct {
	Username  string // 認証済みユーザー名。未認証の場合は空
	CSRFToken string // CSRF保護が無効の場合は空
}

// LoginData はログイン画面の表示データ。
type LoginData struct {
	Common
	Error  bool // 資格情報が一致しなかった
	Logout bool // ログアウト直後
}

// WelcomeData はウェルカム画面の表示データ。
type WelcomeData struct {
	Common
}

// ListTodosData はToDo一覧画面の表示データ。
type ListTodosData struct {
	Common
	Todos []*model.Todo
}

// TodoFormData はToDo作成・更新フォームの表示データ。
// Todoがnilの場合はフォームを表示せずMessageのみ表示する。
type TodoFormData struct {
	Common
	Todo    *model.Todo
	Action  string // フォームの送信先パス
	Errors  model.FieldErrors
	Message string
}

// ErrorData はエラー画面の表示データ。
type ErrorData struct {
	Common
	Status int
	Error  *model.AppError
}

// Renderer はページごとに構築済みのテンプレートを保持する。
// 構築後は読み取り専用のため、複数のゴルーチンから同時に使用してよい。
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer は埋め込みテンプレートを解析してRendererを生成する。
func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"date": func(t *model.Todo) string { return t.TargetDateString() },
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templatesFS,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render はページを描画してレスポンスに書き込む。
// 描画はバッファに対して行い、失敗した場合はレスポンスに何も書き込まずエラーを返す。
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data any) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page: %s", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
