package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/todoapp/internal/metrics"
	"github.com/hitoshi/todoapp/internal/middleware"
	"github.com/hitoshi/todoapp/internal/model"
	"github.com/hitoshi/todoapp/internal/todo"
	"github.com/hitoshi/todoapp/internal/view"
)

const listTodosPath = "/list-todos"

// TodoServiceInterface はToDoハンドラーが必要とするサービスインターフェース。
type TodoServiceInterface interface {
	List(ctx context.Context, username string) ([]*model.Todo, error)
	NewForm(username string) *model.Todo
	Create(ctx context.Context, username string, form todo.Form) (*model.Todo, error)
	Get(ctx context.Context, username string, id int) (*model.Todo, error)
	Update(ctx context.Context, username string, id int, form todo.Form) (*model.Todo, error)
	Delete(ctx context.Context, username string, id int) (bool, error)
}

// TodoHandler はToDo管理のHTTPハンドラー。
// 所有者は常にセッションのユーザー名を使い、フォームの値は信頼しない。
type TodoHandler struct {
	service  TodoServiceInterface
	renderer Renderer
	metrics  MetricsRecorder
}

// NewTodoHandler はTodoHandlerを生成する。recorderがnilの場合はメトリクスを記録しない。
func NewTodoHandler(service TodoServiceInterface, renderer Renderer, recorder MetricsRecorder) *TodoHandler {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &TodoHandler{
		service:  service,
		renderer: renderer,
		metrics:  recorder,
	}
}

// List はユーザーのToDo一覧を表示する。
// GET /list-todos
func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}

	todos, err := h.service.List(r.Context(), username)
	if err != nil {
		writeError(w, r, h.renderer, err)
		return
	}

	renderPage(w, r, h.renderer, http.StatusOK, view.PageListTodos, view.ListTodosData{
		Common: commonData(r),
		Todos:  todos,
	})
}

// ShowCreateForm は新規作成フォームを表示する。期限日の初期値は1年後。
// GET /add-todo
func (h *TodoHandler) ShowCreateForm(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}

	h.renderForm(w, r, http.StatusOK, h.service.NewForm(username), nil)
}

// SubmitCreate はToDoを作成し、一覧へリダイレクトする。
// 入力が不正な場合は検証メッセージ付きでフォームを再表示する。
// POST /add-todo
func (h *TodoHandler) SubmitCreate(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}

	created, err := h.service.Create(r.Context(), username, parseTodoForm(r))
	if h.handleFormError(w, r, created, err) {
		return
	}

	h.metrics.RecordTodoOperation(metrics.OpCreate)
	http.Redirect(w, r, listTodosPath, http.StatusFound)
}

// ShowEditForm は既存ToDoの編集フォームを表示する。
// 対象が存在しない場合は404でフォームなしの画面を表示する。
// GET /update-todo?id=N
func (h *TodoHandler) ShowEditForm(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}
	id, ok := h.todoID(w, r)
	if !ok {
		return
	}

	found, err := h.service.Get(r.Context(), username, id)
	if h.handleFormError(w, r, nil, err) {
		return
	}

	h.renderForm(w, r, http.StatusOK, found, nil)
}

// SubmitUpdate はToDoを更新し、一覧へリダイレクトする。
// IDは維持し、所有者はセッションのユーザー名で上書きする。
// POST /update-todo
func (h *TodoHandler) SubmitUpdate(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}
	id, ok := h.todoID(w, r)
	if !ok {
		return
	}

	updated, err := h.service.Update(r.Context(), username, id, parseTodoForm(r))
	if h.handleFormError(w, r, updated, err) {
		return
	}

	h.metrics.RecordTodoOperation(metrics.OpUpdate)
	http.Redirect(w, r, listTodosPath, http.StatusFound)
}

// Delete はToDoを削除し、一覧へリダイレクトする。対象が存在しない場合も同様にリダイレクトする。
// GET /delete-todo?id=N
func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}
	id, ok := h.todoID(w, r)
	if !ok {
		return
	}

	deleted, err := h.service.Delete(r.Context(), username, id)
	if err != nil {
		writeError(w, r, h.renderer, err)
		return
	}
	if deleted {
		h.metrics.RecordTodoOperation(metrics.OpDelete)
	}

	http.Redirect(w, r, listTodosPath, http.StatusFound)
}

// handleFormError はフォーム処理のエラーを画面に反映する。エラーを処理した場合はtrueを返す。
// 検証エラーは200でフォームを再表示し、ToDo未検出は404でフォームなしの画面を表示する。
func (h *TodoHandler) handleFormError(w http.ResponseWriter, r *http.Request, bound *model.Todo, err error) bool {
	if err == nil {
		return false
	}

	var verr *model.ValidationError
	if errors.As(err, &verr) {
		h.renderForm(w, r, http.StatusOK, bound, verr.Fields)
		return true
	}

	var appErr *model.AppError
	if errors.As(err, &appErr) && appErr.Code == model.ErrCodeTodoNotFound {
		renderPage(w, r, h.renderer, http.StatusNotFound, view.PageTodo, view.TodoFormData{
			Common:  commonData(r),
			Message: appErr.Message,
		})
		return true
	}

	writeError(w, r, h.renderer, err)
	return true
}

// renderForm はToDoフォームを描画する。送信先は新規ならadd-todo、既存ならupdate-todo。
func (h *TodoHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, t *model.Todo, fieldErrors model.FieldErrors) {
	action := "/add-todo"
	if t != nil && t.ID != 0 {
		action = fmt.Sprintf("/update-todo?id=%d", t.ID)
	}

	renderPage(w, r, h.renderer, status, view.PageTodo, view.TodoFormData{
		Common: commonData(r),
		Todo:   t,
		Action: action,
		Errors: fieldErrors,
	})
}

// username はセッションゲートが注入したユーザー名を返す。
// 取得できない場合（ゲートの外に誤って配置された場合）はログイン画面へリダイレクトする。
func (h *TodoHandler) username(w http.ResponseWriter, r *http.Request) (string, bool) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, LoginPath, http.StatusFound)
		return "", false
	}
	return username, true
}

// todoID はクエリまたはフォームのidを整数として返す。不正な場合は400画面を書き込む。
func (h *TodoHandler) todoID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.FormValue("id"))
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, h.renderer, model.NewInvalidTodoIDError(raw))
		return 0, false
	}
	return id, true
}

// parseTodoForm はリクエストのフォーム値をtodo.Formに変換する。
// usernameなど所有者に関する値は読み取らない。
func parseTodoForm(r *http.Request) todo.Form {
	done := strings.ToLower(r.PostFormValue("done"))
	return todo.Form{
		Description: r.PostFormValue("description"),
		TargetDate:  r.PostFormValue("targetDate"),
		Done:        done == "true" || done == "on",
	}
}
