package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/todoapp/internal/middleware"
	"github.com/hitoshi/todoapp/internal/model"
	"github.com/hitoshi/todoapp/internal/todo"
	"github.com/hitoshi/todoapp/internal/view"
)

// --- モック定義 ---

type mockAuthService struct {
	loginFn  func(ctx context.Context, username, password string) (*model.Session, error)
	logoutFn func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return nil, model.ErrInvalidCredentials
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

type mockTodoService struct {
	listFn    func(ctx context.Context, username string) ([]*model.Todo, error)
	newFormFn func(username string) *model.Todo
	createFn  func(ctx context.Context, username string, form todo.Form) (*model.Todo, error)
	getFn     func(ctx context.Context, username string, id int) (*model.Todo, error)
	updateFn  func(ctx context.Context, username string, id int, form todo.Form) (*model.Todo, error)
	deleteFn  func(ctx context.Context, username string, id int) (bool, error)
}

func (m *mockTodoService) List(ctx context.Context, username string) ([]*model.Todo, error) {
	if m.listFn != nil {
		return m.listFn(ctx, username)
	}
	return nil, nil
}

func (m *mockTodoService) NewForm(username string) *model.Todo {
	if m.newFormFn != nil {
		return m.newFormFn(username)
	}
	return &model.Todo{Username: username}
}

func (m *mockTodoService) Create(ctx context.Context, username string, form todo.Form) (*model.Todo, error) {
	if m.createFn != nil {
		return m.createFn(ctx, username, form)
	}
	return &model.Todo{ID: 1, Username: username}, nil
}

func (m *mockTodoService) Get(ctx context.Context, username string, id int) (*model.Todo, error) {
	if m.getFn != nil {
		return m.getFn(ctx, username, id)
	}
	return nil, model.NewTodoNotFoundError(id)
}

func (m *mockTodoService) Update(ctx context.Context, username string, id int, form todo.Form) (*model.Todo, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, username, id, form)
	}
	return &model.Todo{ID: id, Username: username}, nil
}

func (m *mockTodoService) Delete(ctx context.Context, username string, id int) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, username, id)
	}
	return true, nil
}

type mockMetrics struct {
	logins     []string
	operations []string
}

func (m *mockMetrics) RecordLogin(result string) {
	m.logins = append(m.logins, result)
}

func (m *mockMetrics) RecordTodoOperation(op string) {
	m.operations = append(m.operations, op)
}

// --- compile-time interface checks ---
var _ AuthServiceInterface = (*mockAuthService)(nil)
var _ TodoServiceInterface = (*mockTodoService)(nil)
var _ MetricsRecorder = (*mockMetrics)(nil)
var _ Renderer = (*view.Renderer)(nil)

// --- テスト用ヘルパー ---

// newTestRenderer は埋め込みテンプレートのRendererを生成する。
func newTestRenderer(t *testing.T) *view.Renderer {
	t.Helper()
	r, err := view.NewRenderer()
	if err != nil {
		t.Fatalf("view.NewRenderer() error = %v", err)
	}
	return r
}

// withUsername はテスト用にコンテキストへユーザー名を注入するヘルパー。
func withUsername(r *http.Request, username string) *http.Request {
	ctx := middleware.ContextWithUsername(r.Context(), username)
	return r.WithContext(ctx)
}

// newFormRequest はフォーム送信のリクエストを生成する。
func newFormRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}
