package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/todoapp/internal/model"
)

// MemoryTodoRepo はプロセス内メモリにToDoを保持するリポジトリ。
// プロセスの生存期間だけデータを保持し、再起動で失われる。
// 全操作はミューテックスで直列化されるため、並行リクエストでもIDが重複しない。
type MemoryTodoRepo struct {
	mu     sync.RWMutex
	todos  []model.Todo
	lastID int
}

// NewMemoryTodoRepo はMemoryTodoRepoを生成する。
// seedのToDoは順にIDを採番して登録される（seed側のIDは無視する）。
func NewMemoryTodoRepo(seed ...model.Todo) *MemoryTodoRepo {
	r := &MemoryTodoRepo{}
	for _, t := range seed {
		r.lastID++
		t.ID = r.lastID
		r.todos = append(r.todos, t)
	}
	return r
}

// DemoTodos はデモ用の初期データを返す。期限日はnowを基準に計算する。
func DemoTodos(now time.Time) []model.Todo {
	return []model.Todo{
		{Username: "rvg", Description: "Learn AWS1", TargetDate: model.DateOf(now.AddDate(1, 0, 0))},
		{Username: "rvg", Description: "Learn Docker1", TargetDate: model.DateOf(now.AddDate(0, 6, 0))},
		{Username: "rvg", Description: "Learn Kubernetes1", TargetDate: model.DateOf(now.AddDate(0, 9, 0))},
		{Username: "rvg", Description: "Learn Spring Boot1", TargetDate: model.DateOf(now.AddDate(0, 3, 0))},
	}
}

// ListByOwner は指定ユーザーが所有するToDoを登録順に返す。
func (r *MemoryTodoRepo) ListByOwner(ctx context.Context, username string) ([]*model.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	todos := make([]*model.Todo, 0)
	for i := range r.todos {
		if strings.EqualFold(r.todos[i].Username, username) {
			t := r.todos[i]
			todos = append(todos, &t)
		}
	}
	return todos, nil
}

// Create はToDoを作成し、採番したIDをtodo.IDに設定する。
func (r *MemoryTodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastID++
	todo.ID = r.lastID
	r.todos = append(r.todos, *todo)
	return nil
}

// FindByID は指定IDのToDoを取得する。見つからない場合はnilを返す。
func (r *MemoryTodoRepo) FindByID(ctx context.Context, id int) (*model.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		t := r.todos[i]
		return &t, nil
	}
	return nil, nil
}

// Update はtodo.IDのToDoを上書き更新する。登録順は維持される。
func (r *MemoryTodoRepo) Update(ctx context.Context, todo *model.Todo) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(todo.ID)
	if i < 0 {
		return false, nil
	}
	r.todos[i] = *todo
	return true, nil
}

// DeleteByID は指定IDのToDoを削除する。
func (r *MemoryTodoRepo) DeleteByID(ctx context.Context, id int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false, nil
	}
	r.todos = append(r.todos[:i], r.todos[i+1:]...)
	return true, nil
}

// indexOf はIDに一致する要素の添字を返す。呼び出し側でロックを保持すること。
func (r *MemoryTodoRepo) indexOf(id int) int {
	for i := range r.todos {
		if r.todos[i].ID == id {
			return i
		}
	}
	return -1
}

// compile-time interface check
var _ TodoRepository = (*MemoryTodoRepo)(nil)
