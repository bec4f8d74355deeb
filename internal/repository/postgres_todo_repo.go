package repository

import (
	"context"
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/todoapp/internal/model"
)

// PostgresTodoRepo はPostgreSQLのtodosテーブルを使用したToDoリポジトリ。
// 所有者での絞り込み以外は主キー単位の汎用CRUDに委譲する。
type PostgresTodoRepo struct {
	table *CRUDTable[model.Todo]
}

// NewPostgresTodoRepo はPostgresTodoRepoを生成する。
// driverNameはdbを開いたドライバ名（通常は"postgres"）。
func NewPostgresTodoRepo(db *sql.DB, driverName string) *PostgresTodoRepo {
	return &PostgresTodoRepo{
		table: NewCRUDTable(
			sqlx.NewDb(db, driverName),
			"todos",
			"id",
			[]string{"username", "description", "target_date", "done"},
			func(t *model.Todo) []any {
				return []any{t.Username, t.Description, model.DateOf(t.TargetDate), t.Done}
			},
		),
	}
}

// ListByOwner は指定ユーザーが所有するToDoをID順に返す。
func (r *PostgresTodoRepo) ListByOwner(ctx context.Context, username string) ([]*model.Todo, error) {
	todos, err := r.table.FindAllBy(ctx, squirrel.Expr("lower(username) = lower(?)", username))
	if err != nil {
		return nil, err
	}
	for _, t := range todos {
		t.TargetDate = model.DateOf(t.TargetDate)
	}
	return todos, nil
}

// Create はToDoを作成し、採番したIDをtodo.IDに設定する。
func (r *PostgresTodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	id, err := r.table.Insert(ctx, todo)
	if err != nil {
		return err
	}
	todo.ID = int(id)
	return nil
}

// FindByID は指定IDのToDoを取得する。見つからない場合はnilを返す。
func (r *PostgresTodoRepo) FindByID(ctx context.Context, id int) (*model.Todo, error) {
	todo, err := r.table.FindByID(ctx, id)
	if err != nil || todo == nil {
		return nil, err
	}
	todo.TargetDate = model.DateOf(todo.TargetDate)
	return todo, nil
}

// Update はtodo.IDのToDoを上書き更新する。
func (r *PostgresTodoRepo) Update(ctx context.Context, todo *model.Todo) (bool, error) {
	return r.table.Update(ctx, todo.ID, todo)
}

// DeleteByID は指定IDのToDoを削除する。
func (r *PostgresTodoRepo) DeleteByID(ctx context.Context, id int) (bool, error) {
	return r.table.DeleteByID(ctx, id)
}

// compile-time interface check
var _ TodoRepository = (*PostgresTodoRepo)(nil)
