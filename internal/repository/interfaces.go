// Package repository はデータ永続化のインターフェースと実装を定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/todoapp/internal/model"
)

// TodoRepository はToDoデータの永続化インターフェース。
// メモリ実装とPostgreSQL実装のどちらか一方が起動時に選択される。
// 「見つからない」はエラーではなく不在（nil または false）で表す。
type TodoRepository interface {
	// ListByOwner は指定ユーザーが所有するToDoを作成順に返す。
	// ユーザー名の比較は大文字小文字を区別しない。
	ListByOwner(ctx context.Context, username string) ([]*model.Todo, error)

	// Create はToDoを作成し、採番したIDをtodo.IDに設定する。
	Create(ctx context.Context, todo *model.Todo) error

	// FindByID は指定IDのToDoを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int) (*model.Todo, error)

	// Update はtodo.IDのToDoを上書き更新する。対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, todo *model.Todo) (bool, error)

	// DeleteByID は指定IDのToDoを削除する。対象が存在しない場合はfalseを返す。
	DeleteByID(ctx context.Context, id int) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// Extend は有効なセッションの有効期限をexpiresAtに更新する。期限切れまたは存在しない場合はfalseを返す。
	Extend(ctx context.Context, id string, expiresAt time.Time) (bool, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れのセッションを全て削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
