package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// CRUDTable は1つのテーブルに対する主キー単位の汎用CRUD操作を提供する。
// SQLはsquirrelで組み立て、結果はsqlxでdbタグに従って構造体へ読み込む。
type CRUDTable[T any] struct {
	db       *sqlx.DB
	sb       squirrel.StatementBuilderType
	table    string
	idColumn string
	columns  []string
	values   func(*T) []any
}

// NewCRUDTable はCRUDTableを生成する。
// columnsは主キー以外のカラム、valuesはそのカラム順にエンティティの値を返す関数。
func NewCRUDTable[T any](db *sqlx.DB, table, idColumn string, columns []string, values func(*T) []any) *CRUDTable[T] {
	return &CRUDTable[T]{
		db:       db,
		sb:       squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		table:    table,
		idColumn: idColumn,
		columns:  columns,
		values:   values,
	}
}

// selectColumns は主キーを先頭にした全カラムを返す。
func (t *CRUDTable[T]) selectColumns() []string {
	return append([]string{t.idColumn}, t.columns...)
}

// FindByID は主キーでレコードを1件取得する。見つからない場合はnilを返す。
func (t *CRUDTable[T]) FindByID(ctx context.Context, id any) (*T, error) {
	query, args, err := t.sb.Select(t.selectColumns()...).
		From(t.table).
		Where(squirrel.Eq{t.idColumn: id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select for %s: %w", t.table, err)
	}

	entity := new(T)
	if err := t.db.GetContext(ctx, entity, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find %s by id: %w", t.table, err)
	}
	return entity, nil
}

// FindAllBy は条件に一致するレコードを主キー順に取得する。
func (t *CRUDTable[T]) FindAllBy(ctx context.Context, where squirrel.Sqlizer) ([]*T, error) {
	query, args, err := t.sb.Select(t.selectColumns()...).
		From(t.table).
		Where(where).
		OrderBy(t.idColumn).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select for %s: %w", t.table, err)
	}

	var entities []*T
	if err := t.db.SelectContext(ctx, &entities, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.table, err)
	}
	return entities, nil
}

// Insert はレコードを挿入し、DBが採番した主キーを返す。
func (t *CRUDTable[T]) Insert(ctx context.Context, entity *T) (int64, error) {
	query, args, err := t.sb.Insert(t.table).
		Columns(t.columns...).
		Values(t.values(entity)...).
		Suffix("RETURNING " + t.idColumn).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build insert for %s: %w", t.table, err)
	}

	var id int64
	if err := t.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert %s: %w", t.table, err)
	}
	return id, nil
}

// Update は主キーで指定したレコードの全カラムを上書きする。
// 対象が存在しない場合はfalseを返す。
func (t *CRUDTable[T]) Update(ctx context.Context, id any, entity *T) (bool, error) {
	values := t.values(entity)
	update := t.sb.Update(t.table).Where(squirrel.Eq{t.idColumn: id})
	for i, col := range t.columns {
		update = update.Set(col, values[i])
	}

	query, args, err := update.ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build update for %s: %w", t.table, err)
	}

	return t.exec(ctx, "update", query, args)
}

// DeleteByID は主キーで指定したレコードを削除する。
// 対象が存在しない場合はfalseを返す。
func (t *CRUDTable[T]) DeleteByID(ctx context.Context, id any) (bool, error) {
	query, args, err := t.sb.Delete(t.table).
		Where(squirrel.Eq{t.idColumn: id}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build delete for %s: %w", t.table, err)
	}

	return t.exec(ctx, "delete", query, args)
}

func (t *CRUDTable[T]) exec(ctx context.Context, op, query string, args []any) (bool, error) {
	result, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to %s %s: %w", op, t.table, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}
