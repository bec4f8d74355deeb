package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/todoapp/internal/model"
)

const sessionsTable = "sessions"

var sessionColumns = []string{"id", "username", "expires_at", "created_at"}

// notExpired は有効期限をDBサーバーの現在時刻で判定する条件。
var notExpired = squirrel.Expr("expires_at > now()")

// PostgresSessionRepo はPostgreSQLのsessionsテーブルを使用したセッションリポジトリ。
// 主キーはアプリ側で採番した文字列のため、CRUDTableではなくsquirrelで直接組み立てる。
type PostgresSessionRepo struct {
	db *sqlx.DB
	sb squirrel.StatementBuilderType
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{
		db: sqlx.NewDb(db, "postgres"),
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create はセッションを保存する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	query, args, err := r.sb.Insert(sessionsTable).
		Columns(sessionColumns...).
		Values(session.ID, session.Username, session.ExpiresAt, session.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build session insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は有効なセッションを取得する。存在しないか期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	query, args, err := r.sb.Select(sessionColumns...).
		From(sessionsTable).
		Where(squirrel.And{squirrel.Eq{"id": id}, notExpired}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build session select: %w", err)
	}

	session := &model.Session{}
	if err := r.db.GetContext(ctx, session, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// Extend は有効なセッションの有効期限をexpiresAtに更新する。
func (r *PostgresSessionRepo) Extend(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	query, args, err := r.sb.Update(sessionsTable).
		Set("expires_at", expiresAt).
		Where(squirrel.And{squirrel.Eq{"id": id}, notExpired}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build session update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to extend session: %w", err)
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return updated > 0, nil
}

// DeleteByID はセッションを削除する。存在しない場合も成功とする。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.delete(ctx, squirrel.Eq{"id": id})
	return err
}

// DeleteExpired は期限切れセッションを一括削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return r.delete(ctx, squirrel.Expr("expires_at <= now()"))
}

func (r *PostgresSessionRepo) delete(ctx context.Context, where squirrel.Sqlizer) (int64, error) {
	query, args, err := r.sb.Delete(sessionsTable).Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build session delete: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
