package model

import (
	"errors"
	"fmt"
)

// AppError は画面に表示するエラーの統一フォーマットを表す。
// 原因カテゴリと対処方法を含む。
type AppError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, todo, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeTodoNotFound  = "TODO_NOT_FOUND"
	ErrCodeInvalidTodoID = "INVALID_TODO_ID"
	ErrCodeRateLimited   = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRF          = "CSRF_TOKEN_INVALID"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// ErrInvalidCredentials はユーザー名またはパスワードが一致しない場合のエラー。
var ErrInvalidCredentials = errors.New("bad credentials")

// NewNotFoundError は存在しないパスへのアクセスのエラーを生成する。
func NewNotFoundError(path string) *AppError {
	return &AppError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("Page not found: %s", path),
		Category: "system",
		Action:   "Check the address or go back to the home page.",
	}
}

// NewTodoNotFoundError はToDo未検出エラーを生成する。
func NewTodoNotFoundError(id int) *AppError {
	return &AppError{
		Code:     ErrCodeTodoNotFound,
		Message:  fmt.Sprintf("Todo not found: %d", id),
		Category: "todo",
		Action:   "Go back to the todo list and pick an existing item.",
	}
}

// NewInvalidTodoIDError は不正なIDパラメータのエラーを生成する。
func NewInvalidTodoIDError(raw string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidTodoID,
		Message:  fmt.Sprintf("Invalid todo id: %q", raw),
		Category: "validation",
		Action:   "Use the links on the todo list page.",
	}
}

// NewInternalError は内部エラーの表示用エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *AppError {
	return &AppError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *AppError {
	return &AppError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewCSRFError はCSRFトークン検証失敗のエラーを生成する。
func NewCSRFError() *AppError {
	return &AppError{
		Code:     ErrCodeCSRF,
		Message:  "Invalid or missing CSRF token.",
		Category: "auth",
		Action:   "Reload the page and submit the form again.",
	}
}

// FieldErrors はフォーム項目ごとの検証エラーメッセージを保持する。
// キーはフォーム項目名（description, targetDate）。
type FieldErrors map[string]string

// ValidationError はフォーム入力の検証エラーを表す。
type ValidationError struct {
	Fields FieldErrors
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", map[string]string(e.Fields))
}

// Add は項目に検証メッセージを追加する。既にメッセージがある項目は上書きしない。
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = FieldErrors{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

// HasErrors は検証エラーが1件以上あるかを返す。
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}
