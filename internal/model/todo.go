// Package model はドメインモデルを定義する。
package model

import "time"

// DateLayout はTodoの期限日を画面やフォームでやり取りする際の書式。
const DateLayout = "2006-01-02"

// DescriptionMinLength は説明文の最小文字数。
const DescriptionMinLength = 10

// Todo はユーザーが管理するToDo項目を表す。
// Usernameは常に認証済みセッションから設定され、クライアント入力を信頼しない。
type Todo struct {
	ID          int       `db:"id"`
	Username    string    `db:"username"`
	Description string    `db:"description" validate:"min=10"`
	TargetDate  time.Time `db:"target_date"`
	Done        bool      `db:"done"`
}

// NewBlankTodo は新規作成フォーム用の空のTodoを生成する。
// 期限日はnowの1年後に設定される。
func NewBlankTodo(username string, now time.Time) *Todo {
	return &Todo{
		Username:   username,
		TargetDate: DateOf(now.AddDate(1, 0, 0)),
	}
}

// TargetDateString は期限日をDateLayout形式の文字列で返す。
func (t *Todo) TargetDateString() string {
	if t.TargetDate.IsZero() {
		return ""
	}
	return t.TargetDate.Format(DateLayout)
}

// DateOf は時刻を切り捨ててUTCの日付にする。
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
