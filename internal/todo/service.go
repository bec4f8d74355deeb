// Package todo はToDoの一覧・作成・更新・削除のビジネスロジックを提供する。
package todo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/todoapp/internal/model"
	"github.com/hitoshi/todoapp/internal/repository"
	"github.com/hitoshi/todoapp/internal/security"
)

// フォーム項目名
const (
	FieldDescription = "description"
	FieldTargetDate  = "targetDate"
)

// 検証メッセージ
const (
	MessageDescriptionTooShort = "Enter at least 10 characters."
	MessageInvalidDate         = "Invalid date."
	MessageDescriptionMarkup   = "HTML markup is not allowed."
)

// Form はToDo作成・更新フォームの入力値を表す。
// 所有者は含まない（常に認証済みセッションから設定する）。
type Form struct {
	Description string
	TargetDate  string
	Done        bool
}

// ServiceConfig はToDoサービスの設定。
type ServiceConfig struct {
	// OwnerCheck がtrueの場合、取得・更新・削除は呼び出しユーザーのToDoのみを対象とし、
	// 他ユーザーのToDoは存在しないものとして扱う。
	OwnerCheck bool
}

// Service はToDo操作のビジネスロジックを提供する。
type Service struct {
	repo      repository.TodoRepository
	markup    security.MarkupDetector
	validate  *validator.Validate
	config    ServiceConfig
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.TodoRepository, markup security.MarkupDetector, config ServiceConfig) *Service {
	return &Service{
		repo:      repo,
		markup:    markup,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		config:    config,
		now:       time.Now,
	}
}

// List は指定ユーザーのToDo一覧を返す。
func (s *Service) List(ctx context.Context, username string) ([]*model.Todo, error) {
	todos, err := s.repo.ListByOwner(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	return todos, nil
}

// NewForm は新規作成フォームに表示する空のToDoを返す。
func (s *Service) NewForm(username string) *model.Todo {
	return model.NewBlankTodo(username, s.now())
}

// Create はフォーム入力からToDoを作成する。
// 入力が不正な場合は入力値を反映したToDoと*model.ValidationErrorを返し、永続化しない。
func (s *Service) Create(ctx context.Context, username string, form Form) (*model.Todo, error) {
	todo, verr := s.bind(username, 0, form)
	if verr.HasErrors() {
		return todo, verr
	}

	if err := s.repo.Create(ctx, todo); err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}

	slog.Info("todo created",
		slog.String("username", username),
		slog.Int("todo_id", todo.ID),
	)
	return todo, nil
}

// Get は指定IDのToDoを返す。
// 存在しない場合（所有者チェック有効時は他ユーザーのToDoも含む）はTODO_NOT_FOUNDのAppErrorを返す。
func (s *Service) Get(ctx context.Context, username string, id int) (*model.Todo, error) {
	todo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find todo: %w", err)
	}
	if todo == nil || !s.visibleTo(todo, username) {
		return nil, model.NewTodoNotFoundError(id)
	}
	return todo, nil
}

// Update はフォーム入力でToDoを上書き更新する。IDは維持し、所有者は呼び出しユーザーで上書きする。
// 入力が不正な場合は*model.ValidationError、対象が存在しない場合はTODO_NOT_FOUNDのAppErrorを返す。
func (s *Service) Update(ctx context.Context, username string, id int, form Form) (*model.Todo, error) {
	todo, verr := s.bind(username, id, form)
	if verr.HasErrors() {
		return todo, verr
	}

	if s.config.OwnerCheck {
		if _, err := s.Get(ctx, username, id); err != nil {
			return nil, err
		}
	}

	updated, err := s.repo.Update(ctx, todo)
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	if !updated {
		return nil, model.NewTodoNotFoundError(id)
	}

	slog.Info("todo updated",
		slog.String("username", username),
		slog.Int("todo_id", id),
	)
	return todo, nil
}

// Delete は指定IDのToDoを削除する。
// 対象が存在しない場合（所有者チェック有効時は他ユーザーのToDoも含む）はfalseを返す。
func (s *Service) Delete(ctx context.Context, username string, id int) (bool, error) {
	if s.config.OwnerCheck {
		if _, err := s.Get(ctx, username, id); err != nil {
			if isNotFound(err) {
				return false, nil
			}
			return false, err
		}
	}

	deleted, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete todo: %w", err)
	}

	if deleted {
		slog.Info("todo deleted",
			slog.String("username", username),
			slog.Int("todo_id", id),
		)
	}
	return deleted, nil
}

// bind はフォーム入力をToDoに変換し、検証する。
// 説明は入力されたまま保存する（前後の空白も長さに数える）。
// 検証エラーがあっても入力値を反映したToDoを返す（フォーム再表示用）。
func (s *Service) bind(username string, id int, form Form) (*model.Todo, *model.ValidationError) {
	verr := &model.ValidationError{}

	todo := &model.Todo{
		ID:          id,
		Username:    username,
		Description: form.Description,
		Done:        form.Done,
	}

	if s.markup.ContainsMarkup(form.Description) {
		verr.Add(FieldDescription, MessageDescriptionMarkup)
	}

	date, err := time.Parse(model.DateLayout, strings.TrimSpace(form.TargetDate))
	if err != nil {
		verr.Add(FieldTargetDate, MessageInvalidDate)
	} else {
		todo.TargetDate = date
	}

	if err := s.validate.Struct(todo); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			verr.Add(FieldDescription, err.Error())
			return todo, verr
		}
		for _, fe := range fieldErrs {
			if fe.StructField() == "Description" {
				verr.Add(FieldDescription, MessageDescriptionTooShort)
			}
		}
	}

	return todo, verr
}

// visibleTo は所有者チェックの設定に従い、ユーザーがToDoを参照できるかを返す。
func (s *Service) visibleTo(todo *model.Todo, username string) bool {
	return !s.config.OwnerCheck || strings.EqualFold(todo.Username, username)
}

func isNotFound(err error) bool {
	var appErr *model.AppError
	return errors.As(err, &appErr) && appErr.Code == model.ErrCodeTodoNotFound
}
