// Package auth はフォームログインの資格情報照合とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/todoapp/internal/model"
	"github.com/hitoshi/todoapp/internal/repository"
)

// Authenticator はユーザー名とパスワードを照合するインターフェース。
// CredentialStoreが実装する。
type Authenticator interface {
	Authenticate(username, password string) (*model.Credential, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	authenticator Authenticator
	sessionRepo   repository.SessionRepository
	config        ServiceConfig
	now           func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	authenticator Authenticator,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		authenticator: authenticator,
		sessionRepo:   sessionRepo,
		config:        config,
		now:           time.Now,
	}
}

// Login は資格情報を照合し、成功した場合にセッションを発行する。
// 資格情報が一致しない場合はmodel.ErrInvalidCredentialsを返す。
func (s *Service) Login(ctx context.Context, username, password string) (*model.Session, error) {
	cred, err := s.authenticator.Authenticate(username, password)
	if err != nil {
		slog.Info("login failed", slog.String("username", username))
		return nil, err
	}

	session, err := s.createSession(ctx, cred.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", slog.String("username", cred.Username))
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// sessionTouchInterval より短い間隔のリクエストでは有効期限を延長しない。
const sessionTouchInterval = time.Minute

// CurrentUser は有効なセッションを返し、有効期限を最終アクセスからSessionMaxAge後まで延長する。
// セッションが存在しないか期限切れの場合はnilを返す。
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	expiresAt := s.now().Add(s.maxAge())
	if expiresAt.Sub(session.ExpiresAt) < sessionTouchInterval {
		return session, nil
	}

	extended, err := s.sessionRepo.Extend(ctx, sessionID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to extend session: %w", err)
	}
	if !extended {
		return nil, nil
	}
	session.ExpiresAt = expiresAt
	return session, nil
}

func (s *Service) maxAge() time.Duration {
	return time.Duration(s.config.SessionMaxAge) * time.Second
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, username string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		Username:  username,
		ExpiresAt: now.Add(s.maxAge()),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
