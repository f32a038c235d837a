package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/core/ports"
)

// SessionCredentials reads the bearer token from the persisted session on every call.
type SessionCredentials struct {
	store ports.SessionStore
}

func NewSessionCredentials(store ports.SessionStore) *SessionCredentials {
	return &SessionCredentials{store: store}
}

func (c *SessionCredentials) Token(ctx context.Context) (string, error) {
	session, err := c.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return "", nil
	}
	return session.Token, nil
}

var _ ports.Authenticator = (*AuthUseCase)(nil)

type AuthUseCase struct {
	api      ports.AuthAPI
	sessions ports.SessionStore
	events   ports.AuthEventBus
	now      func() time.Time
}

func NewAuthUseCase(api ports.AuthAPI, sessions ports.SessionStore, events ports.AuthEventBus) *AuthUseCase {
	return &AuthUseCase{
		api:      api,
		sessions: sessions,
		events:   events,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (uc *AuthUseCase) Login(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "login", errors.New("username and password are required"))
	}

	resp, err := uc.api.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return uc.establish(ctx, resp)
}

func (uc *AuthUseCase) Register(ctx context.Context, input domain.RegisterInput) (*domain.User, error) {
	if err := validateRegistration(input); err != nil {
		return nil, err
	}

	resp, err := uc.api.Register(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return uc.establish(ctx, resp)
}

func (uc *AuthUseCase) Logout(ctx context.Context) error {
	if err := uc.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	uc.publish(ctx, domain.AuthEvent{Kind: domain.AuthLoggedOut})
	return nil
}

// Invalidate drops the persisted session after the backend rejected the token.
func (uc *AuthUseCase) Invalidate(ctx context.Context) error {
	if err := uc.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("clear expired session: %w", err)
	}
	uc.publish(ctx, domain.AuthEvent{Kind: domain.AuthSessionExpired})
	return nil
}

func (uc *AuthUseCase) Token(ctx context.Context) (string, error) {
	return NewSessionCredentials(uc.sessions).Token(ctx)
}

func (uc *AuthUseCase) IsAuthenticated(ctx context.Context) bool {
	token, err := uc.Token(ctx)
	if err != nil {
		slog.Warn("session_read_failed", "error", err)
		return false
	}
	return token != ""
}

func (uc *AuthUseCase) CurrentUser(ctx context.Context) (*domain.User, error) {
	session, err := uc.sessions.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil || session.Token == "" {
		return nil, domain.ErrNotAuthenticated
	}
	if session.User == nil {
		return nil, domain.WrapError(domain.ErrNotAuthenticated, "current user", errors.New("session has no user"))
	}
	user := *session.User
	return &user, nil
}

// Check verifies the token with the backend. Any failure yields nil.
func (uc *AuthUseCase) Check(ctx context.Context) *domain.User {
	user, err := uc.api.CheckAuth(ctx)
	if err != nil {
		slog.Debug("auth_check_failed", "error", err)
		return nil
	}
	return user
}

func (uc *AuthUseCase) establish(ctx context.Context, resp *domain.TokenResponse) (*domain.User, error) {
	if resp == nil || resp.AccessToken == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "establish session", errors.New("response carries no access token"))
	}

	user := resp.User
	if err := uc.sessions.Save(ctx, domain.Session{
		Token:     resp.AccessToken,
		User:      &user,
		UpdatedAt: uc.now(),
	}); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	uc.publish(ctx, domain.AuthEvent{Kind: domain.AuthLoggedIn, Username: user.Username})
	return &user, nil
}

func (uc *AuthUseCase) publish(ctx context.Context, event domain.AuthEvent) {
	if uc.events == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = uc.now()
	}
	if err := uc.events.Publish(ctx, event); err != nil {
		slog.Warn("auth_event_publish_failed", "kind", string(event.Kind), "error", err)
	}
}

func validateRegistration(input domain.RegisterInput) error {
	username := strings.TrimSpace(input.Username)
	switch n := utf8.RuneCountInString(username); {
	case n < 3 || n > 50:
		return domain.WrapError(domain.ErrInvalidInput, "register", errors.New("username must be 3 to 50 characters"))
	case utf8.RuneCountInString(input.Password) < 6:
		return domain.WrapError(domain.ErrInvalidInput, "register", errors.New("password must be at least 6 characters"))
	case !strings.Contains(input.Email, "@"):
		return domain.WrapError(domain.ErrInvalidInput, "register", errors.New("email is invalid"))
	}
	return nil
}
