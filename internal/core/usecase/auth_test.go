package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
)

type authAPIFake struct {
	resp      *domain.TokenResponse
	err       error
	checkUser *domain.User
	checkErr  error
	loginUser string
}

func (f *authAPIFake) Login(_ context.Context, username, _ string) (*domain.TokenResponse, error) {
	f.loginUser = username
	return f.resp, f.err
}

func (f *authAPIFake) Register(context.Context, domain.RegisterInput) (*domain.TokenResponse, error) {
	return f.resp, f.err
}

func (f *authAPIFake) CheckAuth(context.Context) (*domain.User, error) {
	return f.checkUser, f.checkErr
}

type sessionStoreFake struct {
	session *domain.Session
	loadErr error
	saveErr error
	cleared int
}

func (f *sessionStoreFake) Load(context.Context) (*domain.Session, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.session == nil {
		return nil, nil
	}
	copySession := *f.session
	return &copySession, nil
}

func (f *sessionStoreFake) Save(_ context.Context, session domain.Session) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.session = &session
	return nil
}

func (f *sessionStoreFake) Clear(context.Context) error {
	f.cleared++
	f.session = nil
	return nil
}

type authBusFake struct {
	events []domain.AuthEvent
}

func (f *authBusFake) Publish(_ context.Context, event domain.AuthEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *authBusFake) Subscribe(func(domain.AuthEvent)) func() { return func() {} }

func TestLoginPersistsSessionAndPublishes(t *testing.T) {
	api := &authAPIFake{resp: &domain.TokenResponse{
		AccessToken: "jwt-1",
		TokenType:   "bearer",
		User:        domain.User{ID: 7, Username: "alice"},
	}}
	store := &sessionStoreFake{}
	bus := &authBusFake{}
	uc := NewAuthUseCase(api, store, bus)

	user, err := uc.Login(context.Background(), " alice ", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("expected alice, got %s", user.Username)
	}
	if api.loginUser != "alice" {
		t.Fatalf("expected trimmed username, got %q", api.loginUser)
	}
	if store.session == nil || store.session.Token != "jwt-1" {
		t.Fatalf("expected persisted token, got %+v", store.session)
	}
	if len(bus.events) != 1 || bus.events[0].Kind != domain.AuthLoggedIn {
		t.Fatalf("expected logged_in event, got %+v", bus.events)
	}

	token, err := uc.Token(context.Background())
	if err != nil || token != "jwt-1" {
		t.Fatalf("expected token jwt-1, got %q (%v)", token, err)
	}
	if !uc.IsAuthenticated(context.Background()) {
		t.Fatalf("expected authenticated")
	}
}

func TestLoginWithoutTokenDoesNotPersist(t *testing.T) {
	store := &sessionStoreFake{}
	uc := NewAuthUseCase(&authAPIFake{resp: &domain.TokenResponse{}}, store, &authBusFake{})

	_, err := uc.Login(context.Background(), "alice", "secret")
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if store.session != nil {
		t.Fatalf("expected no session")
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	uc := NewAuthUseCase(&authAPIFake{}, &sessionStoreFake{}, nil)
	if _, err := uc.Login(context.Background(), "", "x"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	cases := []struct {
		name  string
		input domain.RegisterInput
	}{
		{name: "short username", input: domain.RegisterInput{Email: "a@b.c", Username: "ab", Password: "secret1"}},
		{name: "short password", input: domain.RegisterInput{Email: "a@b.c", Username: "alice", Password: "123"}},
		{name: "bad email", input: domain.RegisterInput{Email: "alice", Username: "alice", Password: "secret1"}},
	}
	uc := NewAuthUseCase(&authAPIFake{}, &sessionStoreFake{}, nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := uc.Register(context.Background(), tc.input); !domain.IsKind(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestLogoutAndInvalidateClearSession(t *testing.T) {
	store := &sessionStoreFake{session: &domain.Session{Token: "jwt"}}
	bus := &authBusFake{}
	uc := NewAuthUseCase(&authAPIFake{}, store, bus)

	if err := uc.Invalidate(context.Background()); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if err := uc.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if store.cleared != 2 {
		t.Fatalf("expected 2 clears, got %d", store.cleared)
	}
	if len(bus.events) != 2 || bus.events[0].Kind != domain.AuthSessionExpired || bus.events[1].Kind != domain.AuthLoggedOut {
		t.Fatalf("unexpected events: %+v", bus.events)
	}
	if uc.IsAuthenticated(context.Background()) {
		t.Fatalf("expected unauthenticated after logout")
	}
}

func TestCurrentUserWithoutSession(t *testing.T) {
	uc := NewAuthUseCase(&authAPIFake{}, &sessionStoreFake{}, nil)
	if _, err := uc.CurrentUser(context.Background()); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestIsAuthenticatedFalseOnStoreError(t *testing.T) {
	uc := NewAuthUseCase(&authAPIFake{}, &sessionStoreFake{loadErr: errors.New("corrupt")}, nil)
	if uc.IsAuthenticated(context.Background()) {
		t.Fatalf("expected false on store error")
	}
}

func TestCheckReturnsNilOnFailure(t *testing.T) {
	uc := NewAuthUseCase(&authAPIFake{checkErr: errors.New("401")}, &sessionStoreFake{}, nil)
	if user := uc.Check(context.Background()); user != nil {
		t.Fatalf("expected nil user, got %+v", user)
	}
}
