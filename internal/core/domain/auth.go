package domain

import "time"

type User struct {
	ID        int64     `json:"id" yaml:"id"`
	Email     string    `json:"email" yaml:"email"`
	Username  string    `json:"username" yaml:"username"`
	FullName  string    `json:"full_name,omitempty" yaml:"full_name,omitempty"`
	IsActive  bool      `json:"is_active" yaml:"is_active"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

type RegisterInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// Session is the persisted credential state set at login and cleared at logout or expiry.
type Session struct {
	Token     string    `yaml:"token"`
	User      *User     `yaml:"user,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

type AuthEventKind string

const (
	AuthLoggedIn       AuthEventKind = "logged_in"
	AuthLoggedOut      AuthEventKind = "logged_out"
	AuthSessionExpired AuthEventKind = "session_expired"
)

type AuthEvent struct {
	Kind       AuthEventKind `json:"kind"`
	Username   string        `json:"username,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
	Origin     string        `json:"origin,omitempty"`
}
