package ports

import (
	"context"
	"io"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
)

// ImageViewSource is the read side of an image loader instance.
type ImageViewSource interface {
	View() domain.ImageView
}

// HandleReader serves materialized handles to a display surface.
type HandleReader interface {
	Open(ctx context.Context, handleID string) (io.ReadCloser, *domain.ResourceHandle, error)
}

// Authenticator is the inbound contract for session management.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*domain.User, error)
	Register(ctx context.Context, input domain.RegisterInput) (*domain.User, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*domain.User, error)
	IsAuthenticated(ctx context.Context) bool
}
