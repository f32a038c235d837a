package httpadapter

import (
	"net/http"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrHandleNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized), domain.IsKind(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrImageLoad):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
