package docapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/infrastructure/resilience"
)

// HTTPStatusError is a non-2xx API response. Detail carries the server's
// {"detail": ...} message when present, otherwise the raw body prefix.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Detail     string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "docapi status error"
	}
	if strings.TrimSpace(e.Detail) == "" {
		return fmt.Sprintf("docapi %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("docapi %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Detail))
}

func newHTTPStatusError(operation string, resp *http.Response) *HTTPStatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Detail:     parseDetail(body),
	}
}

func parseDetail(body []byte) string {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return ""
	}
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return raw
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return text
	}
	// Validation failures arrive as a list of {loc, msg, type}.
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return string(envelope.Detail)
}

func classifyAPIError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
			}
		}
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

// mapError attaches the domain kind matching err so callers never inspect HTTP details.
func mapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) ||
		domain.IsKind(err, domain.ErrNotAuthenticated) ||
		domain.IsKind(err, domain.ErrDecode) {
		return err
	}
	if resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return domain.WrapError(kindForStatus(statusErr.StatusCode), operation, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %w: %w", operation, domain.ErrTransport, domain.ErrTemporary, err)
	}
	return domain.WrapError(domain.ErrTransport, operation, err)
}

func kindForStatus(statusCode int) error {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return domain.ErrUnauthorized
	case statusCode == http.StatusNotFound:
		return domain.ErrDocumentNotFound
	case isRetryableHTTPStatus(statusCode):
		return domain.ErrTemporary
	case statusCode >= 400 && statusCode < 500:
		return domain.ErrInvalidInput
	default:
		return domain.ErrTransport
	}
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	default:
		return statusCode >= 500
	}
}
