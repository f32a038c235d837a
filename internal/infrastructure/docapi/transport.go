package docapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
)

type request struct {
	operation   string
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	// idempotent calls may be retried by the executor.
	idempotent bool
	// anonymous calls carry no bearer token and never trigger OnUnauthorized.
	anonymous bool
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

type formField struct {
	name  string
	value string
}

// call performs r and decodes the JSON response into out. A *[]byte out receives the raw body.
func (c *Client) call(ctx context.Context, r request, out any) error {
	var raw []byte
	err := c.execute(ctx, r, func(ctx context.Context) error {
		body, err := c.send(ctx, r)
		if err != nil {
			return err
		}
		raw = body
		return nil
	})
	if err != nil {
		return c.fail(ctx, r, err)
	}

	switch target := out.(type) {
	case nil:
		return nil
	case *[]byte:
		*target = raw
		return nil
	default:
		if err := json.Unmarshal(raw, out); err != nil {
			return domain.WrapError(domain.ErrDecode, "decode "+r.operation+" response", err)
		}
		return nil
	}
}

func (c *Client) execute(ctx context.Context, r request, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	operation := "docapi." + r.operation
	if r.idempotent {
		return c.executor.Execute(ctx, operation, fn, classifyAPIError)
	}
	return c.executor.ExecuteOnce(ctx, operation, fn, classifyAPIError)
}

func (c *Client) send(ctx context.Context, r request) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.endpoint(r.path, r.query), body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", r.operation, err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	if !r.anonymous {
		if err := c.authorize(ctx, req); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observer.ObserveAPIRequest(r.operation, 0, time.Since(start))
		return nil, fmt.Errorf("docapi %s request: %w", r.operation, err)
	}
	defer resp.Body.Close()
	c.observer.ObserveAPIRequest(r.operation, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 300 {
		return nil, newHTTPStatusError(r.operation, resp)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", r.operation, err)
	}
	return payload, nil
}

// authorize reads the token at request time so a login or logout takes effect on the next call.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.creds == nil {
		return nil
	}
	token, err := c.creds.Token(ctx)
	if err != nil {
		return domain.WrapError(domain.ErrNotAuthenticated, "read token", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func (c *Client) fail(ctx context.Context, r request, err error) error {
	var statusErr *HTTPStatusError
	if !r.anonymous && c.onUnauthorized != nil &&
		errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
		c.onUnauthorized(ctx)
	}
	return mapError(r.operation, err)
}

func (c *Client) endpoint(path string, query url.Values) string {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

func jsonBody(operation string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", operation, err)
	}
	return body, nil
}

// multipartBody encodes fields and an optional file part named fileField.
func multipartBody(fields []formField, fileField string, file *domain.UploadFile) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, field := range fields {
		if err := writer.WriteField(field.name, field.value); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", field.name, err)
		}
	}
	if file != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(fileField), quoteEscaper.Replace(file.Name)))
		contentType := file.MimeType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", fmt.Errorf("write file part: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}
