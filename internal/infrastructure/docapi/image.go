package docapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
)

const fetchImageOperation = "fetch_image"

// FetchResource downloads a protected binary resource with the given bearer token.
// It bypasses the executor and OnUnauthorized: one attempt, failures are reported as is.
// Relative urls are resolved against the API base URL.
func (c *Client) FetchResource(ctx context.Context, rawURL, bearerToken string) (domain.Resource, error) {
	if err := c.wait(ctx); err != nil {
		return domain.Resource{}, mapError(fetchImageOperation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolveResourceURL(rawURL), nil)
	if err != nil {
		return domain.Resource{}, domain.WrapError(domain.ErrInvalidInput, fetchImageOperation, err)
	}
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}
	req.Header.Set("Accept", "image/*")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observer.ObserveAPIRequest(fetchImageOperation, 0, time.Since(start))
		return domain.Resource{}, mapError(fetchImageOperation, fmt.Errorf("docapi %s request: %w", fetchImageOperation, err))
	}
	defer resp.Body.Close()
	c.observer.ObserveAPIRequest(fetchImageOperation, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 300 {
		return domain.Resource{}, mapError(fetchImageOperation, newHTTPStatusError(fetchImageOperation, resp))
	}

	contentType := mediaType(resp.Header.Get("Content-Type"))
	if !acceptableImageType(contentType) {
		return domain.Resource{}, domain.WrapError(domain.ErrDecode, fetchImageOperation,
			fmt.Errorf("unexpected content type %q", contentType))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxImageBytes+1))
	if err != nil {
		return domain.Resource{}, mapError(fetchImageOperation, fmt.Errorf("read image body: %w", err))
	}
	if int64(len(data)) > c.maxImageBytes {
		return domain.Resource{}, domain.WrapError(domain.ErrDecode, fetchImageOperation,
			fmt.Errorf("image exceeds max size %d bytes", c.maxImageBytes))
	}
	return domain.Resource{Data: data, ContentType: contentType}, nil
}

func (c *Client) resolveResourceURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		return rawURL
	}
	if !strings.HasPrefix(rawURL, "/") {
		rawURL = "/" + rawURL
	}
	return c.baseURL + rawURL
}

func mediaType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// acceptableImageType admits image/* and untyped payloads; the handle table verifies the bytes.
func acceptableImageType(contentType string) bool {
	return contentType == "" ||
		contentType == "application/octet-stream" ||
		strings.HasPrefix(contentType, "image/")
}
