package docapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
)

func (c *Client) UploadDocument(ctx context.Context, file domain.UploadFile) (*domain.UploadResult, error) {
	body, contentType, err := multipartBody(nil, "file", &file)
	if err != nil {
		return nil, err
	}

	var out domain.UploadResult
	if err := c.call(ctx, request{
		operation:   "upload",
		method:      http.MethodPost,
		path:        "/upload",
		body:        body,
		contentType: contentType,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListDocuments(ctx context.Context, skip, limit int) ([]domain.Document, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 100
	}
	query := url.Values{}
	query.Set("skip", strconv.Itoa(skip))
	query.Set("limit", strconv.Itoa(limit))

	var out []domain.Document
	if err := c.call(ctx, request{
		operation:  "list_documents",
		method:     http.MethodGet,
		path:       "/documents",
		query:      query,
		idempotent: true,
	}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Document{}
	}
	return out, nil
}

func (c *Client) GetDocument(ctx context.Context, id int64) (*domain.Document, error) {
	var out domain.Document
	if err := c.call(ctx, request{
		operation:  "get_document",
		method:     http.MethodGet,
		path:       fmt.Sprintf("/documents/%d", id),
		idempotent: true,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id int64) (*domain.DeleteResult, error) {
	var out domain.DeleteResult
	if err := c.call(ctx, request{
		operation: "delete_document",
		method:    http.MethodDelete,
		path:      fmt.Sprintf("/documents/%d", id),
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DocumentImageURL returns the absolute URL of the protected image for a document.
func (c *Client) DocumentImageURL(id int64) string {
	return c.endpoint(fmt.Sprintf("/documents/%d/image", id), nil)
}
