package docapi

import (
	"context"
	"net/http"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
)

func (c *Client) Login(ctx context.Context, username, password string) (*domain.TokenResponse, error) {
	body, contentType, err := multipartBody([]formField{
		{name: "username", value: username},
		{name: "password", value: password},
	}, "", nil)
	if err != nil {
		return nil, err
	}

	var out domain.TokenResponse
	if err := c.call(ctx, request{
		operation:   "login",
		method:      http.MethodPost,
		path:        "/auth/login",
		body:        body,
		contentType: contentType,
		anonymous:   true,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, input domain.RegisterInput) (*domain.TokenResponse, error) {
	body, err := jsonBody("register", input)
	if err != nil {
		return nil, err
	}

	var out domain.TokenResponse
	if err := c.call(ctx, request{
		operation:   "register",
		method:      http.MethodPost,
		path:        "/auth/register",
		body:        body,
		contentType: "application/json",
		anonymous:   true,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CheckAuth(ctx context.Context) (*domain.User, error) {
	var out domain.User
	if err := c.call(ctx, request{
		operation:  "check_auth",
		method:     http.MethodGet,
		path:       "/auth/check",
		idempotent: true,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
