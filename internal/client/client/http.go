package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// HTTPClient talks to the GophAuth HTTP API.
type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient returns a client for the API rooted at baseURL. Every request
// is bounded by timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server url %q is not absolute", baseURL)
	}
	return &HTTPClient{baseURL: u, http: &http.Client{Timeout: timeout}}, nil
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do sends in as a JSON body (when non-nil) and decodes a 2xx response into
// out (when non-nil).
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, token string, in, out any) error {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var eb errorBody
	if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Code == "" {
		eb = errorBody{Code: "HTTP_ERROR", Message: http.StatusText(resp.StatusCode)}
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return &APIError{Status: resp.StatusCode, Code: eb.Code, Message: eb.Message, kind: ErrUnavailable}
	}
	return &APIError{Status: resp.StatusCode, Code: eb.Code, Message: eb.Message, kind: classify(eb.Code, eb.Message)}
}

func (c *HTTPClient) Register(ctx context.Context, username, email, password string) (Registration, error) {
	in := map[string]string{"username": username, "email": email, "password": password}
	var out Registration
	if err := c.do(ctx, http.MethodPost, "/register", nil, "", in, &out); err != nil {
		return Registration{}, err
	}
	return out, nil
}

func (c *HTTPClient) VerifyEmail(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodGet, "/verify-email", url.Values{"token": {token}}, "", nil, nil)
}

func (c *HTTPClient) Login(ctx context.Context, usernameOrEmail, password string) (Tokens, error) {
	in := map[string]string{"username_or_email": usernameOrEmail, "password": password}
	var out Tokens
	if err := c.do(ctx, http.MethodPost, "/login", nil, "", in, &out); err != nil {
		return Tokens{}, err
	}
	return out, nil
}

func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (string, error) {
	in := map[string]string{"refresh_token": refreshToken}
	var out Tokens
	if err := c.do(ctx, http.MethodPost, "/refresh-token", nil, "", in, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

func (c *HTTPClient) Me(ctx context.Context, accessToken string) (Account, error) {
	var out Account
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, accessToken, nil, &out); err != nil {
		return Account{}, err
	}
	return out, nil
}

func (c *HTTPClient) Logout(ctx context.Context, accessToken, refreshToken string) error {
	var in any
	if refreshToken != "" {
		in = map[string]string{"refresh_token": refreshToken}
	}
	return c.do(ctx, http.MethodPost, "/logout", nil, accessToken, in, nil)
}

func (c *HTTPClient) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/reset-password-request", nil, "", map[string]string{"email": email}, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (c *HTTPClient) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	in := map[string]string{"token": token, "new_password": newPassword}
	return c.do(ctx, http.MethodPost, "/reset-password", nil, "", in, nil)
}
