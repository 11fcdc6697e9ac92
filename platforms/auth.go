package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"social-dashboard/models"
)

// AuthClient manages the dashboard user's backend session. The backend
// answers login with a session cookie, which the Client's jar keeps, so
// every Client used for auth must belong to a single dashboard session.
type AuthClient struct {
	client *Client
}

// NewAuthClient creates an auth client over c
func NewAuthClient(c *Client) *AuthClient {
	return &AuthClient{client: c}
}

// SignupRequest is the payload of /auth/signup
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authUserPayload struct {
	ID    flexString `json:"id"`
	Email string     `json:"email"`
	Name  string     `json:"name"`
}

// Login authenticates against /auth/login
func (a *AuthClient) Login(ctx context.Context, email, password string) (models.AuthUser, error) {
	return a.post(ctx, "/auth/login", loginRequest{Email: email, Password: password})
}

// Signup creates an account through /auth/signup
func (a *AuthClient) Signup(ctx context.Context, req SignupRequest) (models.AuthUser, error) {
	return a.post(ctx, "/auth/signup", req)
}

// Logout ends the backend session
func (a *AuthClient) Logout(ctx context.Context) error {
	_, err := a.client.do(ctx, http.MethodPost, "/auth/logout", nil, nil, "")
	return err
}

func (a *AuthClient) post(ctx context.Context, path string, payload any) (models.AuthUser, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return models.AuthUser{}, fmt.Errorf("failed to encode request: %w", err)
	}

	body, err := a.client.do(ctx, http.MethodPost, path, nil, bytes.NewReader(data), "application/json")
	if err != nil {
		return models.AuthUser{}, err
	}

	var resp struct {
		User *authUserPayload `json:"user"`
		authUserPayload
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.AuthUser{}, &ShapeError{Endpoint: "POST " + path, Reason: "body is not a JSON object"}
	}

	u := resp.authUserPayload
	if resp.User != nil {
		u = *resp.User
	}
	if u.ID == "" && u.Email == "" {
		return models.AuthUser{}, &ShapeError{Endpoint: "POST " + path, Reason: "missing user"}
	}
	return models.AuthUser{ID: string(u.ID), Email: u.Email, Name: u.Name}, nil
}
