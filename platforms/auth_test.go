package platforms

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthClient_LoginKeepsSessionCookie(t *testing.T) {
	var logoutCookie string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			var req loginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "ada@example.com", req.Email)
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
			w.Write([]byte(`{"message":"ok","user":{"id":42,"email":"ada@example.com","name":"Ada"}}`))
		case "/auth/logout":
			if c, err := r.Cookie("session"); err == nil {
				logoutCookie = c.Value
			}
			w.Write([]byte(`{"message":"bye"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	auth := NewAuthClient(client)

	user, err := auth.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "42", user.ID)
	assert.Equal(t, "Ada", user.Name)

	require.NoError(t, auth.Logout(context.Background()))
	assert.Equal(t, "abc", logoutCookie)
}

func TestAuthClient_SignupFlatPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/signup", r.URL.Path)
		w.Write([]byte(`{"id":"u1","email":"bo@example.com"}`))
	})

	user, err := NewAuthClient(client).Signup(context.Background(), SignupRequest{Email: "bo@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
}

func TestAuthClient_LoginFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Invalid credentials"}`))
	})

	_, err := NewAuthClient(client).Login(context.Background(), "a@b.c", "bad")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", ErrorMessage(err, "Login failed"))
}
