package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pickup-orders/internal/auth"
	"github.com/example/pickup-orders/internal/store"
)

func seedStaff(t *testing.T, env *testEnv, email, password, role string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	env.store.SeedStaff(store.StaffAccount{
		ID:           "staff-1",
		Email:        email,
		Name:         "Sam",
		PasswordHash: hash,
		Role:         role,
	})
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	seedStaff(t, env, "sam@shop.test", "opensesame", "staff")

	resp := env.do(t, http.MethodPost, "/auth/login", "",
		map[string]string{"email": "sam@shop.test", "password": "opensesame"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, "staff", body["role"])

	claims, err := env.jwt.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "sam@shop.test", claims.Email)

	// The cookie carries the same token for the SSE stream.
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "access_token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	seedStaff(t, env, "sam@shop.test", "opensesame", "staff")

	resp := env.do(t, http.MethodPost, "/auth/login", "",
		map[string]string{"email": "sam@shop.test", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogin_UnknownAccount(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/auth/login", "",
		map[string]string{"email": "nobody@shop.test", "password": "whatever"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogin_IssuedTokenOpensStaffRoutes(t *testing.T) {
	env := newTestEnv(t)
	seedStaff(t, env, "sam@shop.test", "opensesame", "staff")

	login := env.do(t, http.MethodPost, "/auth/login", "",
		map[string]string{"email": "sam@shop.test", "password": "opensesame"})
	require.Equal(t, http.StatusOK, login.StatusCode)

	var body map[string]any
	decode(t, login, &body)
	token, _ := body["token"].(string)

	resp := env.do(t, http.MethodGet, "/orders/pending", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
