package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"comanda/internal/middleware"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secret  = "test-secret"
	storeA  = "11111111-1111-1111-1111-111111111111"
	storeB  = "22222222-2222-2222-2222-222222222222"
	okRoute = "/stores/:storeId/admin/ping"
)

// =====================
// レスポンス確認用
// =====================

type mwErrorResponse struct {
	Error string `json:"error"`
}

type mwOKResponse struct {
	StoreID string `json:"store_id"`
	Role    string `json:"role"`
}

func signToken(t *testing.T, key string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func validClaims(storeID, role string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub":      "admin",
		"store_id": storeID,
		"role":     role,
		"iat":      now.Unix(),
		"exp":      now.Add(time.Hour).Unix(),
	}
}

func newEcho() *echo.Echo {
	e := echo.New()
	g := e.Group("", middleware.AuthJWT(secret), middleware.AdminRoleGuard())
	g.GET(okRoute, func(c echo.Context) error {
		return c.JSON(http.StatusOK, mwOKResponse{
			StoreID: c.Get(middleware.CtxStoreIDKey).(string),
			Role:    c.Get(middleware.CtxUserRoleKey).(string),
		})
	})
	return e
}

func doRequest(e *echo.Echo, path string, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthJWT_OK(t *testing.T) {
	tok := signToken(t, secret, jwt.SigningMethodHS256, validClaims(storeA, "ADMIN"))

	rec := doRequest(newEcho(), "/stores/"+storeA+"/admin/ping", "Bearer "+tok)

	require.Equal(t, http.StatusOK, rec.Code)
	var res mwOKResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, storeA, res.StoreID)
	assert.Equal(t, "ADMIN", res.Role)
}

func TestAuthJWT_Unauthorized(t *testing.T) {
	expired := validClaims(storeA, "ADMIN")
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	noStore := validClaims(storeA, "ADMIN")
	delete(noStore, "store_id")

	cases := []struct {
		name  string
		authz string
	}{
		{"ヘッダなし", ""},
		{"Bearerでない", "Basic abc"},
		{"トークン空", "Bearer  "},
		{"壊れたトークン", "Bearer not.a.jwt"},
		{"別の鍵", "Bearer " + signToken(t, "other", jwt.SigningMethodHS256, validClaims(storeA, "ADMIN"))},
		{"期限切れ", "Bearer " + signToken(t, secret, jwt.SigningMethodHS256, expired)},
		{"HS512", "Bearer " + signToken(t, secret, jwt.SigningMethodHS512, validClaims(storeA, "ADMIN"))},
		{"store_idなし", "Bearer " + signToken(t, secret, jwt.SigningMethodHS256, noStore)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(newEcho(), "/stores/"+storeA+"/admin/ping", tc.authz)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var res mwErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Equal(t, "unauthorized", res.Error)
		})
	}
}

func TestAuthJWT_OtherStoreForbidden(t *testing.T) {
	tok := signToken(t, secret, jwt.SigningMethodHS256, validClaims(storeA, "ADMIN"))

	rec := doRequest(newEcho(), "/stores/"+storeB+"/admin/ping", "Bearer "+tok)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminRoleGuard_NonAdminForbidden(t *testing.T) {
	tok := signToken(t, secret, jwt.SigningMethodHS256, validClaims(storeA, "STAFF"))

	rec := doRequest(newEcho(), "/stores/"+storeA+"/admin/ping", "Bearer "+tok)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var res mwErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "admin only", res.Error)
}
