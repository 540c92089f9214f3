package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxStoreIDKey  = "store_id"  // string
	CtxUserRoleKey = "user_role" // string
)

// 管理画面のトークンに載せる中身
type AdminClaims struct {
	StoreID string `json:"store_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// bearerトークンを検証してstore_idとroleをcontextに置く。
// パスに :storeId があれば、トークンの店舗と一致しないと通さない。
func AuthJWT(secret string) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request())
			if !ok {
				return unauthorized(c)
			}

			var claims AdminClaims
			token, err := parser.ParseWithClaims(raw, &claims, keyFunc)
			if err != nil || !token.Valid {
				return unauthorized(c)
			}
			if claims.StoreID == "" || claims.Role == "" {
				return unauthorized(c)
			}

			//別の店舗のトークンは使えない
			if p := c.Param("storeId"); p != "" && !strings.EqualFold(p, claims.StoreID) {
				return c.JSON(http.StatusForbidden, errorJSON("forbidden"))
			}

			c.Set(CtxStoreIDKey, claims.StoreID)
			c.Set(CtxUserRoleKey, claims.Role)
			return next(c)
		}
	}
}

// "Bearer xxx" からトークンだけ取り出す
func bearerToken(r *http.Request) (string, bool) {
	scheme, raw, found := strings.Cut(r.Header.Get(echo.HeaderAuthorization), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
}
