package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const RoleAdmin = "ADMIN"

// RequireRole はAuthJWTの後に置く
func RequireRole(role string) echo.MiddlewareFunc {
	forbidden := errorJSON(strings.ToLower(role) + " only")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got, _ := c.Get(CtxUserRoleKey).(string)
			if got == "" {
				return unauthorized(c)
			}
			if got != role {
				return c.JSON(http.StatusForbidden, forbidden)
			}
			return next(c)
		}
	}
}

// 分析・メニュー管理・監査ログはADMINだけ
func AdminRoleGuard() echo.MiddlewareFunc {
	return RequireRole(RoleAdmin)
}
