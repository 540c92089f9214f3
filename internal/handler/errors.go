package handler

import (
	"net/http"

	"comanda/internal/middleware"
	"comanda/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// パスのIDはuuidだけ受け付ける
func pathUUID(c echo.Context, name string) (string, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// 監査ログに残す操作元（管理画面はJWTのロール）
func actorOf(c echo.Context, screen string) string {
	if role, ok := c.Get(middleware.CtxUserRoleKey).(string); ok && role != "" {
		return screen + ":" + role
	}
	return screen
}
