package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"comanda/internal/domain/model"
	"comanda/internal/middleware"
	"comanda/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type AdminLoginService interface {
	Login(ctx context.Context, storeID string, in usecase.AdminLoginInput) (usecase.AdminLoginOutput, error)
}

type AnalyticsService interface {
	Summary(ctx context.Context, storeID string, period string, investment decimal.Decimal) (usecase.AnalyticsSummary, error)
}

type MenuAdminService interface {
	ListAll(ctx context.Context, storeID string) ([]model.MenuItem, error)
	Upsert(ctx context.Context, actor string, storeID string, in usecase.UpsertMenuItemInput) (model.MenuItem, error)
	Disable(ctx context.Context, actor string, storeID string, id string) error
}

type AuditService interface {
	List(ctx context.Context, storeID string, q usecase.AuditLogQuery) ([]model.AuditLog, error)
}

// 管理画面（/stores/:storeId/admin）
type AdminHandler struct {
	auth      AdminLoginService
	analytics AnalyticsService
	menu      MenuAdminService
	audit     AuditService
}

func NewAdminHandler(auth AdminLoginService, analytics AnalyticsService, menu MenuAdminService, audit AuditService) *AdminHandler {
	return &AdminHandler{auth: auth, analytics: analytics, menu: menu, audit: audit}
}

func (h *AdminHandler) RegisterRoutes(e *echo.Echo, jwtSecret string) {
	e.POST("/stores/:storeId/admin/login", h.login)

	admin := e.Group("/stores/:storeId/admin")
	admin.Use(middleware.AuthJWT(jwtSecret))
	admin.Use(middleware.AdminRoleGuard())

	admin.GET("/analytics", h.summary)
	admin.GET("/menu", h.menuList)
	admin.POST("/menu", h.menuCreate)
	admin.PUT("/menu/:id", h.menuUpdate)
	admin.DELETE("/menu/:id", h.menuDisable)
	admin.GET("/audit-logs", h.auditLogs)
}

func (h *AdminHandler) login(c echo.Context) error {
	storeID, ok := pathUUID(c, "storeId")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid store id"})
	}

	var req usecase.AdminLoginInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.auth.Login(c.Request().Context(), storeID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ?period=day|week|month|year&investment=1000
func (h *AdminHandler) summary(c echo.Context) error {
	storeID, ok := pathUUID(c, "storeId")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid store id"})
	}

	period := c.QueryParam("period")
	if period == "" {
		period = string(usecase.PeriodWeek)
	}

	investment := decimal.Zero
	if v := c.QueryParam("investment"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid investment"})
		}
		investment = d
	}

	out, err := h.analytics.Summary(c.Request().Context(), storeID, period, investment)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) menuList(c echo.Context) error {
	storeID, ok := pathUUID(c, "storeId")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid store id"})
	}

	out, err := h.menu.ListAll(c.Request().Context(), storeID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) menuCreate(c echo.Context) error {
	storeID, ok := pathUUID(c, "storeId")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid store id"})
	}

	var req usecase.UpsertMenuItemInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	req.ID = ""

	out, err := h.menu.Upsert(c.Request().Context(), actorOf(c, "admin"), storeID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *AdminHandler) menuUpdate(c echo.Context) error {
	storeID, ok := pathUUID(c, "storeId")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid store id"})
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req usecase.UpsertMenuItemInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	req.ID = id

	out, err := h.menu.Upsert(c.Request().Context(), actorOf(c, "admin"), storeID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) menuDisable(c echo.Context) error {
	storeID, ok := pathUUID(c, "storeId")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid store id"})
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	if err := h.menu.Disable(c.Request().Context(), actorOf(c, "admin"), storeID, id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "disabled"})
}

func (h *AdminHandler) auditLogs(c echo.Context) error {
	storeID, ok := pathUUID(c, "storeId")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid store id"})
	}

	q := usecase.AuditLogQuery{
		Action:       c.QueryParam("action"),
		ResourceType: c.QueryParam("resource_type"),
		ResourceID:   c.QueryParam("resource_id"),
	}

	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		q.Limit = l
	}
	if v := c.QueryParam("offset"); v != "" {
		o, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid offset"})
		}
		q.Offset = o
	}
	if v := c.QueryParam("from"); v != "" {
		tm, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid from"})
		}
		q.From = &tm
	}
	if v := c.QueryParam("to"); v != "" {
		tm, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid to"})
		}
		q.To = &tm
	}

	out, err := h.audit.List(c.Request().Context(), storeID, q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
