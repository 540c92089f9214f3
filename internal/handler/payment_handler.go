package handler

import (
	"context"
	"net/http"

	"comanda/internal/usecase"

	"github.com/labstack/echo/v4"
)

type PointProxy interface {
	ProxyCreate(ctx context.Context, in usecase.ProxyCreateInput) ([]byte, error)
	ProxyStatus(ctx context.Context, deviceID string, intentID string) ([]byte, error)
}

// 決済端末APIの中継（/api/mercadopago/point）
type PaymentHandler struct {
	uc PointProxy
}

func NewPaymentHandler(uc PointProxy) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/mercadopago/point", h.create)
	e.GET("/api/mercadopago/point", h.status)
}

func (h *PaymentHandler) create(c echo.Context) error {
	var req usecase.ProxyCreateInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	body, err := h.uc.ProxyCreate(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSONBlob(http.StatusOK, body)
}

func (h *PaymentHandler) status(c echo.Context) error {
	body, err := h.uc.ProxyStatus(c.Request().Context(), c.QueryParam("deviceId"), c.QueryParam("paymentIntentId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSONBlob(http.StatusOK, body)
}
