package handler

import (
	"context"
	"net/http"

	"comanda/internal/domain/model"
	"comanda/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, storeID string, in usecase.PlaceOrderInput) (usecase.OrderOutput, error)
	UpdateOrder(ctx context.Context, actor string, storeID string, orderID string, in usecase.UpdateOrderInput) (usecase.UpdateOrderOutput, error)
	GetOrder(ctx context.Context, storeID string, orderID string) (usecase.OrderOutput, error)
	EditableCart(ctx context.Context, storeID string, orderID string) (usecase.Cart, error)
	ListActive(ctx context.Context, storeID string) ([]usecase.OrderOutput, error)
	UpdateStatus(ctx context.Context, actor string, storeID string, orderID string, status string) (usecase.OrderOutput, error)
	MarkPaid(ctx context.Context, actor string, storeID string, orderID string, in usecase.MarkPaidInput) (usecase.OrderOutput, error)
}

type MenuReader interface {
	ListAvailable(ctx context.Context, storeID string) ([]model.MenuItem, error)
}

type ChargeService interface {
	ChargeOnTerminal(ctx context.Context, storeID string, orderID string, in usecase.ChargeInput) (usecase.ChargeState, error)
	ChargeStatus(ctx context.Context, storeID string, orderID string) (usecase.ChargeState, error)
}

// 注文入力画面（/stores/:storeId/pos）
type POSHandler struct {
	orders   OrderService
	menu     MenuReader
	payments ChargeService
}

func NewPOSHandler(orders OrderService, menu MenuReader, payments ChargeService) *POSHandler {
	return &POSHandler{orders: orders, menu: menu, payments: payments}
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
}

func (h *POSHandler) RegisterRoutes(e *echo.Echo) {
	pos := e.Group("/stores/:storeId/pos")

	pos.GET("/menu", h.menuList)
	pos.GET("/orders", h.listActive)
	pos.POST("/orders", h.place)
	pos.GET("/orders/:id", h.get)
	pos.GET("/orders/:id/cart", h.cart)
	pos.PUT("/orders/:id", h.update)
	pos.PUT("/orders/:id/status", h.updateStatus)
	pos.POST("/orders/:id/pay", h.pay)
	pos.POST("/orders/:id/charge", h.charge)
	pos.GET("/orders/:id/charge", h.chargeStatus)
}

func (h *POSHandler) menuList(c echo.Context) error {
	storeID, ok := pathUUID(c, "storeId")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid store id"})
	}

	out, err := h.menu.ListAvailable(c.Request().Context(), storeID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *POSHandler) listActive(c echo.Context) error {
	storeID, ok := pathUUID(c, "storeId")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid store id"})
	}

	out, err := h.orders.ListActive(c.Request().Context(), storeID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *POSHandler) place(c echo.Context) error {
	storeID, ok := pathUUID(c, "storeId")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid store id"})
	}

	var req usecase.PlaceOrderInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.orders.PlaceOrder(c.Request().Context(), storeID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *POSHandler) get(c echo.Context) error {
	storeID, orderID, ok := storeAndOrder(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.orders.GetOrder(c.Request().Context(), storeID, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 編集用にカートへ戻す
func (h *POSHandler) cart(c echo.Context) error {
	storeID, orderID, ok := storeAndOrder(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.orders.EditableCart(c.Request().Context(), storeID, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *POSHandler) update(c echo.Context) error {
	storeID, orderID, ok := storeAndOrder(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req usecase.UpdateOrderInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.orders.UpdateOrder(c.Request().Context(), actorOf(c, "pos"), storeID, orderID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *POSHandler) updateStatus(c echo.Context) error {
	storeID, orderID, ok := storeAndOrder(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req StatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.orders.UpdateStatus(c.Request().Context(), actorOf(c, "pos"), storeID, orderID, req.Status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 手動会計（現金など）
func (h *POSHandler) pay(c echo.Context) error {
	storeID, orderID, ok := storeAndOrder(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req usecase.MarkPaidInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.orders.MarkPaid(c.Request().Context(), actorOf(c, "pos"), storeID, orderID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 決済端末で会計（結果は GET .../charge で確認）
func (h *POSHandler) charge(c echo.Context) error {
	storeID, orderID, ok := storeAndOrder(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req usecase.ChargeInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.payments.ChargeOnTerminal(c.Request().Context(), storeID, orderID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, out)
}

func (h *POSHandler) chargeStatus(c echo.Context) error {
	storeID, orderID, ok := storeAndOrder(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.payments.ChargeStatus(c.Request().Context(), storeID, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func storeAndOrder(c echo.Context) (string, string, bool) {
	storeID, ok := pathUUID(c, "storeId")
	if !ok {
		return "", "", false
	}
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return "", "", false
	}
	return storeID, orderID, true
}
