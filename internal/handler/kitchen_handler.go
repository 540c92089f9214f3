package handler

import (
	"context"
	"net/http"

	"comanda/internal/usecase"

	"github.com/labstack/echo/v4"
)

type KitchenService interface {
	Board(ctx context.Context, storeID string) (usecase.KitchenBoard, error)
	Act(ctx context.Context, actor string, storeID string, orderID string, action string) (usecase.OrderOutput, error)
}

// 厨房ディスプレイ（/stores/:storeId/kitchen）
type KitchenHandler struct {
	uc KitchenService
}

func NewKitchenHandler(uc KitchenService) *KitchenHandler {
	return &KitchenHandler{uc: uc}
}

func (h *KitchenHandler) RegisterRoutes(e *echo.Echo) {
	k := e.Group("/stores/:storeId/kitchen")

	k.GET("/board", h.board)
	// action: start / ready / served / cancel
	k.POST("/orders/:id/:action", h.act)
}

func (h *KitchenHandler) board(c echo.Context) error {
	storeID, ok := pathUUID(c, "storeId")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid store id"})
	}

	out, err := h.uc.Board(c.Request().Context(), storeID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *KitchenHandler) act(c echo.Context) error {
	storeID, orderID, ok := storeAndOrder(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.Act(c.Request().Context(), "kitchen", storeID, orderID, c.Param("action"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
