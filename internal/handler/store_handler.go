package handler

import (
	"context"
	"net/http"

	"comanda/internal/usecase"

	"github.com/labstack/echo/v4"
)

type StoreService interface {
	List(ctx context.Context) ([]usecase.StoreOutput, error)
	Get(ctx context.Context, id string) (usecase.StoreOutput, error)
	Create(ctx context.Context, in usecase.CreateStoreInput) (usecase.StoreOutput, error)
}

// トップ画面（店舗の一覧と作成）
type StoreHandler struct {
	uc StoreService
}

func NewStoreHandler(uc StoreService) *StoreHandler {
	return &StoreHandler{uc: uc}
}

func (h *StoreHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/stores", h.list)
	e.POST("/stores", h.create)
	e.GET("/stores/:storeId", h.get)
}

func (h *StoreHandler) list(c echo.Context) error {
	out, err := h.uc.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *StoreHandler) get(c echo.Context) error {
	storeID, ok := pathUUID(c, "storeId")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid store id"})
	}

	out, err := h.uc.Get(c.Request().Context(), storeID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *StoreHandler) create(c echo.Context) error {
	var req usecase.CreateStoreInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Create(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}
