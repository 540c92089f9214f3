package server

import (
	"comanda/internal/handler"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Stores   *handler.StoreHandler
	POS      *handler.POSHandler
	Kitchen  *handler.KitchenHandler
	Admin    *handler.AdminHandler
	Payments *handler.PaymentHandler
	Realtime *handler.RealtimeHandler
}

func RegisterRoutes(e *echo.Echo, h Handlers, jwtSecret string) {
	h.Stores.RegisterRoutes(e)
	h.POS.RegisterRoutes(e)
	h.Kitchen.RegisterRoutes(e)
	h.Admin.RegisterRoutes(e, jwtSecret)
	h.Payments.RegisterRoutes(e)
	h.Realtime.RegisterRoutes(e)
}
