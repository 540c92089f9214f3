package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"comanda/internal/infra/realtime"
	"comanda/internal/usecase"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

type ActiveOrderService interface {
	ListActive(ctx context.Context, storeID string) ([]usecase.OrderOutput, error)
}

type BoardService interface {
	Board(ctx context.Context, storeID string) (usecase.KitchenBoard, error)
}

// ブラウザへ送るメッセージ。毎回まるごと送る（差分ではない）
type RealtimeMessage struct {
	Type   string                `json:"type"`
	Event  *realtime.Event       `json:"event,omitempty"`
	Orders []usecase.OrderOutput `json:"orders,omitempty"`
	Board  *usecase.KitchenBoard `json:"board,omitempty"`
}

// 注文の変更をwebsocketで配る（/stores/:storeId/realtime?view=pos|kitchen）
type RealtimeHandler struct {
	hub      *realtime.Hub
	orders   ActiveOrderService
	kitchen  BoardService
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewRealtimeHandler(hub *realtime.Hub, orders ActiveOrderService, kitchen BoardService, allowedOrigin string, log *slog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		hub:     hub,
		orders:  orders,
		kitchen: kitchen,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

func (h *RealtimeHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/stores/:storeId/realtime", h.serve)
}

func (h *RealtimeHandler) serve(c echo.Context) error {
	storeID, ok := pathUUID(c, "storeId")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid store id"})
	}
	view := c.QueryParam("view")
	if view == "" {
		view = "pos"
	}
	if view != "pos" && view != "kitchen" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid view"})
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgradeがエラーレスポンスを書いている
		return nil
	}
	defer conn.Close()

	sub := h.hub.Subscribe(storeID)
	defer sub.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	//クライアントからの切断を検知するため読み続ける
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.push(ctx, conn, storeID, view, nil); err != nil {
		return nil
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := h.push(ctx, conn, storeID, view, &ev); err != nil {
				return nil
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

// 通知のたびに一覧を取り直して送る
func (h *RealtimeHandler) push(ctx context.Context, conn *websocket.Conn, storeID string, view string, ev *realtime.Event) error {
	msg := RealtimeMessage{Type: "snapshot", Event: ev}

	switch view {
	case "kitchen":
		board, err := h.kitchen.Board(ctx, storeID)
		if err != nil {
			h.log.Warn("realtime refetch failed", "store_id", storeID, "view", view, "err", err)
			return nil
		}
		msg.Board = &board
	default:
		orders, err := h.orders.ListActive(ctx, storeID)
		if err != nil {
			h.log.Warn("realtime refetch failed", "store_id", storeID, "view", view, "err", err)
			return nil
		}
		msg.Orders = orders
	}

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}
