package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"comanda/internal/handler"
	"comanda/internal/infra/realtime"
	"comanda/internal/logger"
	"comanda/internal/usecase"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ActiveOrdersMock struct{ mock.Mock }

func (m *ActiveOrdersMock) ListActive(ctx context.Context, storeID string) ([]usecase.OrderOutput, error) {
	args := m.Called(ctx, storeID)
	out, _ := args.Get(0).([]usecase.OrderOutput)
	return out, args.Error(1)
}

func dialRealtime(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stores/" + storeID + "/realtime" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) handler.RealtimeMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg handler.RealtimeMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestRealtimeHandler_SnapshotOnConnectAndOnEvent(t *testing.T) {
	hub := realtime.NewHub(4, logger.Discard())
	orders := new(ActiveOrdersMock)
	orders.On("ListActive", mock.Anything, storeID).Return([]usecase.OrderOutput{{ID: orderID, Status: "queue"}}, nil)

	e := echo.New()
	handler.NewRealtimeHandler(hub, orders, new(KitchenServiceMock), "", logger.Discard()).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn := dialRealtime(t, srv, "")

	first := readMessage(t, conn)
	assert.Equal(t, "snapshot", first.Type)
	assert.Nil(t, first.Event)
	require.Len(t, first.Orders, 1)

	require.Eventually(t, func() bool { return hub.Subscribers(storeID) == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish(realtime.Event{Table: "order_items", Op: "INSERT", StoreID: storeID, OrderID: orderID})

	second := readMessage(t, conn)
	require.NotNil(t, second.Event)
	assert.Equal(t, "order_items", second.Event.Table)
	orders.AssertNumberOfCalls(t, "ListActive", 2)
}

func TestRealtimeHandler_KitchenView(t *testing.T) {
	hub := realtime.NewHub(4, logger.Discard())
	kitchen := new(KitchenServiceMock)
	kitchen.On("Board", mock.Anything, storeID).Return(usecase.KitchenBoard{
		Queue: []usecase.KitchenOrder{{ID: orderID}}, Preparing: []usecase.KitchenOrder{}, Ready: []usecase.KitchenOrder{},
	}, nil)

	e := echo.New()
	handler.NewRealtimeHandler(hub, new(ActiveOrdersMock), kitchen, "", logger.Discard()).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	msg := readMessage(t, dialRealtime(t, srv, "?view=kitchen"))

	require.NotNil(t, msg.Board)
	require.Len(t, msg.Board.Queue, 1)
	assert.Equal(t, orderID, msg.Board.Queue[0].ID)
}

func TestRealtimeHandler_InvalidView(t *testing.T) {
	e := echo.New()
	handler.NewRealtimeHandler(realtime.NewHub(1, logger.Discard()), new(ActiveOrdersMock), new(KitchenServiceMock), "", logger.Discard()).RegisterRoutes(e)

	rec := serve(e, http.MethodGet, "/stores/"+storeID+"/realtime?view=admin", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRealtimeHandler_DisconnectUnsubscribes(t *testing.T) {
	hub := realtime.NewHub(4, logger.Discard())
	orders := new(ActiveOrdersMock)
	orders.On("ListActive", mock.Anything, storeID).Return([]usecase.OrderOutput{}, nil)

	e := echo.New()
	handler.NewRealtimeHandler(hub, orders, new(KitchenServiceMock), "", logger.Discard()).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn := dialRealtime(t, srv, "")
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.Subscribers(storeID) == 1 }, time.Second, 5*time.Millisecond)

	_ = conn.Close()

	assert.Eventually(t, func() bool { return hub.Subscribers(storeID) == 0 }, 2*time.Second, 10*time.Millisecond)
}
