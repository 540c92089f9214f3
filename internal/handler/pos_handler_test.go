package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"comanda/internal/domain/model"
	"comanda/internal/handler"
	"comanda/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	storeID = "11111111-1111-1111-1111-111111111111"
	orderID = "33333333-3333-3333-3333-333333333333"
)

// =====================
// Mocks
// =====================

type OrderServiceMock struct{ mock.Mock }

func (m *OrderServiceMock) PlaceOrder(ctx context.Context, storeID string, in usecase.PlaceOrderInput) (usecase.OrderOutput, error) {
	args := m.Called(ctx, storeID, in)
	out, _ := args.Get(0).(usecase.OrderOutput)
	return out, args.Error(1)
}

func (m *OrderServiceMock) UpdateOrder(ctx context.Context, actor string, storeID string, orderID string, in usecase.UpdateOrderInput) (usecase.UpdateOrderOutput, error) {
	args := m.Called(ctx, actor, storeID, orderID, in)
	out, _ := args.Get(0).(usecase.UpdateOrderOutput)
	return out, args.Error(1)
}

func (m *OrderServiceMock) GetOrder(ctx context.Context, storeID string, orderID string) (usecase.OrderOutput, error) {
	args := m.Called(ctx, storeID, orderID)
	out, _ := args.Get(0).(usecase.OrderOutput)
	return out, args.Error(1)
}

func (m *OrderServiceMock) EditableCart(ctx context.Context, storeID string, orderID string) (usecase.Cart, error) {
	args := m.Called(ctx, storeID, orderID)
	out, _ := args.Get(0).(usecase.Cart)
	return out, args.Error(1)
}

func (m *OrderServiceMock) ListActive(ctx context.Context, storeID string) ([]usecase.OrderOutput, error) {
	args := m.Called(ctx, storeID)
	out, _ := args.Get(0).([]usecase.OrderOutput)
	return out, args.Error(1)
}

func (m *OrderServiceMock) UpdateStatus(ctx context.Context, actor string, storeID string, orderID string, status string) (usecase.OrderOutput, error) {
	args := m.Called(ctx, actor, storeID, orderID, status)
	out, _ := args.Get(0).(usecase.OrderOutput)
	return out, args.Error(1)
}

func (m *OrderServiceMock) MarkPaid(ctx context.Context, actor string, storeID string, orderID string, in usecase.MarkPaidInput) (usecase.OrderOutput, error) {
	args := m.Called(ctx, actor, storeID, orderID, in)
	out, _ := args.Get(0).(usecase.OrderOutput)
	return out, args.Error(1)
}

type MenuReaderMock struct{ mock.Mock }

func (m *MenuReaderMock) ListAvailable(ctx context.Context, storeID string) ([]model.MenuItem, error) {
	args := m.Called(ctx, storeID)
	out, _ := args.Get(0).([]model.MenuItem)
	return out, args.Error(1)
}

type ChargeServiceMock struct{ mock.Mock }

func (m *ChargeServiceMock) ChargeOnTerminal(ctx context.Context, storeID string, orderID string, in usecase.ChargeInput) (usecase.ChargeState, error) {
	args := m.Called(ctx, storeID, orderID, in)
	out, _ := args.Get(0).(usecase.ChargeState)
	return out, args.Error(1)
}

func (m *ChargeServiceMock) ChargeStatus(ctx context.Context, storeID string, orderID string) (usecase.ChargeState, error) {
	args := m.Called(ctx, storeID, orderID)
	out, _ := args.Get(0).(usecase.ChargeState)
	return out, args.Error(1)
}

// =====================
// helpers
// =====================

type errorBody struct {
	Error string `json:"error"`
}

func serve(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	return serveWith(e, method, path, body, "")
}

func serveWith(e *echo.Echo, method, path, body string, authz string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var res errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res.Error
}

func newPOS() (*echo.Echo, *OrderServiceMock, *MenuReaderMock, *ChargeServiceMock) {
	orders, menu, charges := new(OrderServiceMock), new(MenuReaderMock), new(ChargeServiceMock)
	e := echo.New()
	handler.NewPOSHandler(orders, menu, charges).RegisterRoutes(e)
	return e, orders, menu, charges
}

// =====================
// Tests
// =====================

func TestPOSHandler_PlaceOrder(t *testing.T) {
	e, orders, _, _ := newPOS()
	orders.On("PlaceOrder", mock.Anything, storeID, mock.MatchedBy(func(in usecase.PlaceOrderInput) bool {
		return in.TableNumber == "4" && len(in.Lines) == 1 && in.Lines[0].Quantity == 2 && in.Lines[0].Plate == 2
	})).Return(usecase.OrderOutput{ID: orderID, OrderNumber: 1, TotalAmount: decimal.NewFromInt(6)}, nil)

	rec := serve(e, http.MethodPost, "/stores/"+storeID+"/pos/orders",
		`{"table_number":"4","lines":[{"menu_item_id":"taco","quantity":2,"plate":2}]}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var out usecase.OrderOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, orderID, out.ID)
	assert.True(t, decimal.NewFromInt(6).Equal(out.TotalAmount))
}

func TestPOSHandler_InvalidStoreID(t *testing.T) {
	e, orders, _, _ := newPOS()

	rec := serve(e, http.MethodGet, "/stores/not-a-uuid/pos/orders", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid store id", decodeError(t, rec))
	orders.AssertNotCalled(t, "ListActive", mock.Anything, mock.Anything)
}

func TestPOSHandler_UsecaseErrorStatus(t *testing.T) {
	e, orders, _, _ := newPOS()
	orders.On("GetOrder", mock.Anything, storeID, orderID).Return(nil, usecase.NewHTTPError(http.StatusNotFound, "not found"))

	rec := serve(e, http.MethodGet, "/stores/"+storeID+"/pos/orders/"+orderID, "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decodeError(t, rec))
}

func TestPOSHandler_UpdateOrder(t *testing.T) {
	e, orders, _, _ := newPOS()
	orders.On("UpdateOrder", mock.Anything, "pos", storeID, orderID, mock.MatchedBy(func(in usecase.UpdateOrderInput) bool {
		return len(in.Lines) == 1 && in.TipAmount != nil && in.TipAmount.Equal(decimal.RequireFromString("1.5"))
	})).Return(usecase.UpdateOrderOutput{Changes: usecase.ReconcileSummary{Inserted: 1}}, nil)

	rec := serve(e, http.MethodPut, "/stores/"+storeID+"/pos/orders/"+orderID,
		`{"lines":[{"menu_item_id":"taco","quantity":3}],"tip_amount":"1.5"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	orders.AssertExpectations(t)
}

func TestPOSHandler_UpdateStatus(t *testing.T) {
	e, orders, _, _ := newPOS()
	orders.On("UpdateStatus", mock.Anything, "pos", storeID, orderID, "served").
		Return(usecase.OrderOutput{ID: orderID, Status: "served"}, nil)

	rec := serve(e, http.MethodPut, "/stores/"+storeID+"/pos/orders/"+orderID+"/status", `{"status":"served"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	orders.AssertExpectations(t)
}

func TestPOSHandler_Charge(t *testing.T) {
	e, _, _, charges := newPOS()
	charges.On("ChargeOnTerminal", mock.Anything, storeID, orderID, usecase.ChargeInput{DeviceID: "dev-1"}).
		Return(usecase.ChargeState{OrderID: orderID, Status: usecase.ChargePending}, nil)

	rec := serve(e, http.MethodPost, "/stores/"+storeID+"/pos/orders/"+orderID+"/charge", `{"device_id":"dev-1"}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)
}

func TestPOSHandler_InvalidBody(t *testing.T) {
	e, orders, _, _ := newPOS()

	rec := serve(e, http.MethodPost, "/stores/"+storeID+"/pos/orders", `{"lines":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid body", decodeError(t, rec))
	orders.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestPOSHandler_MenuList(t *testing.T) {
	e, _, menu, _ := newPOS()
	menu.On("ListAvailable", mock.Anything, storeID).Return([]model.MenuItem{{ID: "taco", Name: "Taco"}}, nil)

	rec := serve(e, http.MethodGet, "/stores/"+storeID+"/pos/menu", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Taco"`)
}
