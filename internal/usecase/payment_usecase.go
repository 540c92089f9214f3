package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"comanda/internal/domain/model"

	"github.com/shopspring/decimal"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollAttempts = 120
)

// 端末の支払い状態
const (
	IntentStateFinished = "FINISHED"
	IntentStateClosed   = "CLOSED"
	IntentStateCanceled = "CANCELED"
	IntentStateExpired  = "EXPIRED"
)

var ErrChargeTimeout = errors.New("payment terminal timeout")

// 決済端末APIの約束（ステータスと本文をそのまま返す）
type PointGateway interface {
	Configured() bool
	CreatePaymentIntent(ctx context.Context, deviceID string, amount float64, description string, idempotencyKey string) (int, []byte, error)
	GetPaymentIntent(ctx context.Context, deviceID string, intentID string) (int, []byte, error)
}

// 会計の約束（OrderUsecaseを渡す）
type OrderPayer interface {
	GetOrder(ctx context.Context, storeID string, orderID string) (OrderOutput, error)
	MarkPaid(ctx context.Context, actor string, storeID string, orderID string, in MarkPaidInput) (OrderOutput, error)
}

type ProxyCreateInput struct {
	Amount   decimal.Decimal `json:"amount"`
	OrderID  string          `json:"orderId"`
	DeviceID string          `json:"deviceId"`
}

type ChargeInput struct {
	DeviceID  string           `json:"device_id"`
	TipAmount *decimal.Decimal `json:"tip_amount,omitempty"`
}

type ChargeStatus string

const (
	ChargePending ChargeStatus = "pending"
	ChargePaid    ChargeStatus = "paid"
	ChargeFailed  ChargeStatus = "failed"
)

type ChargeState struct {
	OrderID   string          `json:"order_id"`
	DeviceID  string          `json:"device_id"`
	IntentID  string          `json:"payment_intent_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    ChargeStatus    `json:"status"`
	State     string          `json:"state,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type PaymentUsecase struct {
	gateway  PointGateway
	orders   OrderPayer
	clock    Clock
	log      *slog.Logger
	interval time.Duration
	attempts int

	mu      sync.Mutex
	charges map[string]ChargeState

	//ポーリングはリクエストより長生きするのでアプリ全体のcontextで回す
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPaymentUsecase(gateway PointGateway, orders OrderPayer, clock Clock, log *slog.Logger, interval time.Duration, attempts int) *PaymentUsecase {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PaymentUsecase{
		gateway:  gateway,
		orders:   orders,
		clock:    clock,
		log:      log,
		interval: interval,
		attempts: attempts,
		charges:  make(map[string]ChargeState),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Close は実行中のポーリングを止めて終了を待つ
func (u *PaymentUsecase) Close() {
	u.cancel()
	u.wg.Wait()
}

// ProxyCreate は端末へ支払いを送る（画面からの直接呼び出し用）
func (u *PaymentUsecase) ProxyCreate(ctx context.Context, in ProxyCreateInput) ([]byte, error) {
	if !u.gateway.Configured() {
		return nil, NewHTTPError(http.StatusInternalServerError, "Mercado Pago Access Token not configured")
	}
	if strings.TrimSpace(in.DeviceID) == "" {
		return nil, NewHTTPError(http.StatusBadRequest, "Device ID is required")
	}
	if strings.TrimSpace(in.OrderID) == "" {
		return nil, NewHTTPError(http.StatusBadRequest, "Order ID is required")
	}

	status, body, err := u.createIntent(ctx, in.DeviceID, in.OrderID, in.Amount)
	if err != nil {
		u.log.Error("mercadopago error", "op", "create intent", "order_id", in.OrderID, "err", err)
		return nil, NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
	}
	if !isSuccess(status) {
		u.log.Warn("mercadopago rejected intent", "order_id", in.OrderID, "status", status, "body", string(body))
		msg := upstreamMessage(body)
		if msg == "" {
			msg = "Failed to create payment intent"
		}
		return nil, NewHTTPError(status, msg)
	}
	return body, nil
}

func (u *PaymentUsecase) ProxyStatus(ctx context.Context, deviceID string, intentID string) ([]byte, error) {
	if !u.gateway.Configured() {
		return nil, NewHTTPError(http.StatusInternalServerError, "Mercado Pago Access Token not configured")
	}
	if strings.TrimSpace(deviceID) == "" || strings.TrimSpace(intentID) == "" {
		return nil, NewHTTPError(http.StatusBadRequest, "Missing parameters")
	}

	status, body, err := u.gateway.GetPaymentIntent(ctx, deviceID, intentID)
	if err != nil {
		u.log.Error("mercadopago error", "op", "get intent", "intent_id", intentID, "err", err)
		return nil, NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
	}
	if !isSuccess(status) {
		return nil, NewHTTPError(status, "Failed to fetch status")
	}
	return body, nil
}

// ChargeOnTerminal は注文の合計を端末に送り、結果をバックグラウンドで待つ。
// FINISHED/CLOSEDなら会計済みにする。
func (u *PaymentUsecase) ChargeOnTerminal(ctx context.Context, storeID string, orderID string, in ChargeInput) (ChargeState, error) {
	if !u.gateway.Configured() {
		return ChargeState{}, NewHTTPError(http.StatusInternalServerError, "Mercado Pago Access Token not configured")
	}
	if strings.TrimSpace(in.DeviceID) == "" {
		return ChargeState{}, NewHTTPError(http.StatusBadRequest, "Device ID is required")
	}
	if in.TipAmount != nil && in.TipAmount.IsNegative() {
		return ChargeState{}, NewHTTPError(http.StatusBadRequest, "invalid tip_amount")
	}

	o, err := u.orders.GetOrder(ctx, storeID, orderID)
	if err != nil {
		return ChargeState{}, err
	}
	if st, ok := model.ParseOrderStatus(o.Status); ok && st.IsTerminal() {
		return ChargeState{}, NewHTTPError(http.StatusBadRequest, "cannot charge "+o.Status+" order")
	}

	tip := o.TipAmount
	if in.TipAmount != nil {
		tip = *in.TipAmount
	}
	amount := o.Subtotal.Add(tip)

	st := ChargeState{
		OrderID:   orderID,
		DeviceID:  in.DeviceID,
		Amount:    amount,
		Status:    ChargePending,
		UpdatedAt: u.clock.Now(),
	}
	prev, hadPrev, ok := u.reserveCharge(st)
	if !ok {
		return ChargeState{}, NewHTTPError(http.StatusConflict, "charge already in progress")
	}
	//端末に送れなかったら予約を戻す
	fail := func(err error) (ChargeState, error) {
		u.restoreCharge(orderID, prev, hadPrev)
		return ChargeState{}, err
	}

	status, body, err := u.createIntent(ctx, in.DeviceID, orderID, amount)
	if err != nil {
		u.log.Error("mercadopago error", "op", "create intent", "order_id", orderID, "err", err)
		return fail(NewHTTPError(http.StatusBadGateway, "payment terminal unavailable"))
	}
	if !isSuccess(status) {
		msg := upstreamMessage(body)
		if msg == "" {
			msg = "Failed to create payment intent"
		}
		return fail(NewHTTPError(status, msg))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
		return fail(NewHTTPError(http.StatusBadGateway, "invalid payment terminal response"))
	}

	st.IntentID = created.ID
	u.setCharge(st)

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.settle(storeID, st, tip)
	}()

	u.log.Info("charge sent to terminal", "store_id", storeID, "order_id", orderID, "intent_id", created.ID)
	return st, nil
}

func (u *PaymentUsecase) settle(storeID string, st ChargeState, tip decimal.Decimal) {
	state, err := u.AwaitIntent(u.ctx, st.DeviceID, st.IntentID)
	st.State = state
	st.UpdatedAt = u.clock.Now()

	switch {
	case err != nil:
		st.Status = ChargeFailed
		st.Reason = err.Error()
	case state == IntentStateFinished || state == IntentStateClosed:
		//手動会計と同じ処理
		if _, err := u.orders.MarkPaid(u.ctx, "terminal", storeID, st.OrderID, MarkPaidInput{TipAmount: &tip}); err != nil {
			st.Status = ChargeFailed
			st.Reason = "mark paid: " + err.Error()
		} else {
			st.Status = ChargePaid
		}
	default:
		st.Status = ChargeFailed
		st.Reason = "payment " + strings.ToLower(state)
	}

	u.setCharge(st)
	u.log.Info("charge settled", "store_id", storeID, "order_id", st.OrderID, "status", st.Status, "state", state)
}

// AwaitIntent は終了状態になるまで一定間隔で問い合わせる。
// 回数を使い切ったら ErrChargeTimeout。一時的なエラーは次の回でやり直す。
func (u *PaymentUsecase) AwaitIntent(ctx context.Context, deviceID string, intentID string) (string, error) {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for i := 0; i < u.attempts; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		status, body, err := u.gateway.GetPaymentIntent(ctx, deviceID, intentID)
		if err != nil || !isSuccess(status) {
			u.log.Warn("poll payment intent failed", "intent_id", intentID, "attempt", i+1, "status", status, "err", err)
			continue
		}

		var res struct {
			State string `json:"state"`
		}
		if err := json.Unmarshal(body, &res); err != nil {
			continue
		}

		switch strings.ToUpper(res.State) {
		case IntentStateFinished, IntentStateClosed, IntentStateCanceled, IntentStateExpired:
			return strings.ToUpper(res.State), nil
		}
	}
	return "", ErrChargeTimeout
}

// ChargeStatus は最後に分かっている端末決済の状態
func (u *PaymentUsecase) ChargeStatus(ctx context.Context, storeID string, orderID string) (ChargeState, error) {
	if _, err := u.orders.GetOrder(ctx, storeID, orderID); err != nil {
		return ChargeState{}, err
	}
	st, ok := u.chargeOf(orderID)
	if !ok {
		return ChargeState{}, NewHTTPError(http.StatusNotFound, "no charge for order")
	}
	return st, nil
}

func (u *PaymentUsecase) createIntent(ctx context.Context, deviceID string, orderID string, amount decimal.Decimal) (int, []byte, error) {
	f, _ := amount.Round(2).Float64()
	return u.gateway.CreatePaymentIntent(ctx, deviceID, f, "Order #"+shortID(orderID), orderID)
}

func (u *PaymentUsecase) chargeOf(orderID string) (ChargeState, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	st, ok := u.charges[orderID]
	return st, ok
}

// reserveCharge は保留中の決済が無いときだけ st を登録する。確認と登録は同じロックの中
func (u *PaymentUsecase) reserveCharge(st ChargeState) (prev ChargeState, hadPrev bool, ok bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	prev, hadPrev = u.charges[st.OrderID]
	if hadPrev && prev.Status == ChargePending {
		return prev, hadPrev, false
	}
	u.charges[st.OrderID] = st
	return prev, hadPrev, true
}

func (u *PaymentUsecase) restoreCharge(orderID string, prev ChargeState, hadPrev bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if hadPrev {
		u.charges[orderID] = prev
		return
	}
	delete(u.charges, orderID)
}

func (u *PaymentUsecase) setCharge(st ChargeState) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.charges[st.OrderID] = st
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func upstreamMessage(body []byte) string {
	var res struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return ""
	}
	return res.Message
}
