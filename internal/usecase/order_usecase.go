package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"comanda/internal/domain/model"
	repo "comanda/internal/repository"

	"github.com/shopspring/decimal"
)

type OrderUsecase struct {
	tx       repo.TransactionManager
	resolver ModifierResolver
	ids      IDGenerator
	clock    Clock
	log      *slog.Logger
}

func NewOrderUsecase(tx repo.TransactionManager, resolver ModifierResolver, ids IDGenerator, clock Clock, log *slog.Logger) *OrderUsecase {
	return &OrderUsecase{tx: tx, resolver: resolver, ids: ids, clock: clock, log: log}
}

type PlaceOrderInput struct {
	TableNumber  string          `json:"table_number"`
	CustomerName string          `json:"customer_name"`
	Notes        string          `json:"notes"`
	TipAmount    decimal.Decimal `json:"tip_amount"`
	Lines        []CartLineInput `json:"lines"`
}

type UpdateOrderInput struct {
	Lines     []CartLineInput  `json:"lines"`
	TipAmount *decimal.Decimal `json:"tip_amount,omitempty"`
}

type MarkPaidInput struct {
	TipAmount *decimal.Decimal `json:"tip_amount,omitempty"`
}

type OrderItemOutput struct {
	ID           string                             `json:"id"`
	MenuItemID   string                             `json:"menu_item_id"`
	MenuItemName string                             `json:"menu_item_name"`
	Quantity     int64                              `json:"quantity"`
	PriceAtTime  decimal.Decimal                    `json:"price_at_time"`
	Notes        string                             `json:"notes"`
	Plate        int                                `json:"plate"`
	Modifiers    []model.OrderItemModifierSelection `json:"modifiers"`
	Status       string                             `json:"status"`
	CreatedAt    time.Time                          `json:"created_at"`
}

type OrderOutput struct {
	ID           string            `json:"id"`
	StoreID      string            `json:"store_id"`
	OrderNumber  int64             `json:"order_number"`
	TableNumber  string            `json:"table_number"`
	CustomerName string            `json:"customer_name"`
	Status       string            `json:"status"`
	Subtotal     decimal.Decimal   `json:"subtotal"`
	TipAmount    decimal.Decimal   `json:"tip_amount"`
	TotalAmount  decimal.Decimal   `json:"total_amount"`
	Notes        string            `json:"notes"`
	CreatedAt    time.Time         `json:"created_at"`
	Items        []OrderItemOutput `json:"items"`
}

// 編集で何件動いたか
type ReconcileSummary struct {
	Cancelled int `json:"cancelled"`
	Reduced   int `json:"reduced"`
	Inserted  int `json:"inserted"`
}

type UpdateOrderOutput struct {
	Order   OrderOutput      `json:"order"`
	Changes ReconcileSummary `json:"changes"`
}

// 会計前（paid/cancelled以外）の注文を一覧（厨房・POS共通）
var openOrderExclude = []model.OrderStatus{model.OrderStatusPaid, model.OrderStatusCancelled}

func (u *OrderUsecase) PlaceOrder(ctx context.Context, storeID string, in PlaceOrderInput) (OrderOutput, error) {
	if storeID == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid store id")
	}
	cart := NormalizeCart(in.Lines)
	if len(cart.Lines) == 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "cart empty")
	}
	for _, l := range cart.Lines {
		if l.Quantity <= 0 {
			return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
		}
	}
	if in.TipAmount.IsNegative() {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid tip_amount")
	}

	table := strings.TrimSpace(in.TableNumber)
	if table == "" {
		table = model.DefaultTableNumber
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		targets, menu, err := u.buildTargets(ctx, r, storeID, cart.Lines, nil)
		if err != nil {
			return err
		}

		now := u.clock.Now()
		plan := PlanReconciliation(nil, targets, now, u.ids)
		if err := checkInsertable(plan, menu); err != nil {
			return err
		}

		num, err := r.Orders().NextOrderNumber(ctx, storeID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "store not found")
		}
		if err != nil {
			return u.dbError("next order number", err, storeID, "")
		}

		order := model.Order{
			ID:           u.ids.NewID(),
			StoreID:      storeID,
			OrderNumber:  num,
			TableNumber:  table,
			CustomerName: strings.TrimSpace(in.CustomerName),
			Status:       model.OrderStatusQueue,
			TipAmount:    in.TipAmount,
			TotalAmount:  model.ActiveSubtotal(plan.Insert).Add(in.TipAmount),
			Notes:        strings.TrimSpace(in.Notes),
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := r.Orders().Create(ctx, order); err != nil {
			return u.dbError("create order", err, storeID, order.ID)
		}
		if err := r.OrderItems().CreateBulk(ctx, order.ID, plan.Insert); err != nil {
			return u.dbError("create order items", err, storeID, order.ID)
		}

		out = toOrderOutput(order, attachMenu(plan.Insert, menu))
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.log.Info("order placed", "store_id", storeID, "order_id", out.ID, "order_number", out.OrderNumber)
	return out, nil
}

// UpdateOrder は編集後のカートを保存済みの注文に差分反映する。
// 取消・数量減・追加は1トランザクションで行い、注文行をロックして同時編集を直列化する。
func (u *OrderUsecase) UpdateOrder(ctx context.Context, actor string, storeID string, orderID string, in UpdateOrderInput) (UpdateOrderOutput, error) {
	if orderID == "" {
		return UpdateOrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	for _, l := range in.Lines {
		if l.Quantity < 0 {
			return UpdateOrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
		}
	}
	if in.TipAmount != nil && in.TipAmount.IsNegative() {
		return UpdateOrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid tip_amount")
	}

	var out UpdateOrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, storeID, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return u.dbError("find order", err, storeID, orderID)
		}
		if o.Status.IsTerminal() {
			return NewHTTPError(http.StatusBadRequest, "cannot edit "+string(o.Status)+" order")
		}

		current, err := r.OrderItems().ListActiveByOrderID(ctx, orderID)
		if err != nil {
			return u.dbError("list order items", err, storeID, orderID)
		}

		targets, menu, err := u.buildTargets(ctx, r, storeID, in.Lines, current)
		if err != nil {
			return err
		}

		plan := PlanReconciliation(current, targets, u.clock.Now(), u.ids)
		if err := checkInsertable(plan, menu); err != nil {
			return err
		}

		if len(plan.Cancel) > 0 {
			if err := r.OrderItems().CancelBulk(ctx, plan.Cancel); err != nil {
				return u.dbError("cancel order items", err, storeID, orderID)
			}
		}
		if len(plan.Reduce) > 0 {
			if err := r.OrderItems().UpdateQuantities(ctx, plan.Reduce); err != nil {
				return u.dbError("reduce order items", err, storeID, orderID)
			}
		}
		if len(plan.Insert) > 0 {
			if err := r.OrderItems().CreateBulk(ctx, orderID, plan.Insert); err != nil {
				return u.dbError("insert order items", err, storeID, orderID)
			}
		}

		tip := o.TipAmount
		if in.TipAmount != nil {
			tip = *in.TipAmount
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return u.dbError("list order items", err, storeID, orderID)
		}

		//変更なしなら何も書かない
		if !plan.IsEmpty() || !tip.Equal(o.TipAmount) {
			before := o.TotalAmount
			o.TipAmount = tip
			o.TotalAmount = model.ActiveSubtotal(items).Add(tip)
			if err := r.Orders().UpdateAmounts(ctx, orderID, o.TotalAmount, o.TipAmount); err != nil {
				return u.dbError("update amounts", err, storeID, orderID)
			}

			if err := r.AuditLogs().Create(ctx, model.AuditLog{
				StoreID:      storeID,
				Actor:        actor,
				Action:       model.AuditActionReconcileOrder,
				ResourceType: model.AuditResourceOrder,
				ResourceID:   orderID,
				BeforeJSON:   mustJSON(map[string]interface{}{"total_amount": before, "items": len(current)}),
				AfterJSON: mustJSON(map[string]interface{}{
					"total_amount": o.TotalAmount,
					"cancelled":    plan.Cancel,
					"reduced":      plan.Reduce,
					"inserted":     len(plan.Insert),
				}),
				CreatedAt: u.clock.Now(),
			}); err != nil {
				return u.dbError("audit log", err, storeID, orderID)
			}
		}

		out = UpdateOrderOutput{
			Order: toOrderOutput(o, items),
			Changes: ReconcileSummary{
				Cancelled: len(plan.Cancel),
				Reduced:   len(plan.Reduce),
				Inserted:  len(plan.Insert),
			},
		}
		return nil
	})
	if err != nil {
		return UpdateOrderOutput{}, err
	}

	u.log.Info("order reconciled",
		"store_id", storeID, "order_id", orderID,
		"cancelled", out.Changes.Cancelled, "reduced", out.Changes.Reduced, "inserted", out.Changes.Inserted)
	return out, nil
}

func (u *OrderUsecase) GetOrder(ctx context.Context, storeID string, orderID string) (OrderOutput, error) {
	if orderID == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, storeID, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return u.dbError("find order", err, storeID, orderID)
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return u.dbError("list order items", err, storeID, orderID)
		}

		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// EditableCart は保存済み注文を編集用のカートに戻す
func (u *OrderUsecase) EditableCart(ctx context.Context, storeID string, orderID string) (Cart, error) {
	var cart Cart

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Orders().FindByID(ctx, storeID, orderID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return u.dbError("find order", err, storeID, orderID)
		}
		items, err := r.OrderItems().ListActiveByOrderID(ctx, orderID)
		if err != nil {
			return u.dbError("list order items", err, storeID, orderID)
		}
		cart = CartFromItems(items)
		return nil
	})
	if err != nil {
		return Cart{}, err
	}
	return cart, nil
}

// ListActiveOrders は会計前の注文を明細つきで作成順に返す。
// 何度呼んでも同じ結果（リアルタイム通知後の再取得用）
func (u *OrderUsecase) ListActiveOrders(ctx context.Context, storeID string) ([]model.Order, error) {
	var orders []model.Order

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		orders, err = r.Orders().List(ctx, repo.OrderListFilter{
			StoreID:         storeID,
			ExcludeStatuses: openOrderExclude,
			WithItems:       true,
		})
		if err != nil {
			return u.dbError("list orders", err, storeID, "")
		}
		return nil
	})
	if err != nil {
		return []model.Order{}, err
	}
	return orders, nil
}

func (u *OrderUsecase) ListActive(ctx context.Context, storeID string) ([]OrderOutput, error) {
	orders, err := u.ListActiveOrders(ctx, storeID)
	if err != nil {
		return []OrderOutput{}, err
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		outs = append(outs, toOrderOutput(o, o.Items))
	}
	return outs, nil
}

// UpdateStatus は厨房・POSからのステータス変更。paidへの変更は会計として扱う
func (u *OrderUsecase) UpdateStatus(ctx context.Context, actor string, storeID string, orderID string, status string) (OrderOutput, error) {
	if orderID == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	newStatus, ok := model.ParseOrderStatus(strings.TrimSpace(status))
	if !ok {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	if newStatus == model.OrderStatusPaid {
		return u.MarkPaid(ctx, actor, storeID, orderID, MarkPaidInput{})
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, storeID, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return u.dbError("find order", err, storeID, orderID)
		}

		// すでに同じなら何もしない
		if o.Status != newStatus {
			if !o.Status.CanTransition(newStatus) {
				return NewHTTPError(http.StatusBadRequest,
					fmt.Sprintf("cannot change %s order to %s", o.Status, newStatus))
			}

			before := o.Status
			if err := r.Orders().UpdateStatus(ctx, orderID, newStatus); err != nil {
				return u.dbError("update status", err, storeID, orderID)
			}
			o.Status = newStatus

			if err := u.auditStatus(ctx, r, actor, storeID, orderID, before, newStatus); err != nil {
				return err
			}
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return u.dbError("list order items", err, storeID, orderID)
		}
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// MarkPaid は合計（有効明細＋チップ）をこの時点で確定してpaidにする。
// すでにpaidなら何もしない（決済端末のポーリングと手動会計が重なっても良い）。
func (u *OrderUsecase) MarkPaid(ctx context.Context, actor string, storeID string, orderID string, in MarkPaidInput) (OrderOutput, error) {
	if orderID == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if in.TipAmount != nil && in.TipAmount.IsNegative() {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid tip_amount")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, storeID, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return u.dbError("find order", err, storeID, orderID)
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return u.dbError("list order items", err, storeID, orderID)
		}

		if o.Status == model.OrderStatusPaid {
			out = toOrderOutput(o, items)
			return nil
		}
		if !o.Status.CanTransition(model.OrderStatusPaid) {
			return NewHTTPError(http.StatusBadRequest, "cannot pay "+string(o.Status)+" order")
		}

		if in.TipAmount != nil {
			o.TipAmount = *in.TipAmount
		}
		o.TotalAmount = model.ActiveSubtotal(items).Add(o.TipAmount)
		if err := r.Orders().UpdateAmounts(ctx, orderID, o.TotalAmount, o.TipAmount); err != nil {
			return u.dbError("update amounts", err, storeID, orderID)
		}

		before := o.Status
		if err := r.Orders().UpdateStatus(ctx, orderID, model.OrderStatusPaid); err != nil {
			return u.dbError("update status", err, storeID, orderID)
		}
		o.Status = model.OrderStatusPaid

		if err := u.auditStatus(ctx, r, actor, storeID, orderID, before, model.OrderStatusPaid); err != nil {
			return err
		}

		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.log.Info("order paid", "store_id", storeID, "order_id", orderID, "total_amount", out.TotalAmount.StringFixed(2))
	return out, nil
}

func (u *OrderUsecase) auditStatus(ctx context.Context, r repo.TxRepos, actor, storeID, orderID string, before, after model.OrderStatus) error {
	err := r.AuditLogs().Create(ctx, model.AuditLog{
		StoreID:      storeID,
		Actor:        actor,
		Action:       model.AuditActionUpdateOrderStatus,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   orderID,
		BeforeJSON:   mustJSON(map[string]string{"status": string(before)}),
		AfterJSON:    mustJSON(map[string]string{"status": string(after)}),
		CreatedAt:    u.clock.Now(),
	})
	if err != nil {
		return u.dbError("audit log", err, storeID, orderID)
	}
	return nil
}

// buildTargets はカートを編集後の行にする。
// 保存済みの行で数量が足りる行はスナップショットのまま使い、カタログとは照合しない。
// 追加が出る行だけ現在のカタログで検証して価格を再計算する。
func (u *OrderUsecase) buildTargets(ctx context.Context, r repo.TxRepos, storeID string, lines []CartLineInput, current []model.OrderItem) ([]TargetLine, map[string]model.MenuItem, error) {
	held := make(map[LineKey][]model.OrderItem)
	for _, it := range current {
		if it.Status != model.OrderItemStatusActive {
			continue
		}
		k := KeyOfItem(it)
		held[k] = append(held[k], it)
	}

	cart := NormalizeCart(lines)
	targets := make([]TargetLine, 0, len(cart.Lines))
	var pending []CartLineInput
	var ids []string
	for _, l := range cart.Lines {
		if strings.TrimSpace(l.MenuItemID) == "" {
			return nil, nil, NewHTTPError(http.StatusBadRequest, "invalid menu_item_id")
		}

		rows := held[l.key()]
		if l.Quantity <= totalQuantity(rows) {
			if len(rows) > 0 {
				targets = append(targets, snapshotTarget(l, rows[len(rows)-1]))
			}
			continue
		}

		pending = append(pending, l)
		if !slices.Contains(ids, l.MenuItemID) {
			ids = append(ids, l.MenuItemID)
		}
	}

	menu := make(map[string]model.MenuItem, len(ids))
	if len(pending) == 0 {
		return targets, menu, nil
	}

	items, err := r.MenuItems().FindByIDs(ctx, storeID, ids)
	if err != nil {
		return nil, nil, u.dbError("find menu items", err, storeID, "")
	}
	for _, m := range items {
		menu[m.ID] = m
	}

	for _, l := range pending {
		m, ok := menu[l.MenuItemID]
		if !ok {
			return nil, nil, NewHTTPError(http.StatusBadRequest, "unknown menu item")
		}

		mods, err := u.resolver.ResolveModifiers(m, l.Modifiers)
		if err != nil {
			return nil, nil, NewHTTPError(http.StatusBadRequest, err.Error())
		}

		targets = append(targets, TargetLine{
			MenuItemID: l.MenuItemID,
			Plate:      l.Plate,
			Notes:      l.Notes,
			Modifiers:  mods,
			Quantity:   l.Quantity,
			UnitPrice:  m.Price.Add(model.ModifiersDelta(mods)),
		})
	}
	return targets, menu, nil
}

// 据え置き・削減だけの行。修飾と単価は保存済みの行のまま
func snapshotTarget(l CartLineInput, it model.OrderItem) TargetLine {
	return TargetLine{
		MenuItemID: l.MenuItemID,
		Plate:      l.Plate,
		Notes:      l.Notes,
		Modifiers:  []model.OrderItemModifierSelection(it.Modifiers),
		Quantity:   l.Quantity,
		UnitPrice:  it.PriceAtTime,
	}
}

// 販売停止のメニューは新しく追加できない（既存行の据え置き・削減は可）
func checkInsertable(plan ReconcilePlan, menu map[string]model.MenuItem) error {
	for _, it := range plan.Insert {
		if m, ok := menu[it.MenuItemID]; !ok || !m.Available {
			return NewHTTPError(http.StatusBadRequest, "menu item unavailable")
		}
	}
	return nil
}

func attachMenu(items []model.OrderItem, menu map[string]model.MenuItem) []model.OrderItem {
	out := make([]model.OrderItem, len(items))
	for i, it := range items {
		if m, ok := menu[it.MenuItemID]; ok {
			m := m
			it.MenuItem = &m
		}
		out[i] = it
	}
	return out
}

func (u *OrderUsecase) dbError(op string, err error, storeID string, orderID string) error {
	u.log.Error("db error", "op", op, "store_id", storeID, "order_id", orderID, "err", err)
	return NewHTTPError(http.StatusInternalServerError, "db error")
}

func toOrderItemOutput(it model.OrderItem) OrderItemOutput {
	mods := []model.OrderItemModifierSelection(it.Modifiers)
	if mods == nil {
		mods = []model.OrderItemModifierSelection{}
	}
	return OrderItemOutput{
		ID:           it.ID,
		MenuItemID:   it.MenuItemID,
		MenuItemName: it.MenuItemName(),
		Quantity:     it.Quantity,
		PriceAtTime:  it.PriceAtTime,
		Notes:        model.UserNotes(it.Notes),
		Plate:        it.Plate(),
		Modifiers:    mods,
		Status:       string(it.Status),
		CreatedAt:    it.CreatedAt,
	}
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, toOrderItemOutput(it))
	}

	return OrderOutput{
		ID:           o.ID,
		StoreID:      o.StoreID,
		OrderNumber:  o.OrderNumber,
		TableNumber:  o.TableNumber,
		CustomerName: o.CustomerName,
		Status:       string(o.Status),
		Subtotal:     model.ActiveSubtotal(items),
		TipAmount:    o.TipAmount,
		TotalAmount:  o.TotalAmount,
		Notes:        o.Notes,
		CreatedAt:    o.CreatedAt,
		Items:        outItems,
	}
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
