package usecase

import (
	"context"
	"net/http"
	"sort"
	"time"

	"comanda/internal/domain/model"
)

// 注文作成からこれより後に入った明細は「追加」として目立たせる
const NewItemThreshold = 2000 * time.Millisecond

type PlateGroup struct {
	Plate int               `json:"plate"`
	Items []OrderItemOutput `json:"items"`
}

type KitchenTicket struct {
	New       []PlateGroup `json:"new"`
	Prepared  []PlateGroup `json:"prepared"`
	Cancelled []PlateGroup `json:"cancelled"`
}

// BucketItems は明細を 追加分 / 最初からの分 / 取消分 に分けて皿番号ごとにまとめる。
// 皿番号は昇順、皿内は元の並び順。
func BucketItems(orderCreatedAt time.Time, items []model.OrderItem) KitchenTicket {
	var fresh, prepared, cancelled []model.OrderItem
	for _, it := range items {
		switch {
		case it.Status == model.OrderItemStatusCancelled:
			cancelled = append(cancelled, it)
		case it.CreatedAt.Sub(orderCreatedAt) > NewItemThreshold:
			fresh = append(fresh, it)
		default:
			prepared = append(prepared, it)
		}
	}

	return KitchenTicket{
		New:       groupByPlate(fresh),
		Prepared:  groupByPlate(prepared),
		Cancelled: groupByPlate(cancelled),
	}
}

func groupByPlate(items []model.OrderItem) []PlateGroup {
	byPlate := make(map[int][]OrderItemOutput)
	for _, it := range items {
		p := it.Plate()
		byPlate[p] = append(byPlate[p], toOrderItemOutput(it))
	}

	out := make([]PlateGroup, 0, len(byPlate))
	for p, its := range byPlate {
		out = append(out, PlateGroup{Plate: p, Items: its})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Plate < out[j].Plate })
	return out
}

type KitchenOrder struct {
	ID           string        `json:"id"`
	OrderNumber  int64         `json:"order_number"`
	TableNumber  string        `json:"table_number"`
	CustomerName string        `json:"customer_name"`
	Status       string        `json:"status"`
	Notes        string        `json:"notes"`
	CreatedAt    time.Time     `json:"created_at"`
	Ticket       KitchenTicket `json:"ticket"`
}

// 厨房ボードの3列
type KitchenBoard struct {
	Queue     []KitchenOrder `json:"queue"`
	Preparing []KitchenOrder `json:"preparing"`
	Ready     []KitchenOrder `json:"ready"`
}

// 会計前の注文（明細つき）を読む約束。OrderUsecaseをそのまま渡す
type ActiveOrderLister interface {
	ListActiveOrders(ctx context.Context, storeID string) ([]model.Order, error)
}

// 厨房からのステータス変更の約束
type OrderStatusUpdater interface {
	UpdateStatus(ctx context.Context, actor string, storeID string, orderID string, status string) (OrderOutput, error)
	GetOrder(ctx context.Context, storeID string, orderID string) (OrderOutput, error)
}

type KitchenAction string

const (
	KitchenActionStart  KitchenAction = "start"
	KitchenActionReady  KitchenAction = "ready"
	KitchenActionServed KitchenAction = "served"
	KitchenActionCancel KitchenAction = "cancel"
)

var kitchenActionStatus = map[KitchenAction]model.OrderStatus{
	KitchenActionStart:  model.OrderStatusPreparing,
	KitchenActionReady:  model.OrderStatusReady,
	KitchenActionServed: model.OrderStatusServed,
	KitchenActionCancel: model.OrderStatusCancelled,
}

type KitchenUsecase struct {
	orders  ActiveOrderLister
	updater OrderStatusUpdater
}

func NewKitchenUsecase(orders ActiveOrderLister, updater OrderStatusUpdater) *KitchenUsecase {
	return &KitchenUsecase{orders: orders, updater: updater}
}

func (u *KitchenUsecase) Board(ctx context.Context, storeID string) (KitchenBoard, error) {
	orders, err := u.orders.ListActiveOrders(ctx, storeID)
	if err != nil {
		return KitchenBoard{}, err
	}

	board := KitchenBoard{
		Queue:     []KitchenOrder{},
		Preparing: []KitchenOrder{},
		Ready:     []KitchenOrder{},
	}
	for _, o := range orders {
		ko := KitchenOrder{
			ID:           o.ID,
			OrderNumber:  o.OrderNumber,
			TableNumber:  o.TableNumber,
			CustomerName: o.CustomerName,
			Status:       string(o.Status),
			Notes:        o.Notes,
			CreatedAt:    o.CreatedAt,
			Ticket:       BucketItems(o.CreatedAt, o.Items),
		}
		switch o.Status {
		case model.OrderStatusQueue:
			board.Queue = append(board.Queue, ko)
		case model.OrderStatusPreparing:
			board.Preparing = append(board.Preparing, ko)
		case model.OrderStatusReady:
			board.Ready = append(board.Ready, ko)
		}
	}
	return board, nil
}

// Act は厨房ボードのボタン操作。readyの注文は厨房からは取消できない
func (u *KitchenUsecase) Act(ctx context.Context, actor string, storeID string, orderID string, action string) (OrderOutput, error) {
	status, ok := kitchenActionStatus[KitchenAction(action)]
	if !ok {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid action")
	}

	if status == model.OrderStatusCancelled {
		o, err := u.updater.GetOrder(ctx, storeID, orderID)
		if err != nil {
			return OrderOutput{}, err
		}
		if o.Status == string(model.OrderStatusReady) {
			return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "cannot cancel ready order")
		}
	}

	return u.updater.UpdateStatus(ctx, actor, storeID, orderID, string(status))
}
