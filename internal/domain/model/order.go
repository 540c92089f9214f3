package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusQueue     OrderStatus = "queue"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusServed    OrderStatus = "served"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

const DefaultTableNumber = "Counter"

// queue→preparing→ready→served→paid の一本道
var nextStatus = map[OrderStatus]OrderStatus{
	OrderStatusQueue:     OrderStatusPreparing,
	OrderStatusPreparing: OrderStatusReady,
	OrderStatusReady:     OrderStatusServed,
	OrderStatusServed:    OrderStatusPaid,
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderStatusQueue, OrderStatusPreparing, OrderStatusReady,
		OrderStatusServed, OrderStatusPaid, OrderStatusCancelled:
		return st, true
	}
	return "", false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled
}

// CanTransition は次の段階、会計（paid）、取消（cancelled）のみ許可する。
// paid/cancelledからはどこにも行けない。
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if to == OrderStatusCancelled || to == OrderStatusPaid {
		return true
	}
	return nextStatus[s] == to
}

type Order struct {
	ID           string          `gorm:"type:uuid;primaryKey" json:"id"`
	StoreID      string          `gorm:"type:uuid;not null;index;uniqueIndex:idx_orders_store_number" json:"store_id"`
	OrderNumber  int64           `gorm:"not null;uniqueIndex:idx_orders_store_number" json:"order_number"`
	TableNumber  string          `gorm:"type:varchar(50);not null" json:"table_number"`
	CustomerName string          `gorm:"type:varchar(255)" json:"customer_name"`
	Status       OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	TotalAmount  decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total_amount"`
	TipAmount    decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"tip_amount"`
	Notes        string          `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time       `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
	Items        []OrderItem     `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// 有効明細の小計（チップ抜き）
func (o Order) Subtotal() decimal.Decimal {
	return ActiveSubtotal(o.Items)
}

func ActiveSubtotal(items []OrderItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		if it.Status != OrderItemStatusActive {
			continue
		}
		sum = sum.Add(it.LineTotal())
	}
	return sum
}
