package repository

import (
	"context"

	"comanda/internal/domain/model"
)

// 数量だけを減らす更新
type QuantityChange struct {
	ItemID   string
	Quantity int64
}

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID string, items []model.OrderItem) error
	//全ステータス、作成日時の昇順
	ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error)
	//status=activeのみ
	ListActiveByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error)

	//行は消さずにstatus=cancelledにする
	CancelBulk(ctx context.Context, itemIDs []string) error
	UpdateQuantities(ctx context.Context, changes []QuantityChange) error
}
