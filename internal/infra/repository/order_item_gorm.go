package repository

import (
	"context"

	"comanda/internal/domain/model"
	repo "comanda/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderItemGormRepository struct {
	db *gorm.DB
}

func NewOrderItemGormRepository(db *gorm.DB) *OrderItemGormRepository {
	return &OrderItemGormRepository{db: db}
}

func (r *OrderItemGormRepository) CreateBulk(ctx context.Context, orderID string, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].OrderID = orderID
		//メニュー本体は書き込まない
		items[i].MenuItem = nil
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(&items).Error
}

func (r *OrderItemGormRepository) ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	var items []model.OrderItem
	err := r.db.WithContext(ctx).
		Preload("MenuItem").
		Where("order_id = ?", orderID).
		Order("created_at asc, id asc").
		Find(&items).Error
	if err != nil {
		return []model.OrderItem{}, err
	}
	return items, nil
}

func (r *OrderItemGormRepository) ListActiveByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	var items []model.OrderItem
	err := r.db.WithContext(ctx).
		Preload("MenuItem").
		Where("order_id = ? AND status = ?", orderID, model.OrderItemStatusActive).
		Order("created_at asc, id asc").
		Find(&items).Error
	if err != nil {
		return []model.OrderItem{}, err
	}
	return items, nil
}

func (r *OrderItemGormRepository) CancelBulk(ctx context.Context, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&model.OrderItem{}).
		Where("id IN ? AND status = ?", itemIDs, model.OrderItemStatusActive).
		Update("status", model.OrderItemStatusCancelled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != int64(len(itemIDs)) {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderItemGormRepository) UpdateQuantities(ctx context.Context, changes []repo.QuantityChange) error {
	for _, ch := range changes {
		res := r.db.WithContext(ctx).Model(&model.OrderItem{}).
			Where("id = ? AND status = ?", ch.ItemID, model.OrderItemStatusActive).
			Update("quantity", ch.Quantity)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repo.ErrNotFound
		}
	}
	return nil
}
