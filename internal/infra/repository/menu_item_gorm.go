package repository

import (
	"context"
	"errors"

	"comanda/internal/domain/model"
	repo "comanda/internal/repository"

	"gorm.io/gorm"
)

type MenuItemGormRepository struct {
	db *gorm.DB
}

func NewMenuItemGormRepository(db *gorm.DB) *MenuItemGormRepository {
	return &MenuItemGormRepository{db: db}
}

func (r *MenuItemGormRepository) ListByStore(ctx context.Context, storeID string, onlyAvailable bool) ([]model.MenuItem, error) {
	q := r.db.WithContext(ctx).Where("store_id = ?", storeID)
	if onlyAvailable {
		q = q.Where("available = ?", true)
	}

	var items []model.MenuItem
	if err := q.Order("category asc, name asc").Find(&items).Error; err != nil {
		return []model.MenuItem{}, err
	}
	return items, nil
}

func (r *MenuItemGormRepository) FindByID(ctx context.Context, storeID string, id string) (model.MenuItem, error) {
	var m model.MenuItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND store_id = ?", id, storeID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.MenuItem{}, repo.ErrNotFound
	}
	if err != nil {
		return model.MenuItem{}, err
	}
	return m, nil
}

func (r *MenuItemGormRepository) FindByIDs(ctx context.Context, storeID string, ids []string) ([]model.MenuItem, error) {
	if len(ids) == 0 {
		return []model.MenuItem{}, nil
	}
	var items []model.MenuItem
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND id IN ?", storeID, ids).
		Find(&items).Error
	if err != nil {
		return []model.MenuItem{}, err
	}
	return items, nil
}

func (r *MenuItemGormRepository) Save(ctx context.Context, item model.MenuItem) error {
	return r.db.WithContext(ctx).Save(&item).Error
}

func (r *MenuItemGormRepository) SetAvailable(ctx context.Context, storeID string, id string, available bool) error {
	res := r.db.WithContext(ctx).Model(&model.MenuItem{}).
		Where("id = ? AND store_id = ?", id, storeID).
		Update("available", available)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
