package repository

import (
	"context"

	"comanda/internal/domain/model"
)

type StoreRepository interface {
	//新しい順
	List(ctx context.Context) ([]model.Store, error)
	FindByID(ctx context.Context, id string) (model.Store, error)
	Create(ctx context.Context, s model.Store) error
}
