package repository

import (
	"context"

	"comanda/internal/domain/model"
)

// メニューの永続化（保存・取得）だけを約束。
type MenuItemRepository interface {
	//カテゴリ昇順。onlyAvailableならavailable=trueのみ
	ListByStore(ctx context.Context, storeID string, onlyAvailable bool) ([]model.MenuItem, error)
	FindByID(ctx context.Context, storeID string, id string) (model.MenuItem, error)
	FindByIDs(ctx context.Context, storeID string, ids []string) ([]model.MenuItem, error)

	//IDが既存なら更新、無ければ作成
	Save(ctx context.Context, item model.MenuItem) error
	//論理削除（available=false）
	SetAvailable(ctx context.Context, storeID string, id string, available bool) error
}
