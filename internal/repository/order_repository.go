package repository

import (
	"context"
	"time"

	"comanda/internal/domain/model"

	"github.com/shopspring/decimal"
)

type OrderListFilter struct {
	StoreID         string
	Statuses        []model.OrderStatus
	ExcludeStatuses []model.OrderStatus
	//[From, To)
	From *time.Time
	To   *time.Time
	//明細とメニュー名も読む
	WithItems bool
}

type OrderRepository interface {
	FindByID(ctx context.Context, storeID string, orderID string) (model.Order, error)
	//編集中の同時更新を防ぐため行ロックを取る（トランザクション内で使う）
	FindByIDForUpdate(ctx context.Context, storeID string, orderID string) (model.Order, error)
	//作成日時の昇順
	List(ctx context.Context, f OrderListFilter) ([]model.Order, error)

	//店舗内の連番
	NextOrderNumber(ctx context.Context, storeID string) (int64, error)
	Create(ctx context.Context, order model.Order) error
	UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) error
	UpdateAmounts(ctx context.Context, orderID string, total decimal.Decimal, tip decimal.Decimal) error
}
