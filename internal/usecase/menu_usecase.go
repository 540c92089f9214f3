package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"comanda/internal/domain/model"
	repo "comanda/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type UpsertMenuItemInput struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Description    string                `json:"description"`
	Price          decimal.Decimal       `json:"price"`
	Category       string                `json:"category"`
	Available      *bool                 `json:"available"`
	ImageURL       string                `json:"image_url"`
	ModifierGroups []model.ModifierGroup `json:"modifier_groups"`
}

type MenuUsecase struct {
	tx        repo.TransactionManager
	validator MenuValidator
	ids       IDGenerator
	clock     Clock
	log       *slog.Logger
}

func NewMenuUsecase(tx repo.TransactionManager, validator MenuValidator, ids IDGenerator, clock Clock, log *slog.Logger) *MenuUsecase {
	return &MenuUsecase{tx: tx, validator: validator, ids: ids, clock: clock, log: log}
}

// POS用（販売中のみ）
func (u *MenuUsecase) ListAvailable(ctx context.Context, storeID string) ([]model.MenuItem, error) {
	return u.list(ctx, storeID, true)
}

// 管理画面用（販売停止も含む）
func (u *MenuUsecase) ListAll(ctx context.Context, storeID string) ([]model.MenuItem, error) {
	return u.list(ctx, storeID, false)
}

func (u *MenuUsecase) list(ctx context.Context, storeID string, onlyAvailable bool) ([]model.MenuItem, error) {
	var items []model.MenuItem
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		items, err = r.MenuItems().ListByStore(ctx, storeID, onlyAvailable)
		if err != nil {
			u.log.Error("db error", "op", "list menu", "store_id", storeID, "err", err)
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return []model.MenuItem{}, err
	}
	return items, nil
}

// Upsert はIDが空なら新規作成、あれば更新する。
// 新しいグループ・オプションにはここでIDを振る。
func (u *MenuUsecase) Upsert(ctx context.Context, actor string, storeID string, in UpsertMenuItemInput) (model.MenuItem, error) {
	item := model.MenuItem{
		ID:             strings.TrimSpace(in.ID),
		StoreID:        storeID,
		Name:           strings.TrimSpace(in.Name),
		Description:    strings.TrimSpace(in.Description),
		Price:          in.Price,
		Category:       strings.TrimSpace(in.Category),
		Available:      true,
		ImageURL:       strings.TrimSpace(in.ImageURL),
		ModifierGroups: datatypes.NewJSONSlice(u.assignModifierIDs(in.ModifierGroups)),
	}
	if in.Available != nil {
		item.Available = *in.Available
	}

	if err := u.validator.ValidateMenuItem(item); err != nil {
		return model.MenuItem{}, NewHTTPError(http.StatusBadRequest, err.Error())
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before := "{}"
		now := u.clock.Now()

		if item.ID == "" {
			item.ID = u.ids.NewID()
			item.CreatedAt = now
		} else {
			cur, err := r.MenuItems().FindByID(ctx, storeID, item.ID)
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "menu item not found")
			}
			if err != nil {
				u.log.Error("db error", "op", "find menu item", "store_id", storeID, "menu_item_id", item.ID, "err", err)
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			before = mustJSON(cur)
			item.CreatedAt = cur.CreatedAt
		}
		item.UpdatedAt = now

		if err := r.MenuItems().Save(ctx, item); err != nil {
			u.log.Error("db error", "op", "save menu item", "store_id", storeID, "menu_item_id", item.ID, "err", err)
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		return r.AuditLogs().Create(ctx, model.AuditLog{
			StoreID:      storeID,
			Actor:        actor,
			Action:       model.AuditActionUpsertMenuItem,
			ResourceType: model.AuditResourceMenuItem,
			ResourceID:   item.ID,
			BeforeJSON:   before,
			AfterJSON:    mustJSON(item),
			CreatedAt:    now,
		})
	})
	if err != nil {
		if _, ok := AsHTTPError(err); ok {
			return model.MenuItem{}, err
		}
		u.log.Error("db error", "op", "audit menu item", "store_id", storeID, "err", err)
		return model.MenuItem{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	u.log.Info("menu item saved", "store_id", storeID, "menu_item_id", item.ID)
	return item, nil
}

// Disable は論理削除（注文履歴から参照されるので行は消さない）
func (u *MenuUsecase) Disable(ctx context.Context, actor string, storeID string, id string) error {
	if strings.TrimSpace(id) == "" {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		err := r.MenuItems().SetAvailable(ctx, storeID, id, false)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "menu item not found")
		}
		if err != nil {
			u.log.Error("db error", "op", "disable menu item", "store_id", storeID, "menu_item_id", id, "err", err)
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			StoreID:      storeID,
			Actor:        actor,
			Action:       model.AuditActionDisableMenuItem,
			ResourceType: model.AuditResourceMenuItem,
			ResourceID:   id,
			BeforeJSON:   `{"available":true}`,
			AfterJSON:    `{"available":false}`,
			CreatedAt:    u.clock.Now(),
		}); err != nil {
			u.log.Error("db error", "op", "audit menu item", "store_id", storeID, "err", err)
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
}

func (u *MenuUsecase) assignModifierIDs(groups []model.ModifierGroup) []model.ModifierGroup {
	out := make([]model.ModifierGroup, len(groups))
	for i, g := range groups {
		g.Name = strings.TrimSpace(g.Name)
		if strings.TrimSpace(g.ID) == "" {
			g.ID = u.ids.NewID()
		}
		opts := make([]model.ModifierOption, len(g.Options))
		for j, o := range g.Options {
			o.Name = strings.TrimSpace(o.Name)
			if strings.TrimSpace(o.ID) == "" {
				o.ID = u.ids.NewID()
			}
			opts[j] = o
		}
		g.Options = opts
		out[i] = g
	}
	return out
}
