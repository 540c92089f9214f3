package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"comanda/internal/domain/model"
	repo "comanda/internal/repository"
)

type StoreOutput struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateStoreInput struct {
	Name string `json:"name"`
}

type StoreUsecase struct {
	stores repo.StoreRepository
	ids    IDGenerator
	clock  Clock
	log    *slog.Logger
}

func NewStoreUsecase(stores repo.StoreRepository, ids IDGenerator, clock Clock, log *slog.Logger) *StoreUsecase {
	return &StoreUsecase{stores: stores, ids: ids, clock: clock, log: log}
}

// 新しい順
func (u *StoreUsecase) List(ctx context.Context) ([]StoreOutput, error) {
	stores, err := u.stores.List(ctx)
	if err != nil {
		u.log.Error("db error", "op", "list stores", "err", err)
		return []StoreOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	outs := make([]StoreOutput, 0, len(stores))
	for _, s := range stores {
		outs = append(outs, toStoreOutput(s))
	}
	return outs, nil
}

func (u *StoreUsecase) Get(ctx context.Context, id string) (StoreOutput, error) {
	if strings.TrimSpace(id) == "" {
		return StoreOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, err := u.stores.FindByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return StoreOutput{}, NewHTTPError(http.StatusNotFound, "store not found")
	}
	if err != nil {
		u.log.Error("db error", "op", "find store", "store_id", id, "err", err)
		return StoreOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return toStoreOutput(s), nil
}

func (u *StoreUsecase) Create(ctx context.Context, in CreateStoreInput) (StoreOutput, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return StoreOutput{}, NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if len(name) > 255 {
		return StoreOutput{}, NewHTTPError(http.StatusBadRequest, "name too long")
	}

	s := model.Store{
		ID:        u.ids.NewID(),
		Name:      name,
		CreatedAt: u.clock.Now(),
	}
	if err := u.stores.Create(ctx, s); err != nil {
		u.log.Error("db error", "op", "create store", "err", err)
		return StoreOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	u.log.Info("store created", "store_id", s.ID)
	return toStoreOutput(s), nil
}

func toStoreOutput(s model.Store) StoreOutput {
	return StoreOutput{ID: s.ID, Name: s.Name, CreatedAt: s.CreatedAt}
}
