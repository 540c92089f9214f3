package usecase

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"comanda/internal/domain/model"
	repo "comanda/internal/repository"
)

type AuditLogQuery struct {
	Action       string
	ResourceType string
	ResourceID   string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

type AuditUsecase struct {
	tx  repo.TransactionManager
	log *slog.Logger
}

func NewAuditUsecase(tx repo.TransactionManager, log *slog.Logger) *AuditUsecase {
	return &AuditUsecase{tx: tx, log: log}
}

// 新しい順。limitは1〜200
func (u *AuditUsecase) List(ctx context.Context, storeID string, q AuditLogQuery) ([]model.AuditLog, error) {
	if q.Limit < 0 || q.Limit > 200 {
		return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if q.Offset < 0 {
		return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid offset")
	}

	f := repo.AuditLogFilter{
		StoreID:     storeID,
		CreatedFrom: q.From,
		CreatedTo:   q.To,
		Limit:       q.Limit,
		Offset:      q.Offset,
	}
	if a := strings.TrimSpace(q.Action); a != "" {
		action := model.AuditAction(strings.ToUpper(a))
		f.Action = &action
	}
	if rt := strings.TrimSpace(q.ResourceType); rt != "" {
		t := model.AuditResourceType(strings.ToLower(rt))
		f.ResourceType = &t
	}
	if id := strings.TrimSpace(q.ResourceID); id != "" {
		f.ResourceID = &id
	}

	var logs []model.AuditLog
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		logs, err = r.AuditLogs().List(ctx, f)
		if err != nil {
			u.log.Error("db error", "op", "list audit logs", "store_id", storeID, "err", err)
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return []model.AuditLog{}, err
	}
	return logs, nil
}
