package usecase

import (
	"sort"
	"strings"
	"time"

	"comanda/internal/domain/model"
	repo "comanda/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// LineKey が同じ明細は同じ「論理行」として数量を合算する。
// メモは前後の空白だけ落として完全一致で比べる。
type LineKey struct {
	MenuItemID string
	Plate      int
	Notes      string
	Modifiers  string
}

func KeyOfItem(it model.OrderItem) LineKey {
	return LineKey{
		MenuItemID: it.MenuItemID,
		Plate:      model.PlateNumber(it.Notes),
		Notes:      strings.TrimSpace(model.UserNotes(it.Notes)),
		Modifiers:  CanonicalModifiers(it.Modifiers),
	}
}

// 編集後カートの1行（価格は現在のカタログから再計算済み）
type TargetLine struct {
	MenuItemID string
	Plate      int
	Notes      string
	Modifiers  []model.OrderItemModifierSelection
	Quantity   int64
	UnitPrice  decimal.Decimal
}

func (t TargetLine) Key() LineKey {
	return LineKey{
		MenuItemID: t.MenuItemID,
		Plate:      normalizePlate(t.Plate),
		Notes:      strings.TrimSpace(t.Notes),
		Modifiers:  CanonicalModifiers(t.Modifiers),
	}
}

// 反映は Cancel → Reduce → Insert の順
type ReconcilePlan struct {
	Cancel []string
	Reduce []repo.QuantityChange
	Insert []model.OrderItem
}

func (p ReconcilePlan) IsEmpty() bool {
	return len(p.Cancel) == 0 && len(p.Reduce) == 0 && len(p.Insert) == 0
}

// PlanReconciliation は保存済みの有効明細を target に合わせるための最小の変更を計算する。
// 数量が変わらない行には触らない（厨房の進捗を崩さない）。
// 減らすときは新しい行から取消し、残りが行の数量より小さくなった行だけ数量を減らす。
func PlanReconciliation(current []model.OrderItem, target []TargetLine, now time.Time, ids IDGenerator) ReconcilePlan {
	groups := make(map[LineKey][]model.OrderItem)
	var seen []LineKey
	for _, it := range current {
		if it.Status != model.OrderItemStatusActive {
			continue
		}
		k := KeyOfItem(it)
		if _, ok := groups[k]; !ok {
			seen = append(seen, k)
		}
		groups[k] = append(groups[k], it)
	}

	var plan ReconcilePlan
	for _, line := range mergeTargetLines(target) {
		k := line.Key()
		rows := groups[k]
		delete(groups, k)

		diff := line.Quantity - totalQuantity(rows)
		switch {
		case diff > 0:
			plan.Insert = append(plan.Insert, model.OrderItem{
				ID:          ids.NewID(),
				MenuItemID:  line.MenuItemID,
				Quantity:    diff,
				PriceAtTime: line.UnitPrice,
				Notes:       model.ComposeNotes(k.Plate, k.Notes),
				Modifiers:   datatypes.NewJSONSlice(line.Modifiers),
				Status:      model.OrderItemStatusActive,
				CreatedAt:   now,
			})
		case diff < 0:
			plan.removeNewestFirst(rows, -diff)
		}
	}

	//カートから消えた行はすべて取消
	for _, k := range seen {
		rows, ok := groups[k]
		if !ok {
			continue
		}
		for _, it := range rows {
			plan.Cancel = append(plan.Cancel, it.ID)
		}
	}

	return plan
}

func (p *ReconcilePlan) removeNewestFirst(rows []model.OrderItem, remaining int64) {
	for _, it := range newestFirst(rows) {
		if remaining <= 0 {
			return
		}
		if it.Quantity <= remaining {
			p.Cancel = append(p.Cancel, it.ID)
			remaining -= it.Quantity
			continue
		}
		p.Reduce = append(p.Reduce, repo.QuantityChange{ItemID: it.ID, Quantity: it.Quantity - remaining})
		remaining = 0
	}
}

// 作成日時の新しい順。同時刻なら後に並んでいる方を新しいとみなす
func newestFirst(rows []model.OrderItem) []model.OrderItem {
	out := make([]model.OrderItem, len(rows))
	for i, it := range rows {
		out[len(rows)-1-i] = it
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// 同じキーの行が複数来たら数量を合算する（価格は最初の行）
func mergeTargetLines(target []TargetLine) []TargetLine {
	idx := make(map[LineKey]int, len(target))
	out := make([]TargetLine, 0, len(target))
	for _, t := range target {
		k := t.Key()
		if i, ok := idx[k]; ok {
			out[i].Quantity += t.Quantity
			continue
		}
		idx[k] = len(out)
		out = append(out, t)
	}
	return out
}

func totalQuantity(rows []model.OrderItem) int64 {
	var n int64
	for _, it := range rows {
		n += it.Quantity
	}
	return n
}
