package usecase_test

import (
	"fmt"
	"testing"
	"time"

	"comanda/internal/domain/model"
	repo "comanda/internal/repository"
	"comanda/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =====================
// Fakes
// =====================

type seqIDs struct{ n int }

func (g *seqIDs) NewID() string {
	g.n++
	return fmt.Sprintf("new-%d", g.n)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var t0 = time.Date(2026, 3, 4, 19, 0, 0, 0, time.UTC)

func row(id string, menuID string, qty int64, createdAt time.Time) model.OrderItem {
	return model.OrderItem{
		ID:          id,
		OrderID:     "order-1",
		MenuItemID:  menuID,
		Quantity:    qty,
		PriceAtTime: decimal.NewFromInt(3),
		Notes:       model.ComposeNotes(1, ""),
		Status:      model.OrderItemStatusActive,
		CreatedAt:   createdAt,
	}
}

func target(menuID string, qty int64) usecase.TargetLine {
	return usecase.TargetLine{MenuItemID: menuID, Quantity: qty, UnitPrice: decimal.NewFromInt(3)}
}

func plan(current []model.OrderItem, lines ...usecase.TargetLine) usecase.ReconcilePlan {
	return usecase.PlanReconciliation(current, lines, t0.Add(time.Hour), &seqIDs{})
}

// =====================
// Scenarios
// =====================

func TestPlanReconciliation_NewOrder(t *testing.T) {
	p := plan(nil, target("taco", 2))

	require.Len(t, p.Insert, 1)
	assert.Empty(t, p.Cancel)
	assert.Empty(t, p.Reduce)
	assert.Equal(t, int64(2), p.Insert[0].Quantity)
	assert.Equal(t, model.OrderItemStatusActive, p.Insert[0].Status)
	assert.Equal(t, 1, p.Insert[0].Plate())
	assert.True(t, decimal.NewFromInt(6).Equal(model.ActiveSubtotal(p.Insert)))
}

func TestPlanReconciliation_IncreaseInsertsDelta(t *testing.T) {
	current := []model.OrderItem{row("a", "taco", 2, t0)}

	p := plan(current, target("taco", 3))

	assert.Empty(t, p.Cancel)
	assert.Empty(t, p.Reduce)
	require.Len(t, p.Insert, 1)
	assert.Equal(t, int64(1), p.Insert[0].Quantity)
	assert.Equal(t, "taco", p.Insert[0].MenuItemID)
}

func TestPlanReconciliation_DecreaseCancelsNewestFirst(t *testing.T) {
	current := []model.OrderItem{
		row("a", "taco", 2, t0),
		row("b", "taco", 1, t0.Add(time.Minute)),
	}

	p := plan(current, target("taco", 1))

	assert.Equal(t, []string{"b"}, p.Cancel)
	assert.Equal(t, []repo.QuantityChange{{ItemID: "a", Quantity: 1}}, p.Reduce)
	assert.Empty(t, p.Insert)
}

func TestPlanReconciliation_DecreaseReducesNewestRow(t *testing.T) {
	current := []model.OrderItem{
		row("a", "taco", 3, t0),
		row("b", "taco", 2, t0.Add(time.Minute)),
	}

	p := plan(current, target("taco", 4))

	assert.Empty(t, p.Cancel)
	assert.Equal(t, []repo.QuantityChange{{ItemID: "b", Quantity: 1}}, p.Reduce)
	assert.Empty(t, p.Insert)
}

func TestPlanReconciliation_RemovedLineIsCancelled(t *testing.T) {
	current := []model.OrderItem{
		row("a", "taco", 2, t0),
		row("b", "taco", 1, t0.Add(time.Minute)),
		row("c", "agua", 1, t0),
	}

	p := plan(current)

	assert.ElementsMatch(t, []string{"a", "b", "c"}, p.Cancel)
	assert.Empty(t, p.Reduce)
	assert.Empty(t, p.Insert)
}

func TestPlanReconciliation_UnchangedIsEmpty(t *testing.T) {
	current := []model.OrderItem{
		row("a", "taco", 2, t0),
		row("b", "taco", 1, t0.Add(time.Minute)),
	}

	p := plan(current, target("taco", 3))

	assert.True(t, p.IsEmpty())
}

func TestPlanReconciliation_IgnoresCancelledRows(t *testing.T) {
	cancelled := row("x", "taco", 5, t0)
	cancelled.Status = model.OrderItemStatusCancelled
	current := []model.OrderItem{cancelled, row("a", "taco", 1, t0)}

	p := plan(current, target("taco", 1))

	assert.True(t, p.IsEmpty())
}

func TestPlanReconciliation_SameTimestampUsesLaterRow(t *testing.T) {
	current := []model.OrderItem{
		row("a", "taco", 1, t0),
		row("b", "taco", 1, t0),
	}

	p := plan(current, target("taco", 1))

	assert.Equal(t, []string{"b"}, p.Cancel)
}

func TestPlanReconciliation_PlateSeparatesLines(t *testing.T) {
	current := []model.OrderItem{row("a", "taco", 1, t0)}

	plate2 := target("taco", 1)
	plate2.Plate = 2
	p := plan(current, target("taco", 1), plate2)

	assert.Empty(t, p.Cancel)
	require.Len(t, p.Insert, 1)
	assert.Equal(t, 2, p.Insert[0].Plate())
}

func TestPlanReconciliation_NotesTrimmedForMatch(t *testing.T) {
	r := row("a", "taco", 1, t0)
	r.Notes = model.ComposeNotes(1, "sin cebolla")
	line := target("taco", 1)
	line.Notes = "  sin cebolla "

	p := plan([]model.OrderItem{r}, line)

	assert.True(t, p.IsEmpty())
}

func TestPlanReconciliation_DuplicateTargetLinesMerged(t *testing.T) {
	current := []model.OrderItem{row("a", "taco", 2, t0)}

	p := plan(current, target("taco", 1), target("taco", 1))

	assert.True(t, p.IsEmpty())
}

func TestPlanReconciliation_ModifierOrderDoesNotMatter(t *testing.T) {
	p0, p1 := 0, 1
	stored := []model.OrderItemModifierSelection{
		{GroupID: "salsa", GroupName: "Salsa", Selections: []model.ModifierSelectionOption{
			{OptionID: "verde", OptionName: "Verde", Quantity: 1, Piece: &p0},
			{OptionID: "roja", OptionName: "Roja", Quantity: 1, Piece: &p1},
		}},
	}
	edited := []model.OrderItemModifierSelection{
		{GroupID: "salsa", Selections: []model.ModifierSelectionOption{
			{OptionID: "roja", Quantity: 1, Piece: &p1},
			{OptionID: "verde", Quantity: 1, Piece: &p0},
		}},
	}

	r := row("a", "taco", 2, t0)
	r.Modifiers = stored
	line := target("taco", 2)
	line.Modifiers = edited

	assert.True(t, plan([]model.OrderItem{r}, line).IsEmpty())
}

func TestPlanReconciliation_DifferentModifiersAreDifferentLines(t *testing.T) {
	r := row("a", "taco", 1, t0)
	line := target("taco", 1)
	line.Modifiers = []model.OrderItemModifierSelection{
		{GroupID: "salsa", Selections: []model.ModifierSelectionOption{{OptionID: "verde", Quantity: 1}}},
	}

	p := plan([]model.OrderItem{r}, line)

	assert.Equal(t, []string{"a"}, p.Cancel)
	require.Len(t, p.Insert, 1)
	assert.Equal(t, "verde", p.Insert[0].Modifiers[0].Selections[0].OptionID)
}

// 反映後の数量は行キーごとに目標と一致する
func TestPlanReconciliation_ResultMatchesTarget(t *testing.T) {
	current := []model.OrderItem{
		row("a", "taco", 3, t0),
		row("b", "taco", 2, t0.Add(time.Minute)),
		row("c", "agua", 1, t0.Add(2*time.Minute)),
		row("d", "torta", 4, t0.Add(3*time.Minute)),
	}
	lines := []usecase.TargetLine{target("taco", 1), target("agua", 5), target("quesadilla", 2)}

	p := plan(current, lines...)
	after := apply(current, p)

	got := map[string]int64{}
	for _, it := range after {
		if it.Status == model.OrderItemStatusActive {
			got[it.MenuItemID] += it.Quantity
		}
	}
	assert.Equal(t, map[string]int64{"taco": 1, "agua": 5, "quesadilla": 2}, got)
}

func apply(current []model.OrderItem, p usecase.ReconcilePlan) []model.OrderItem {
	cancel := map[string]bool{}
	for _, id := range p.Cancel {
		cancel[id] = true
	}
	reduce := map[string]int64{}
	for _, ch := range p.Reduce {
		reduce[ch.ItemID] = ch.Quantity
	}

	out := make([]model.OrderItem, 0, len(current)+len(p.Insert))
	for _, it := range current {
		if cancel[it.ID] {
			it.Status = model.OrderItemStatusCancelled
		}
		if q, ok := reduce[it.ID]; ok {
			it.Quantity = q
		}
		out = append(out, it)
	}
	return append(out, p.Insert...)
}
