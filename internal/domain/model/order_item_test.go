package model_test

import (
	"testing"

	"comanda/internal/domain/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPlateNumber(t *testing.T) {
	cases := []struct {
		name  string
		notes string
		want  int
	}{
		{"マーカーなし", "sin cebolla", 1},
		{"空", "", 1},
		{"皿2", "[[plate:2]] sin cebolla", 2},
		{"メモなし", "[[plate:3]]", 3},
		{"数字でない", "[[plate:x]] hola", 1},
		{"0以下", "[[plate:0]]", 1},
		{"途中のマーカーは無視", "hola [[plate:4]]", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, model.PlateNumber(tc.notes))
		})
	}
}

func TestUserNotes_StripsMarker(t *testing.T) {
	assert.Equal(t, "sin cebolla", model.UserNotes("[[plate:2]] sin cebolla"))
	assert.Equal(t, "", model.UserNotes("[[plate:2]]"))
	assert.Equal(t, "hola", model.UserNotes("hola"))
}

func TestComposeNotes_RoundTrip(t *testing.T) {
	n := model.ComposeNotes(2, "  extra salsa ")
	assert.Equal(t, "[[plate:2]] extra salsa", n)
	assert.Equal(t, 2, model.PlateNumber(n))
	assert.Equal(t, "extra salsa", model.UserNotes(n))

	assert.Equal(t, "[[plate:1]]", model.ComposeNotes(0, ""))
}

func TestModifiersDelta(t *testing.T) {
	mods := []model.OrderItemModifierSelection{
		{GroupID: "g1", Selections: []model.ModifierSelectionOption{
			{OptionID: "a", PriceDelta: decimal.RequireFromString("0.50"), Quantity: 2},
			{OptionID: "b", PriceDelta: decimal.RequireFromString("1.25"), Quantity: 1},
			{OptionID: "c", PriceDelta: decimal.RequireFromString("9"), Quantity: 0},
		}},
	}
	assert.True(t, decimal.RequireFromString("2.25").Equal(model.ModifiersDelta(mods)))
}

func TestOrder_SubtotalIgnoresCancelled(t *testing.T) {
	o := model.Order{Items: []model.OrderItem{
		{Quantity: 2, PriceAtTime: decimal.NewFromInt(3), Status: model.OrderItemStatusActive},
		{Quantity: 1, PriceAtTime: decimal.NewFromInt(10), Status: model.OrderItemStatusCancelled},
	}}
	assert.True(t, decimal.NewFromInt(6).Equal(o.Subtotal()))
}
