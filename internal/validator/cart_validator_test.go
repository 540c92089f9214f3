package validator_test

import (
	"testing"

	"comanda/internal/domain/model"
	"comanda/internal/usecase"
	"comanda/internal/validator"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

// タコス3枚、1枚ごとにサルサを1つ。トッピングは2つまで
func tacoPlate() model.MenuItem {
	return model.MenuItem{
		ID:    "taco",
		Name:  "Tacos x3",
		Price: decimal.NewFromInt(9),
		ModifierGroups: []model.ModifierGroup{
			{
				ID: "salsa", Name: "Salsa", Mode: model.ModifierModePerPiece, Pieces: 3, MinPerPiece: 1,
				Options: []model.ModifierOption{
					{ID: "verde", Name: "Verde", PriceDelta: decimal.Zero, Available: true},
					{ID: "roja", Name: "Roja", PriceDelta: decimal.RequireFromString("0.50"), Available: true},
					{ID: "habanero", Name: "Habanero", PriceDelta: decimal.NewFromInt(1), Available: false},
				},
			},
			{
				ID: "extra", Name: "Extra", Mode: model.ModifierModeCount, Min: 0, Max: 2,
				Options: []model.ModifierOption{
					{ID: "queso", Name: "Queso", PriceDelta: decimal.NewFromInt(1), Available: true},
					{ID: "aguacate", Name: "Aguacate", PriceDelta: decimal.RequireFromString("1.50"), Available: true},
				},
			},
		},
	}
}

func allSalsas(option string) usecase.ModifierChoiceInput {
	return usecase.ModifierChoiceInput{GroupID: "salsa", Selections: []usecase.OptionChoiceInput{
		{OptionID: option, Quantity: 1, Piece: intp(0)},
		{OptionID: option, Quantity: 1, Piece: intp(1)},
		{OptionID: option, Quantity: 1, Piece: intp(2)},
	}}
}

func TestCartValidator_ResolveModifiers_Snapshot(t *testing.T) {
	v := validator.NewCartValidator()

	// メニュー側と逆順で渡す
	mods, err := v.ResolveModifiers(tacoPlate(), []usecase.ModifierChoiceInput{
		{GroupID: "extra", Selections: []usecase.OptionChoiceInput{{OptionID: "queso", Quantity: 1}, {OptionID: "queso", Quantity: 1}}},
		allSalsas("roja"),
	})

	require.NoError(t, err)
	require.Len(t, mods, 2)
	assert.Equal(t, "salsa", mods[0].GroupID)
	assert.Equal(t, "Salsa", mods[0].GroupName)
	require.Len(t, mods[0].Selections, 3)
	assert.Equal(t, "Roja", mods[0].Selections[0].OptionName)
	require.NotNil(t, mods[0].Selections[2].Piece)
	assert.Equal(t, 2, *mods[0].Selections[2].Piece)

	// 同じオプションはまとめる
	require.Len(t, mods[1].Selections, 1)
	assert.Equal(t, 2, mods[1].Selections[0].Quantity)
	assert.Nil(t, mods[1].Selections[0].Piece)

	// 0.50*3 + 1*2
	assert.True(t, decimal.RequireFromString("3.50").Equal(model.ModifiersDelta(mods)))
}

func TestCartValidator_ResolveModifiers_Errors(t *testing.T) {
	cases := []struct {
		name    string
		choices []usecase.ModifierChoiceInput
		want    error
	}{
		{
			name:    "ピースの選択が足りない",
			choices: []usecase.ModifierChoiceInput{{GroupID: "salsa", Selections: []usecase.OptionChoiceInput{{OptionID: "verde", Quantity: 1, Piece: intp(0)}}}},
			want:    validator.ErrInvalidModifier,
		},
		{
			name:    "選択なし",
			choices: nil,
			want:    validator.ErrInvalidModifier,
		},
		{
			name: "ピース番号が範囲外",
			choices: []usecase.ModifierChoiceInput{{GroupID: "salsa", Selections: []usecase.OptionChoiceInput{
				{OptionID: "verde", Quantity: 1, Piece: intp(3)},
			}}},
			want: validator.ErrInvalidModifier,
		},
		{
			name: "ピース番号なし",
			choices: []usecase.ModifierChoiceInput{{GroupID: "salsa", Selections: []usecase.OptionChoiceInput{
				{OptionID: "verde", Quantity: 1},
			}}},
			want: validator.ErrInvalidModifier,
		},
		{
			name:    "販売停止のオプション",
			choices: []usecase.ModifierChoiceInput{allSalsas("habanero")},
			want:    validator.ErrOptionUnavailable,
		},
		{
			name:    "知らないグループ",
			choices: []usecase.ModifierChoiceInput{allSalsas("verde"), {GroupID: "bebida"}},
			want:    validator.ErrInvalidModifier,
		},
		{
			name:    "知らないオプション",
			choices: []usecase.ModifierChoiceInput{allSalsas("mango")},
			want:    validator.ErrInvalidModifier,
		},
		{
			name: "上限超え",
			choices: []usecase.ModifierChoiceInput{allSalsas("verde"), {GroupID: "extra", Selections: []usecase.OptionChoiceInput{
				{OptionID: "queso", Quantity: 2}, {OptionID: "aguacate", Quantity: 1},
			}}},
			want: validator.ErrInvalidModifier,
		},
		{
			name: "負の数量",
			choices: []usecase.ModifierChoiceInput{allSalsas("verde"), {GroupID: "extra", Selections: []usecase.OptionChoiceInput{
				{OptionID: "queso", Quantity: -1},
			}}},
			want: validator.ErrInvalidModifier,
		},
	}

	v := validator.NewCartValidator()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.ResolveModifiers(tacoPlate(), tc.choices)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCartValidator_ResolveModifiers_NoGroups(t *testing.T) {
	v := validator.NewCartValidator()

	mods, err := v.ResolveModifiers(model.MenuItem{ID: "agua"}, nil)

	require.NoError(t, err)
	assert.Empty(t, mods)
}
