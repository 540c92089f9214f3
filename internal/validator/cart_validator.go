package validator

import (
	"errors"
	"fmt"

	"comanda/internal/domain/model"
	"comanda/internal/usecase"
)

var (
	// カートの選択肢が不正
	ErrInvalidModifier = errors.New("invalid modifier selection")

	// 販売停止のオプション
	ErrOptionUnavailable = errors.New("modifier option unavailable")
)

type cartValidator struct{}

// Usecaseは interface を依存注入
func NewCartValidator() usecase.ModifierResolver {
	return &cartValidator{}
}

type pieceKey struct {
	optionID string
	piece    int
}

// ResolveModifiers はカートの選択をメニューのグループ定義で検証し、
// 名前と価格差を埋めたスナップショットを返す。並びはメニュー側のグループ順。
func (v *cartValidator) ResolveModifiers(item model.MenuItem, choices []usecase.ModifierChoiceInput) ([]model.OrderItemModifierSelection, error) {
	chosen := make(map[string][]usecase.OptionChoiceInput, len(choices))
	for _, c := range choices {
		if _, ok := item.FindGroup(c.GroupID); !ok {
			return nil, fmt.Errorf("%w: unknown group %q", ErrInvalidModifier, c.GroupID)
		}
		chosen[c.GroupID] = append(chosen[c.GroupID], c.Selections...)
	}

	out := make([]model.OrderItemModifierSelection, 0, len(chosen))
	for _, g := range item.ModifierGroups {
		sels, err := resolveGroup(g, chosen[g.ID])
		if err != nil {
			return nil, err
		}
		if len(sels) == 0 {
			continue
		}
		out = append(out, model.OrderItemModifierSelection{
			GroupID:    g.ID,
			GroupName:  g.Name,
			Selections: sels,
		})
	}
	return out, nil
}

func resolveGroup(g model.ModifierGroup, choices []usecase.OptionChoiceInput) ([]model.ModifierSelectionOption, error) {
	var out []model.ModifierSelectionOption
	idx := make(map[pieceKey]int)
	total := 0
	perPiece := make(map[int]int)

	for _, c := range choices {
		if c.Quantity < 0 {
			return nil, fmt.Errorf("%w: negative quantity in %q", ErrInvalidModifier, g.Name)
		}
		if c.Quantity == 0 {
			continue
		}

		opt, ok := g.FindOption(c.OptionID)
		if !ok {
			return nil, fmt.Errorf("%w: unknown option %q in %q", ErrInvalidModifier, c.OptionID, g.Name)
		}
		if !opt.Available {
			return nil, fmt.Errorf("%w: %s", ErrOptionUnavailable, opt.Name)
		}

		k := pieceKey{optionID: opt.ID, piece: -1}
		var piece *int
		switch g.Mode {
		case model.ModifierModePerPiece:
			if c.Piece == nil || *c.Piece < 0 || *c.Piece >= g.Pieces {
				return nil, fmt.Errorf("%w: invalid piece for %q", ErrInvalidModifier, g.Name)
			}
			p := *c.Piece
			piece = &p
			k.piece = p
			perPiece[p] += c.Quantity
		default:
			// countモードではピースを無視
		}
		total += c.Quantity

		//同じオプション（同じピース）は数量をまとめる
		if i, ok := idx[k]; ok {
			out[i].Quantity += c.Quantity
			continue
		}
		idx[k] = len(out)
		out = append(out, model.ModifierSelectionOption{
			OptionID:   opt.ID,
			OptionName: opt.Name,
			PriceDelta: opt.PriceDelta,
			Quantity:   c.Quantity,
			Piece:      piece,
		})
	}

	switch g.Mode {
	case model.ModifierModePerPiece:
		for p := 0; p < g.Pieces; p++ {
			if perPiece[p] < g.MinPerPiece {
				return nil, fmt.Errorf("%w: %q needs %d per piece", ErrInvalidModifier, g.Name, g.MinPerPiece)
			}
		}
	default:
		if total < g.Min {
			return nil, fmt.Errorf("%w: %q needs at least %d", ErrInvalidModifier, g.Name, g.Min)
		}
		if g.Max > 0 && total > g.Max {
			return nil, fmt.Errorf("%w: %q allows at most %d", ErrInvalidModifier, g.Name, g.Max)
		}
	}
	return out, nil
}
