package usecase

import (
	"encoding/json"
	"sort"
	"strings"

	"comanda/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 選んだオプション。per_pieceモードではPieceにピース番号（0始まり）を入れる
type OptionChoiceInput struct {
	OptionID string `json:"option_id"`
	Quantity int    `json:"quantity"`
	Piece    *int   `json:"piece,omitempty"`
}

type ModifierChoiceInput struct {
	GroupID    string              `json:"group_id"`
	Selections []OptionChoiceInput `json:"selections"`
}

// カートの1行
type CartLineInput struct {
	MenuItemID string                `json:"menu_item_id"`
	Quantity   int64                 `json:"quantity"`
	Notes      string                `json:"notes"`
	Plate      int                   `json:"plate"`
	Modifiers  []ModifierChoiceInput `json:"modifiers"`
}

func (l CartLineInput) key() LineKey {
	return LineKey{
		MenuItemID: l.MenuItemID,
		Plate:      normalizePlate(l.Plate),
		Notes:      strings.TrimSpace(l.Notes),
		Modifiers:  CanonicalModifiers(choicesAsSelections(l.Modifiers)),
	}
}

// Cart は値として扱う（操作は新しいCartを返す）
type Cart struct {
	Lines []CartLineInput `json:"lines"`
}

// Add は同じ行があれば数量を足し、無ければ末尾に追加する
func (c Cart) Add(line CartLineInput) Cart {
	k := line.key()
	lines := make([]CartLineInput, len(c.Lines), len(c.Lines)+1)
	copy(lines, c.Lines)

	for i := range lines {
		if lines[i].key() == k {
			lines[i].Quantity += line.Quantity
			return Cart{Lines: lines}
		}
	}
	line.Plate = normalizePlate(line.Plate)
	line.Notes = strings.TrimSpace(line.Notes)
	return Cart{Lines: append(lines, line)}
}

// NormalizeCart は重複行をまとめる
func NormalizeCart(lines []CartLineInput) Cart {
	var c Cart
	for _, l := range lines {
		c = c.Add(l)
	}
	return c
}

// SetQuantity は行の数量を置き換える。0以下なら行ごと消す
func (c Cart) SetQuantity(index int, qty int64) Cart {
	if index < 0 || index >= len(c.Lines) {
		return c
	}
	if qty <= 0 {
		return c.Remove(index)
	}
	lines := make([]CartLineInput, len(c.Lines))
	copy(lines, c.Lines)
	lines[index].Quantity = qty
	return Cart{Lines: lines}
}

func (c Cart) Remove(index int) Cart {
	if index < 0 || index >= len(c.Lines) {
		return c
	}
	lines := make([]CartLineInput, 0, len(c.Lines)-1)
	lines = append(lines, c.Lines[:index]...)
	lines = append(lines, c.Lines[index+1:]...)
	return Cart{Lines: lines}
}

// Subtotal は行ごとの単価（メニュー価格＋追加料金）を unitPrice で引いて合計する
func (c Cart) Subtotal(unitPrice func(CartLineInput) decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(unitPrice(l).Mul(decimal.NewFromInt(l.Quantity)))
	}
	return sum
}

func (c Cart) TotalQuantity() int64 {
	var n int64
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// CartFromItems は保存済みの有効明細から編集用カートを組み立てる
func CartFromItems(items []model.OrderItem) Cart {
	var c Cart
	for _, it := range items {
		if it.Status != model.OrderItemStatusActive {
			continue
		}
		c = c.Add(CartLineInput{
			MenuItemID: it.MenuItemID,
			Quantity:   it.Quantity,
			Notes:      model.UserNotes(it.Notes),
			Plate:      model.PlateNumber(it.Notes),
			Modifiers:  selectionsAsChoices(it.Modifiers),
		})
	}
	if c.Lines == nil {
		c.Lines = []CartLineInput{}
	}
	return c
}

func CartFromOrder(o model.Order) Cart {
	return CartFromItems(o.Items)
}

func normalizePlate(p int) int {
	if p < 1 {
		return 1
	}
	return p
}

func choicesAsSelections(in []ModifierChoiceInput) []model.OrderItemModifierSelection {
	out := make([]model.OrderItemModifierSelection, 0, len(in))
	for _, g := range in {
		sel := model.OrderItemModifierSelection{GroupID: g.GroupID}
		for _, s := range g.Selections {
			sel.Selections = append(sel.Selections, model.ModifierSelectionOption{
				OptionID: s.OptionID,
				Quantity: s.Quantity,
				Piece:    s.Piece,
			})
		}
		out = append(out, sel)
	}
	return out
}

func selectionsAsChoices(in []model.OrderItemModifierSelection) []ModifierChoiceInput {
	out := make([]ModifierChoiceInput, 0, len(in))
	for _, g := range in {
		ch := ModifierChoiceInput{GroupID: g.GroupID}
		for _, s := range g.Selections {
			ch.Selections = append(ch.Selections, OptionChoiceInput{
				OptionID: s.OptionID,
				Quantity: s.Quantity,
				Piece:    s.Piece,
			})
		}
		out = append(out, ch)
	}
	return out
}

type canonicalOption struct {
	OptionID string `json:"o"`
	Piece    int    `json:"p"`
	Quantity int    `json:"q"`
}

type optionKey struct {
	optionID string
	piece    int
}

type canonicalGroup struct {
	GroupID string            `json:"g"`
	Options []canonicalOption `json:"s"`
}

// CanonicalModifiers は選択の並び順に依存しない文字列を返す。
// 名前や価格差はスナップショット時点で変わりうるので含めない。
// 選択なしは""。
func CanonicalModifiers(mods []model.OrderItemModifierSelection) string {
	byGroup := make(map[string]map[optionKey]*canonicalOption)
	for _, g := range mods {
		for _, s := range g.Selections {
			if s.Quantity <= 0 {
				continue
			}
			piece := -1
			if s.Piece != nil {
				piece = *s.Piece
			}
			opts, ok := byGroup[g.GroupID]
			if !ok {
				opts = make(map[optionKey]*canonicalOption)
				byGroup[g.GroupID] = opts
			}
			k := optionKey{s.OptionID, piece}
			if o, ok := opts[k]; ok {
				o.Quantity += s.Quantity
				continue
			}
			opts[k] = &canonicalOption{OptionID: s.OptionID, Piece: piece, Quantity: s.Quantity}
		}
	}
	if len(byGroup) == 0 {
		return ""
	}

	groups := make([]canonicalGroup, 0, len(byGroup))
	for gid, opts := range byGroup {
		cg := canonicalGroup{GroupID: gid}
		for _, o := range opts {
			cg.Options = append(cg.Options, *o)
		}
		sort.Slice(cg.Options, func(i, j int) bool {
			if cg.Options[i].OptionID != cg.Options[j].OptionID {
				return cg.Options[i].OptionID < cg.Options[j].OptionID
			}
			return cg.Options[i].Piece < cg.Options[j].Piece
		})
		groups = append(groups, cg)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].GroupID < groups[j].GroupID })

	b, err := json.Marshal(groups)
	if err != nil {
		// 構造体だけなので起きない
		panic(err)
	}
	return string(b)
}
