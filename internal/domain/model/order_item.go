package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type OrderItemStatus string

const (
	OrderItemStatusActive    OrderItemStatus = "active"
	OrderItemStatusCancelled OrderItemStatus = "cancelled"
)

// 注文時点の選択内容のスナップショット（カタログが変わっても変えない）
type ModifierSelectionOption struct {
	OptionID   string          `json:"option_id"`
	OptionName string          `json:"option_name"`
	PriceDelta decimal.Decimal `json:"price_delta"`
	Quantity   int             `json:"quantity"`
	// per_pieceモードのピース番号（0始まり）
	Piece *int `json:"piece,omitempty"`
}

type OrderItemModifierSelection struct {
	GroupID    string                    `json:"group_id"`
	GroupName  string                    `json:"group_name"`
	Selections []ModifierSelectionOption `json:"selections"`
}

// 1個あたりの追加料金
func ModifiersDelta(mods []OrderItemModifierSelection) decimal.Decimal {
	sum := decimal.Zero
	for _, g := range mods {
		for _, s := range g.Selections {
			if s.Quantity <= 0 {
				continue
			}
			sum = sum.Add(s.PriceDelta.Mul(decimal.NewFromInt(int64(s.Quantity))))
		}
	}
	return sum
}

type OrderItem struct {
	ID          string                                          `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID     string                                          `gorm:"type:uuid;not null;index" json:"order_id"`
	MenuItemID  string                                          `gorm:"type:uuid;not null;index" json:"menu_item_id"`
	Quantity    int64                                           `gorm:"not null" json:"quantity"`
	PriceAtTime decimal.Decimal                                 `gorm:"type:numeric(10,2);not null" json:"price_at_time"`
	Notes       string                                          `gorm:"type:text" json:"notes"`
	Modifiers   datatypes.JSONSlice[OrderItemModifierSelection] `gorm:"type:jsonb" json:"modifiers"`
	Status      OrderItemStatus                                 `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt   time.Time                                       `gorm:"not null;autoCreateTime" json:"created_at"`
	MenuItem    *MenuItem                                       `gorm:"foreignKey:MenuItemID" json:"menu_item,omitempty"`
}

func (it OrderItem) LineTotal() decimal.Decimal {
	return it.PriceAtTime.Mul(decimal.NewFromInt(it.Quantity))
}

func (it OrderItem) MenuItemName() string {
	if it.MenuItem == nil {
		return ""
	}
	return it.MenuItem.Name
}

func (it OrderItem) Plate() int {
	return PlateNumber(it.Notes)
}

// notes先頭の隠しマーカー [[plate:N]] で皿番号を持つ
var plateMarker = regexp.MustCompile(`^\[\[plate:([^\]]*)\]\]\s?`)

// PlateNumber はマーカーが無い/読めない/1未満なら1を返す。
func PlateNumber(notes string) int {
	m := plateMarker.FindStringSubmatch(notes)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(m[1]))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// UserNotes はマーカーを除いた利用者向けのメモ
func UserNotes(notes string) string {
	return plateMarker.ReplaceAllString(notes, "")
}

func ComposeNotes(plate int, text string) string {
	if plate < 1 {
		plate = 1
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Sprintf("[[plate:%d]]", plate)
	}
	return fmt.Sprintf("[[plate:%d]] %s", plate, text)
}
