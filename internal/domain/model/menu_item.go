package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ModifierMode string

const (
	// グループ全体でN個まで選ぶ
	ModifierModeCount ModifierMode = "count"
	// ピース（タコス1枚など）ごとに選ぶ
	ModifierModePerPiece ModifierMode = "per_piece"
)

type ModifierOption struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"price_delta"`
	Available  bool            `json:"available"`
}

// Min/Maxはcountモード、Pieces/MinPerPieceはper_pieceモードで使う。
// Max=0は上限なし。
type ModifierGroup struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Mode        ModifierMode     `json:"mode"`
	Min         int              `json:"min,omitempty"`
	Max         int              `json:"max,omitempty"`
	Pieces      int              `json:"pieces,omitempty"`
	MinPerPiece int              `json:"min_per_piece,omitempty"`
	Options     []ModifierOption `json:"options"`
}

func (g ModifierGroup) FindOption(optionID string) (ModifierOption, bool) {
	for _, o := range g.Options {
		if o.ID == optionID {
			return o, true
		}
	}
	return ModifierOption{}, false
}

type MenuItem struct {
	ID             string                             `gorm:"type:uuid;primaryKey" json:"id"`
	StoreID        string                             `gorm:"type:uuid;not null;index" json:"store_id"`
	Name           string                             `gorm:"type:varchar(255);not null" json:"name"`
	Description    string                             `gorm:"type:text" json:"description"`
	Price          decimal.Decimal                    `gorm:"type:numeric(10,2);not null" json:"price"`
	Category       string                             `gorm:"type:varchar(100);not null;index" json:"category"`
	Available      bool                               `gorm:"not null;index" json:"available"`
	ImageURL       string                             `gorm:"type:text" json:"image_url,omitempty"`
	ModifierGroups datatypes.JSONSlice[ModifierGroup] `gorm:"type:jsonb" json:"modifier_groups"`
	CreatedAt      time.Time                          `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time                          `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (m MenuItem) FindGroup(groupID string) (ModifierGroup, bool) {
	for _, g := range m.ModifierGroups {
		if g.ID == groupID {
			return g, true
		}
	}
	return ModifierGroup{}, false
}
