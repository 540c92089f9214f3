package usecase

import (
	"time"

	"comanda/internal/domain/model"
)

// ID発行（本番はuuid）
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

// カートの選択肢をカタログと照合してスナップショットにする約束
type ModifierResolver interface {
	ResolveModifiers(item model.MenuItem, choices []ModifierChoiceInput) ([]model.OrderItemModifierSelection, error)
}

// メニュー登録時の入力検証の約束
type MenuValidator interface {
	ValidateMenuItem(item model.MenuItem) error
}
