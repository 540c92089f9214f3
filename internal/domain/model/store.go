package model

import "time"

// 店舗。画面はすべて店舗単位（/stores/:storeId/...）
type Store struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}
