package model

import "time"

// 注文ステータス更新、注文の編集、メニュー更新など。
type AuditAction string

const (
	//注文ステータスを更新した操作。
	AuditActionUpdateOrderStatus AuditAction = "UPDATE_ORDER_STATUS"
	//注文明細を編集（差分反映）した操作。
	AuditActionReconcileOrder AuditAction = "RECONCILE_ORDER"
	//メニューを登録/更新した操作。
	AuditActionUpsertMenuItem AuditAction = "UPSERT_MENU_ITEM"
	//メニューを販売停止にした操作。
	AuditActionDisableMenuItem AuditAction = "DISABLE_MENU_ITEM"
)

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceOrder    AuditResourceType = "order"
	AuditResourceMenuItem AuditResourceType = "menu_item"
)

// 監査ログ。
// 「どの画面から」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	StoreID string `gorm:"type:uuid;not null;index" json:"store_id"`

	//操作した画面（pos / kitchen / admin / terminal）。
	Actor string `gorm:"type:varchar(50);not null;index" json:"actor"`

	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	ResourceID string `gorm:"type:uuid;not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`

	//JSON文字列で保存する。
	AfterJSON string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
