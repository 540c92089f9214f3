package db

import (
	"fmt"
	"log/slog"
	"regexp"

	"comanda/internal/config"
	"comanda/internal/domain/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.Config) (*gorm.DB, error) {
	level := gormlogger.Warn
	if !cfg.IsProd() && cfg.LogLevel == "debug" {
		level = gormlogger.Info
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return gdb, nil
}

var channelName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Migrate はテーブルと、変更通知（pg_notify）用のトリガーを作る。
func Migrate(gdb *gorm.DB, channel string, log *slog.Logger) error {
	if !channelName.MatchString(channel) {
		return fmt.Errorf("invalid realtime channel %q", channel)
	}

	if err := gdb.AutoMigrate(
		&model.Store{},
		&model.MenuItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	for _, stmt := range notifyTriggerSQL(channel) {
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create notify trigger: %w", err)
		}
	}

	log.Info("migrated", "channel", channel)
	return nil
}

// order_itemsはstore_idを持たないのでordersから引く
func notifyTriggerSQL(channel string) []string {
	return []string{
		fmt.Sprintf(`
CREATE OR REPLACE FUNCTION comanda_notify_order_change() RETURNS trigger AS $$
DECLARE
	rec RECORD;
	sid TEXT;
	oid TEXT;
BEGIN
	IF TG_OP = 'DELETE' THEN
		rec := OLD;
	ELSE
		rec := NEW;
	END IF;

	IF TG_TABLE_NAME = 'orders' THEN
		sid := rec.store_id;
		oid := rec.id;
	ELSE
		oid := rec.order_id;
		SELECT store_id INTO sid FROM orders WHERE id = rec.order_id;
	END IF;

	PERFORM pg_notify('%s', json_build_object(
		'table', TG_TABLE_NAME,
		'op', TG_OP,
		'store_id', sid,
		'order_id', oid
	)::text);
	RETURN rec;
END;
$$ LANGUAGE plpgsql;`, channel),
		`DROP TRIGGER IF EXISTS orders_notify ON orders;`,
		`CREATE TRIGGER orders_notify AFTER INSERT OR UPDATE OR DELETE ON orders
	FOR EACH ROW EXECUTE FUNCTION comanda_notify_order_change();`,
		`DROP TRIGGER IF EXISTS order_items_notify ON order_items;`,
		`CREATE TRIGGER order_items_notify AFTER INSERT OR UPDATE OR DELETE ON order_items
	FOR EACH ROW EXECUTE FUNCTION comanda_notify_order_change();`,
	}
}
