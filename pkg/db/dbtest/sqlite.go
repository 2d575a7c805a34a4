// Package dbtest opens in-memory SQLite databases carrying the marketplace schema
// so repository tests can exercise real SQL without Postgres.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const schema = `
CREATE TABLE shops (
  id TEXT PRIMARY KEY,
  owner_user_id TEXT NOT NULL,
  name TEXT NOT NULL,
  total_sales INTEGER NOT NULL DEFAULT 0,
  total_orders INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE products (
  id TEXT PRIMARY KEY,
  shop_id TEXT NOT NULL,
  name TEXT NOT NULL,
  price INTEGER NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  sold_count INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE payout_destinations (
  id TEXT PRIMARY KEY,
  shop_id TEXT NOT NULL,
  type TEXT NOT NULL,
  account_reference TEXT NOT NULL,
  label TEXT NOT NULL,
  is_enabled INTEGER NOT NULL DEFAULT 1,
  is_verified INTEGER NOT NULL DEFAULT 0,
  is_default INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE cart_items (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME
);
CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  shop_id TEXT,
  cart_item_fingerprint TEXT,
  fingerprint_key TEXT,
  currency TEXT NOT NULL DEFAULT 'USD',
  gross_total INTEGER NOT NULL,
  platform_fee_total INTEGER NOT NULL,
  seller_net_amount INTEGER NOT NULL,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  order_status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT NOT NULL,
  charge_reference TEXT,
  paid_at DATETIME,
  last_payment_error TEXT,
  delivered_at DATETIME,
  buyer_confirmed INTEGER NOT NULL DEFAULT 0,
  buyer_confirmed_at DATETIME,
  payout_status TEXT NOT NULL DEFAULT 'none',
  paid_out_amount INTEGER NOT NULL DEFAULT 0,
  refund_reference TEXT,
  refunded_amount INTEGER NOT NULL DEFAULT 0,
  refund_status TEXT,
  refund_error TEXT,
  cancelled_at DATETIME,
  cancelled_by TEXT,
  cancel_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  CHECK (paid_out_amount <= seller_net_amount)
);
CREATE UNIQUE INDEX idx_orders_charge_reference ON orders (charge_reference);
CREATE TABLE order_shop_groups (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  shop_id TEXT NOT NULL,
  gross_amount INTEGER NOT NULL,
  platform_fee_amount INTEGER NOT NULL,
  seller_net_amount INTEGER NOT NULL,
  payout_status TEXT NOT NULL DEFAULT 'none',
  paid_out_amount INTEGER NOT NULL DEFAULT 0,
  delivered_at DATETIME,
  fulfillment TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  CHECK (paid_out_amount >= 0 AND paid_out_amount <= seller_net_amount)
);
CREATE TABLE order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  shop_group_id TEXT NOT NULL,
  shop_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  cart_item_id TEXT,
  name TEXT NOT NULL,
  unit_price INTEGER NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 1,
  line_total INTEGER NOT NULL,
  created_at DATETIME
);
CREATE TABLE payouts (
  id TEXT PRIMARY KEY,
  shop_id TEXT NOT NULL,
  destination_id TEXT NOT NULL,
  amount INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  status TEXT NOT NULL DEFAULT 'processing',
  order_ids TEXT,
  allocations TEXT,
  transfer_reference TEXT,
  failure_reason TEXT,
  completed_at DATETIME,
  failed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);
CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);
CREATE TABLE ledger_events (
  id TEXT PRIMARY KEY,
  order_id TEXT,
  payout_id TEXT,
  shop_id TEXT,
  actor_id TEXT,
  type TEXT NOT NULL,
  amount INTEGER NOT NULL,
  reference TEXT,
  metadata TEXT,
  created_at DATETIME
);
CREATE TABLE notifications (
  id TEXT PRIMARY KEY,
  recipient_type TEXT NOT NULL,
  recipient_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
);
`

// Open returns a private in-memory database with every table created.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}
