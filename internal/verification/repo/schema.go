package repo

import (
	"context"
	"strings"
)

// Schema is the DDL for the verification tables. It is valid for MySQL and SQLite.
const Schema = `
CREATE TABLE IF NOT EXISTS shops (
	id VARCHAR(64) PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	email VARCHAR(255) NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS shop_users (
	id VARCHAR(64) PRIMARY KEY,
	shop_id VARCHAR(64) NOT NULL,
	name VARCHAR(255) NOT NULL DEFAULT '',
	email VARCHAR(255) NOT NULL,
	role VARCHAR(32) NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS device_tokens (
	user_id VARCHAR(64) NOT NULL,
	token VARCHAR(512) NOT NULL
);
CREATE TABLE IF NOT EXISTS subscriptions (
	id VARCHAR(64) PRIMARY KEY,
	shop_id VARCHAR(64) NOT NULL UNIQUE,
	plan_code VARCHAR(64) NOT NULL,
	status VARCHAR(32) NOT NULL,
	billing_cycle VARCHAR(16) NOT NULL DEFAULT 'monthly',
	current_period_start DATETIME NULL,
	current_period_end DATETIME NULL,
	pending_target_plan VARCHAR(64) NULL,
	pending_invoice_id VARCHAR(64) NULL,
	pending_requested_at DATETIME NULL,
	last_invoice_id VARCHAR(64) NULL,
	version BIGINT NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS invoices (
	id VARCHAR(64) PRIMARY KEY,
	shop_id VARCHAR(64) NOT NULL,
	subscription_id VARCHAR(64) NULL,
	type VARCHAR(16) NOT NULL,
	status VARCHAR(32) NOT NULL,
	plan_code VARCHAR(64) NOT NULL DEFAULT '',
	billing_cycle VARCHAR(16) NOT NULL DEFAULT 'monthly',
	total_amount DECIMAL(12,2) NOT NULL,
	currency VARCHAR(8) NOT NULL DEFAULT 'KES',
	receipt_reference VARCHAR(128) NULL,
	paid_at DATETIME NULL,
	activated_at DATETIME NULL,
	activation_attempts INT NOT NULL DEFAULT 0,
	activation_blocked BOOLEAN NOT NULL DEFAULT FALSE,
	last_activation_error TEXT NULL,
	last_activation_at DATETIME NULL,
	mp_pending BOOLEAN NOT NULL DEFAULT FALSE,
	mp_verified_at DATETIME NULL,
	mp_verified_by VARCHAR(64) NULL,
	mp_notes TEXT NULL,
	mp_rejection_reason TEXT NULL,
	mp_sender_phone VARCHAR(32) NULL,
	mp_sender_name VARCHAR(255) NULL,
	mp_proof_url VARCHAR(1024) NULL,
	mp_submitted_at DATETIME NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS payment_attempts (
	id VARCHAR(64) PRIMARY KEY,
	invoice_id VARCHAR(64) NOT NULL,
	status VARCHAR(16) NOT NULL,
	method VARCHAR(32) NOT NULL,
	amount DECIMAL(12,2) NOT NULL,
	provider_ref VARCHAR(128) NULL,
	approved_by VARCHAR(64) NULL,
	approved_at DATETIME NULL,
	completed_at DATETIME NULL,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS audit_log (
	id VARCHAR(64) PRIMARY KEY,
	category VARCHAR(64) NOT NULL,
	action VARCHAR(64) NOT NULL,
	actor_id VARCHAR(64) NOT NULL,
	actor_email VARCHAR(255) NOT NULL DEFAULT '',
	actor_type VARCHAR(16) NOT NULL,
	target_type VARCHAR(32) NOT NULL,
	target_id VARCHAR(64) NOT NULL,
	shop_id VARCHAR(64) NULL,
	metadata TEXT NULL,
	outcome VARCHAR(16) NOT NULL,
	error TEXT NULL,
	created_at DATETIME NOT NULL
);
`

// Migrate applies Schema statement by statement.
func Migrate(ctx context.Context, db *DB) error {
	for _, stmt := range strings.Split(Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
