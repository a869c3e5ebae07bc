package repo

import (
	"context"
	"database/sql"
	"errors"
)

// DirectoryRepo reads shop and shop-user records owned by other modules.
type DirectoryRepo struct {
	db *DB
}

// NewDirectoryRepo creates repo.
func NewDirectoryRepo(db *DB) *DirectoryRepo { return &DirectoryRepo{db: db} }

// GetShop returns the shop with id.
func (r *DirectoryRepo) GetShop(ctx context.Context, id string) (Shop, error) {
	var s Shop
	err := r.db.queryRow(ctx, `SELECT id, name, email FROM shops WHERE id = ?`, id).Scan(&s.ID, &s.Name, &s.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return Shop{}, ErrNotFound
	}
	return s, err
}

// FindShopAdmin returns the earliest admin of a shop along with its push tokens.
func (r *DirectoryRepo) FindShopAdmin(ctx context.Context, shopID string) (ShopAdmin, error) {
	var a ShopAdmin
	err := r.db.queryRow(ctx, `SELECT id, name, email FROM shop_users WHERE shop_id = ? AND role = 'admin'
		ORDER BY created_at ASC LIMIT 1`, shopID).Scan(&a.ID, &a.Name, &a.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return ShopAdmin{}, ErrNotFound
	}
	if err != nil {
		return ShopAdmin{}, err
	}

	rows, err := r.db.query(ctx, `SELECT token FROM device_tokens WHERE user_id = ?`, a.ID)
	if err != nil {
		return ShopAdmin{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return ShopAdmin{}, err
		}
		a.DeviceTokens = append(a.DeviceTokens, token)
	}
	return a, rows.Err()
}
