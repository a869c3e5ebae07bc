package repo

import (
	"context"
	"database/sql"
	"time"
)

// AuditRepo is the append-only audit log.
type AuditRepo struct {
	db *DB
}

// NewAuditRepo creates repo.
func NewAuditRepo(db *DB) *AuditRepo { return &AuditRepo{db: db} }

// Append writes one entry. Entries are never updated or deleted.
func (r *AuditRepo) Append(ctx context.Context, e AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	var metadata sql.NullString
	if len(e.Metadata) > 0 {
		metadata = sql.NullString{String: string(e.Metadata), Valid: true}
	}
	_, err := r.db.exec(ctx, `INSERT INTO audit_log (id, category, action, actor_id, actor_email, actor_type,
		target_type, target_id, shop_id, metadata, outcome, error, created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.Category, e.Action, e.ActorID, e.ActorEmail, e.ActorType, e.TargetType, e.TargetID,
		nullString(e.ShopID), metadata, e.Outcome, nullString(e.Error), e.CreatedAt.UTC())
	return err
}

// AuditFilter narrows a history query. Zero fields are ignored.
type AuditFilter struct {
	Category string
	Action   string
	ShopID   string
	TargetID string
	Limit    int
	Offset   int
}

// List returns entries matching f, newest first.
func (r *AuditRepo) List(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	query := `SELECT id, category, action, actor_id, actor_email, actor_type, target_type, target_id, shop_id,
		metadata, outcome, error, created_at FROM audit_log WHERE 1 = 1`
	var args []interface{}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if f.Action != "" {
		query += ` AND action = ?`
		args = append(args, f.Action)
	}
	if f.ShopID != "" {
		query += ` AND shop_id = ?`
		args = append(args, f.ShopID)
	}
	if f.TargetID != "" {
		query += ` AND target_id = ?`
		args = append(args, f.TargetID)
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e                        AuditEntry
			shopID, metadata, errMsg sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Category, &e.Action, &e.ActorID, &e.ActorEmail, &e.ActorType, &e.TargetType,
			&e.TargetID, &shopID, &metadata, &e.Outcome, &errMsg, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ShopID = shopID.String
		if metadata.Valid {
			e.Metadata = []byte(metadata.String)
		}
		e.Error = errMsg.String
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
