package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/bounty/pkg/models"
)

func (r *SQLiteRepo) GetBadge(ctx context.Context, key string) (*models.Badge, error) {
	var b models.Badge
	err := r.conn.QueryRow(ctx, `SELECT key, name, description, icon_url FROM badges WHERE key = ?`, key).Scan(&b.Key, &b.Name, &b.Description, &b.IconURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GrantBadge inserts the grant only when the key exists in the catalog.
func (r *SQLiteRepo) GrantBadge(ctx context.Context, identityID, key string) (bool, error) {
	res, err := r.conn.Exec(ctx, `INSERT INTO badge_grants (identity_id, badge_key, granted)
		SELECT ?, key, ? FROM badges WHERE key = ?
		ON CONFLICT(identity_id, badge_key) DO NOTHING`, identityID, now(), key)
	if err != nil {
		return false, fmt.Errorf("grant badge %s: %w", key, err)
	}
	return affected(res)
}

func (r *SQLiteRepo) ListBadgesFor(ctx context.Context, identityID string) ([]models.BadgeGrant, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT b.key, b.name, b.description, b.icon_url, g.identity_id, g.granted
		FROM badge_grants g JOIN badges b ON b.key = g.badge_key
		WHERE g.identity_id = ?
		ORDER BY g.granted ASC, b.key ASC`, identityID)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()

	out := []models.BadgeGrant{}
	for rows.Next() {
		var g models.BadgeGrant
		if err := rows.Scan(&g.Key, &g.Name, &g.Description, &g.IconURL, &g.IdentityID, &g.Granted); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) CountBadgesFor(ctx context.Context, identityID string) (int, error) {
	var n int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM badge_grants WHERE identity_id = ?`, identityID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count badges: %w", err)
	}
	return n, nil
}
