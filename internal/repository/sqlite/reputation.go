package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/bounty/pkg/models"
)

const reputationColumns = `identity_id, total_score, completed_bounties, acceptance_rate, total_earnings, badge_count, penalty_points, tier, updated`

func scanReputation(row scanner) (*models.Reputation, error) {
	var rep models.Reputation
	if err := row.Scan(&rep.IdentityID, &rep.TotalScore, &rep.CompletedBounties, &rep.AcceptanceRate, &rep.TotalEarnings, &rep.BadgeCount, &rep.PenaltyPoints, &rep.Tier, &rep.Updated); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *SQLiteRepo) CreateReputation(ctx context.Context, identityID string) error {
	_, err := r.conn.Exec(ctx, `INSERT INTO reputations (identity_id, tier, updated) VALUES (?, ?, ?) ON CONFLICT(identity_id) DO NOTHING`, identityID, models.TierNovice, now())
	if err != nil {
		return fmt.Errorf("create reputation: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) GetReputation(ctx context.Context, identityID string) (*models.Reputation, error) {
	rep, err := scanReputation(r.conn.QueryRow(ctx, `SELECT `+reputationColumns+` FROM reputations WHERE identity_id = ?`, identityID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rep, err
}

func (r *SQLiteRepo) SaveReputation(ctx context.Context, rep *models.Reputation) error {
	if rep == nil {
		return fmt.Errorf("reputation is nil")
	}
	rep.Updated = now()
	_, err := r.conn.Exec(ctx, `INSERT INTO reputations (`+reputationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity_id) DO UPDATE SET
			total_score = excluded.total_score,
			completed_bounties = excluded.completed_bounties,
			acceptance_rate = excluded.acceptance_rate,
			total_earnings = excluded.total_earnings,
			badge_count = excluded.badge_count,
			penalty_points = excluded.penalty_points,
			tier = excluded.tier,
			updated = excluded.updated`,
		rep.IdentityID, rep.TotalScore, rep.CompletedBounties, rep.AcceptanceRate, rep.TotalEarnings, rep.BadgeCount, rep.PenaltyPoints, rep.Tier, rep.Updated)
	if err != nil {
		return fmt.Errorf("save reputation: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT i.id, i.wallet_address, i.username, i.created, i.updated,
			r.identity_id, r.total_score, r.completed_bounties, r.acceptance_rate, r.total_earnings, r.badge_count, r.penalty_points, r.tier, r.updated
		FROM reputations r JOIN identities i ON i.id = r.identity_id
		ORDER BY r.total_score DESC, i.created ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var out []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		var username sql.NullString
		rep := &e.Reputation
		if err := rows.Scan(&e.Identity.ID, &e.Identity.WalletAddress, &username, &e.Identity.Created, &e.Identity.Updated,
			&rep.IdentityID, &rep.TotalScore, &rep.CompletedBounties, &rep.AcceptanceRate, &rep.TotalEarnings, &rep.BadgeCount, &rep.PenaltyPoints, &rep.Tier, &rep.Updated); err != nil {
			return nil, err
		}
		if username.Valid {
			e.Identity.Username = &username.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
