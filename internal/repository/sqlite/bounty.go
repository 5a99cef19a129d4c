package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/garnizeh/bounty/pkg/models"
)

const bountyColumns = `id, title, description, reward_amount, badge_key, deadline, status, creator_id, created, updated`

// errNotAccepted aborts the accept transaction when a compare-and-set misses.
var errNotAccepted = errors.New("accept precondition no longer holds")

func scanBounty(row scanner) (*models.Bounty, error) {
	var b models.Bounty
	var badgeKey sql.NullString
	var deadline sql.NullInt64
	if err := row.Scan(&b.ID, &b.Title, &b.Description, &b.RewardAmount, &badgeKey, &deadline, &b.Status, &b.CreatorID, &b.Created, &b.Updated); err != nil {
		return nil, err
	}
	if badgeKey.Valid {
		b.BadgeKey = &badgeKey.String
	}
	if deadline.Valid {
		b.Deadline = &deadline.Int64
	}
	return &b, nil
}

func (r *SQLiteRepo) CreateBounty(ctx context.Context, b *models.Bounty) error {
	if b == nil {
		return fmt.Errorf("bounty is nil")
	}
	if b.ID == "" {
		b.ID = newID()
	}
	ts := now()
	b.Created, b.Updated = ts, ts

	_, err := r.conn.Exec(ctx, `INSERT INTO bounties (`+bountyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Title, b.Description, b.RewardAmount, nullString(b.BadgeKey), nullInt64(b.Deadline), b.Status, b.CreatorID, b.Created, b.Updated)
	if err != nil {
		return fmt.Errorf("create bounty: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) GetBounty(ctx context.Context, id string) (*models.Bounty, error) {
	b, err := scanBounty(r.conn.QueryRow(ctx, `SELECT `+bountyColumns+` FROM bounties WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *SQLiteRepo) ListBounties(ctx context.Context) ([]models.Bounty, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+bountyColumns+` FROM bounties ORDER BY created DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list bounties: %w", err)
	}
	defer rows.Close()

	out := []models.Bounty{}
	for rows.Next() {
		b, err := scanBounty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) AcceptSubmission(ctx context.Context, bountyID, submissionID string) (bool, error) {
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		ts := now()
		res, err := tx.ExecContext(ctx, `UPDATE bounties SET status = ?, updated = ? WHERE id = ? AND status = ?`,
			models.BountyClosed, ts, bountyID, models.BountyPublished)
		if err != nil {
			return fmt.Errorf("close bounty: %w", err)
		}
		if ok, err := affected(res); err != nil {
			return err
		} else if !ok {
			return errNotAccepted
		}

		res, err = tx.ExecContext(ctx, `UPDATE submissions SET status = ?, updated = ? WHERE id = ? AND bounty_id = ? AND status = ?`,
			models.SubmissionAccepted, ts, submissionID, bountyID, models.SubmissionPending)
		if err != nil {
			return fmt.Errorf("accept submission: %w", err)
		}
		if ok, err := affected(res); err != nil {
			return err
		} else if !ok {
			return errNotAccepted
		}
		return nil
	})
	if errors.Is(err, errNotAccepted) {
		r.logger.Debug("accept rolled back", slog.String("bounty_id", bountyID), slog.String("submission_id", submissionID))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
