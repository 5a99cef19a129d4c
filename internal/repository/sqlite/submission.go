package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/bounty/pkg/models"
)

const submissionColumns = `id, bounty_id, applicant_id, content, status, created, updated`

func scanSubmission(row scanner) (*models.Submission, error) {
	var s models.Submission
	if err := row.Scan(&s.ID, &s.BountyID, &s.ApplicantID, &s.Content, &s.Status, &s.Created, &s.Updated); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSubmission selects the bounty row as part of the insert so a bounty
// closed concurrently cannot receive a new submission.
func (r *SQLiteRepo) CreateSubmission(ctx context.Context, s *models.Submission) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("submission is nil")
	}
	if s.ID == "" {
		s.ID = newID()
	}
	ts := now()
	s.Status = models.SubmissionPending
	s.Created, s.Updated = ts, ts

	res, err := r.conn.Exec(ctx, `INSERT INTO submissions (`+submissionColumns+`)
		SELECT ?, id, ?, ?, ?, ?, ? FROM bounties WHERE id = ? AND status = ?
		ON CONFLICT(bounty_id, applicant_id) DO NOTHING`,
		s.ID, s.ApplicantID, s.Content, s.Status, s.Created, s.Updated, s.BountyID, models.BountyPublished)
	if err != nil {
		return false, fmt.Errorf("create submission: %w", err)
	}
	return affected(res)
}

func (r *SQLiteRepo) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	s, err := scanSubmission(r.conn.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *SQLiteRepo) GetSubmissionByBountyAndApplicant(ctx context.Context, bountyID, applicantID string) (*models.Submission, error) {
	s, err := scanSubmission(r.conn.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE bounty_id = ? AND applicant_id = ?`, bountyID, applicantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *SQLiteRepo) ListSubmissionsByBounty(ctx context.Context, bountyID string) ([]models.Submission, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE bounty_id = ? ORDER BY created ASC, rowid ASC`, bountyID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	out := []models.Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) UpdateSubmissionContent(ctx context.Context, id, content string) (bool, error) {
	res, err := r.conn.Exec(ctx, `UPDATE submissions SET content = ?, updated = ? WHERE id = ? AND status = ?`, content, now(), id, models.SubmissionPending)
	if err != nil {
		return false, fmt.Errorf("update submission content: %w", err)
	}
	return affected(res)
}

func (r *SQLiteRepo) UpdateSubmissionStatus(ctx context.Context, id string, from, to models.SubmissionStatus) (bool, error) {
	res, err := r.conn.Exec(ctx, `UPDATE submissions SET status = ?, updated = ? WHERE id = ? AND status = ?`, to, now(), id, from)
	if err != nil {
		return false, fmt.Errorf("update submission status: %w", err)
	}
	return affected(res)
}

func (r *SQLiteRepo) DeleteSubmission(ctx context.Context, id string) (bool, error) {
	res, err := r.conn.Exec(ctx, `DELETE FROM submissions WHERE id = ? AND status = ?`, id, models.SubmissionPending)
	if err != nil {
		return false, fmt.Errorf("delete submission: %w", err)
	}
	return affected(res)
}

func (r *SQLiteRepo) AcceptedStats(ctx context.Context, applicantID string) (int, float64, error) {
	var count int
	var earnings float64
	err := r.conn.QueryRow(ctx, `SELECT COUNT(1), COALESCE(SUM(b.reward_amount), 0)
		FROM submissions s JOIN bounties b ON b.id = s.bounty_id
		WHERE s.applicant_id = ? AND s.status = ?`, applicantID, models.SubmissionAccepted).Scan(&count, &earnings)
	if err != nil {
		return 0, 0, fmt.Errorf("accepted stats: %w", err)
	}
	return count, earnings, nil
}
