package repository

import (
	"context"

	"github.com/garnizeh/bounty/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
// Getters return (nil, nil) when the row does not exist.

type IdentityRepo interface {
	GetIdentityByID(ctx context.Context, id string) (*models.Identity, error)
	GetIdentityByWallet(ctx context.Context, wallet string) (*models.Identity, error)
	// UpsertIdentityByWallet returns the identity for wallet, creating it when
	// missing. created reports whether this call inserted the row.
	UpsertIdentityByWallet(ctx context.Context, wallet string) (identity *models.Identity, created bool, err error)
}

type ReputationRepo interface {
	// CreateReputation inserts a zeroed Novice row; a no-op when one exists.
	CreateReputation(ctx context.Context, identityID string) error
	GetReputation(ctx context.Context, identityID string) (*models.Reputation, error)
	SaveReputation(ctx context.Context, rep *models.Reputation) error
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

type BadgeRepo interface {
	GetBadge(ctx context.Context, key string) (*models.Badge, error)
	// GrantBadge reports whether a new grant row was written. Unknown keys and
	// existing grants both return false.
	GrantBadge(ctx context.Context, identityID, key string) (bool, error)
	ListBadgesFor(ctx context.Context, identityID string) ([]models.BadgeGrant, error)
	CountBadgesFor(ctx context.Context, identityID string) (int, error)
}

type BountyRepo interface {
	CreateBounty(ctx context.Context, b *models.Bounty) error
	GetBounty(ctx context.Context, id string) (*models.Bounty, error)
	// ListBounties returns bounties newest first.
	ListBounties(ctx context.Context) ([]models.Bounty, error)
	// AcceptSubmission closes the bounty and accepts the submission in one
	// transaction. It returns false, leaving both rows untouched, when the
	// bounty is no longer PUBLISHED or the submission is no longer PENDING.
	AcceptSubmission(ctx context.Context, bountyID, submissionID string) (bool, error)
}

type SubmissionRepo interface {
	// CreateSubmission inserts s only while its bounty is PUBLISHED and the
	// applicant has no submission for it yet. It reports whether a row was
	// written.
	CreateSubmission(ctx context.Context, s *models.Submission) (bool, error)
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	GetSubmissionByBountyAndApplicant(ctx context.Context, bountyID, applicantID string) (*models.Submission, error)
	ListSubmissionsByBounty(ctx context.Context, bountyID string) ([]models.Submission, error)
	// UpdateSubmissionContent overwrites the content of a PENDING submission.
	UpdateSubmissionContent(ctx context.Context, id, content string) (bool, error)
	// UpdateSubmissionStatus moves a submission from one status to another,
	// reporting false when the current status is not from.
	UpdateSubmissionStatus(ctx context.Context, id string, from, to models.SubmissionStatus) (bool, error)
	// DeleteSubmission removes a PENDING submission.
	DeleteSubmission(ctx context.Context, id string) (bool, error)
	// AcceptedStats sums the accepted submissions of an applicant and the
	// rewards of their bounties.
	AcceptedStats(ctx context.Context, applicantID string) (count int, earnings float64, err error)
}
