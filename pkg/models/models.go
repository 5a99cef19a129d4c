package models

// Domain models matching the database schema in db/migrations/0001_init.sql.
// Timestamps are unix milliseconds (UTC).

type BountyStatus string

const (
	BountyDraft     BountyStatus = "DRAFT"
	BountyPublished BountyStatus = "PUBLISHED"
	BountyClosed    BountyStatus = "CLOSED"
)

type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "PENDING"
	SubmissionAccepted SubmissionStatus = "ACCEPTED"
	SubmissionRejected SubmissionStatus = "REJECTED"
)

// Terminal reports whether no further transition is allowed from s.
func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionAccepted || s == SubmissionRejected
}

type Tier string

const (
	TierNovice       Tier = "Novice"
	TierProfessional Tier = "Professional"
	TierElite        Tier = "Elite"
	TierLegend       Tier = "Legend"
)

// Badge keys granted by the service itself.
const (
	BadgeWalletVerified = "wallet_verified"
	BadgeFirstLogin     = "first_login"
	BadgeFirstBountyWin = "first_bounty_win"
)

type Identity struct {
	ID            string  `json:"id" db:"id"`
	WalletAddress string  `json:"walletAddress" db:"wallet_address"`
	Username      *string `json:"username,omitempty" db:"username"`
	Created       int64   `json:"created" db:"created"`
	Updated       int64   `json:"updated" db:"updated"`
}

type Reputation struct {
	IdentityID        string  `json:"identityId" db:"identity_id"`
	TotalScore        float64 `json:"totalScore" db:"total_score"`
	CompletedBounties int     `json:"completedBounties" db:"completed_bounties"`
	AcceptanceRate    float64 `json:"acceptanceRate" db:"acceptance_rate"`
	TotalEarnings     float64 `json:"totalEarnings" db:"total_earnings"`
	BadgeCount        int     `json:"badgeCount" db:"badge_count"`
	PenaltyPoints     int     `json:"penaltyPoints" db:"penalty_points"`
	Tier              Tier    `json:"tier" db:"tier"`
	Updated           int64   `json:"updated" db:"updated"`
}

type Badge struct {
	Key         string `json:"key" db:"key"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	IconURL     string `json:"iconUrl" db:"icon_url"`
}

type BadgeGrant struct {
	Badge
	IdentityID string `json:"identityId" db:"identity_id"`
	Granted    int64  `json:"granted" db:"granted"`
}

type Bounty struct {
	ID           string       `json:"id" db:"id"`
	Title        string       `json:"title" db:"title"`
	Description  string       `json:"description" db:"description"`
	RewardAmount float64      `json:"rewardAmount" db:"reward_amount"`
	BadgeKey     *string      `json:"badgeKey,omitempty" db:"badge_key"`
	Deadline     *int64       `json:"deadline,omitempty" db:"deadline"`
	Status       BountyStatus `json:"status" db:"status"`
	CreatorID    string       `json:"creatorId" db:"creator_id"`
	Created      int64        `json:"created" db:"created"`
	Updated      int64        `json:"updated" db:"updated"`
}

type Submission struct {
	ID          string           `json:"id" db:"id"`
	BountyID    string           `json:"bountyId" db:"bounty_id"`
	ApplicantID string           `json:"applicantId" db:"applicant_id"`
	Content     string           `json:"content" db:"content"`
	Status      SubmissionStatus `json:"status" db:"status"`
	Created     int64            `json:"created" db:"created"`
	Updated     int64            `json:"updated" db:"updated"`
}

// BountyDetail is a bounty together with its submissions.
type BountyDetail struct {
	Bounty
	Submissions []Submission `json:"submissions"`
}

// Profile is an identity with its reputation and granted badges.
type Profile struct {
	Identity
	Reputation *Reputation  `json:"reputation,omitempty"`
	Badges     []BadgeGrant `json:"badges"`
}

type LeaderboardEntry struct {
	Identity   Identity   `json:"identity"`
	Reputation Reputation `json:"reputation"`
}
