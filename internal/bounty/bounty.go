// Package bounty runs the bounty and submission lifecycle: publish, apply,
// accept or reject, close.
package bounty

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/garnizeh/bounty/internal/apperr"
	"github.com/garnizeh/bounty/internal/jobs"
	"github.com/garnizeh/bounty/pkg/models"
	"github.com/garnizeh/bounty/pkg/repository"
)

const (
	MaxTitleLength = 150

	// JobAccepted re-runs the post-accept bookkeeping of a winner.
	JobAccepted        = "bounty.accepted"
	jobAcceptedRetries = 8
)

type BadgeGranter interface {
	Grant(ctx context.Context, identityID, key string) (bool, error)
}

type ReputationRefresher interface {
	Refresh(ctx context.Context, identityID string) (*models.Reputation, error)
}

// Enqueuer persists a background job; *jobs.WorkerPool satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (int64, error)
}

type CreateInput struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	RewardAmount float64 `json:"rewardAmount"`
	BadgeKey     *string `json:"badgeKey,omitempty"`
	// Deadline is an RFC 3339 timestamp.
	Deadline *string `json:"deadline,omitempty"`
}

// acceptedPayload is the body of a JobAccepted job.
type acceptedPayload struct {
	IdentityID string   `json:"identity_id"`
	BadgeKeys  []string `json:"badge_keys"`
}

type Engine struct {
	bounties    repository.BountyRepo
	submissions repository.SubmissionRepo
	badges      BadgeGranter
	reputation  ReputationRefresher
	retries     Enqueuer
	logger      *slog.Logger
}

// NewEngine wires the lifecycle. retries may be nil, in which case failed
// post-accept bookkeeping is only logged.
func NewEngine(br repository.BountyRepo, sr repository.SubmissionRepo, badges BadgeGranter, rep ReputationRefresher, retries Enqueuer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{bounties: br, submissions: sr, badges: badges, reputation: rep, retries: retries, logger: logger}
}

// Create publishes a new bounty owned by creatorID.
func (e *Engine) Create(ctx context.Context, creatorID string, in CreateInput) (*models.Bounty, error) {
	b, err := validateCreate(in)
	if err != nil {
		return nil, err
	}
	b.CreatorID = creatorID
	b.Status = models.BountyPublished
	if err := e.bounties.CreateBounty(ctx, b); err != nil {
		return nil, err
	}
	e.logger.Info("bounty published", slog.String("bounty_id", b.ID), slog.String("creator_id", creatorID))
	return b, nil
}

func validateCreate(in CreateInput) (*models.Bounty, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", apperr.ErrInvalidInput)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, fmt.Errorf("%w: title exceeds %d characters", apperr.ErrInvalidInput, MaxTitleLength)
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", apperr.ErrInvalidInput)
	}
	if math.IsNaN(in.RewardAmount) || math.IsInf(in.RewardAmount, 0) || in.RewardAmount < 0 {
		return nil, fmt.Errorf("%w: rewardAmount must be a non-negative number", apperr.ErrInvalidInput)
	}

	b := &models.Bounty{Title: title, Description: in.Description, RewardAmount: in.RewardAmount}
	if in.BadgeKey != nil && strings.TrimSpace(*in.BadgeKey) != "" {
		key := strings.TrimSpace(*in.BadgeKey)
		b.BadgeKey = &key
	}
	if in.Deadline != nil && *in.Deadline != "" {
		t, err := time.Parse(time.RFC3339, *in.Deadline)
		if err != nil {
			return nil, fmt.Errorf("%w: deadline must be RFC 3339", apperr.ErrInvalidInput)
		}
		ms := t.UTC().UnixMilli()
		b.Deadline = &ms
	}
	return b, nil
}

// List returns every bounty, newest first.
func (e *Engine) List(ctx context.Context) ([]models.Bounty, error) {
	return e.bounties.ListBounties(ctx)
}

// Get returns a bounty with its submissions.
func (e *Engine) Get(ctx context.Context, id string) (*models.BountyDetail, error) {
	b, err := e.loadBounty(ctx, id)
	if err != nil {
		return nil, err
	}
	subs, err := e.submissions.ListSubmissionsByBounty(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.BountyDetail{Bounty: *b, Submissions: subs}, nil
}

// Apply creates the applicant's submission or, while it is still PENDING,
// replaces its content.
func (e *Engine) Apply(ctx context.Context, bountyID, applicantID, content string) (*models.Submission, error) {
	b, err := e.loadBounty(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if b.Status != models.BountyPublished {
		return nil, fmt.Errorf("%w: bounty %s is %s", apperr.ErrInvalidTransition, b.ID, b.Status)
	}
	if b.CreatorID == applicantID {
		return nil, fmt.Errorf("%w: cannot apply to your own bounty", apperr.ErrInvalidInput)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", apperr.ErrInvalidInput)
	}

	existing, err := e.submissions.GetSubmissionByBountyAndApplicant(ctx, bountyID, applicantID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return e.resubmit(ctx, existing, content)
	}

	s := &models.Submission{BountyID: bountyID, ApplicantID: applicantID, Content: content}
	created, err := e.submissions.CreateSubmission(ctx, s)
	if err != nil {
		return nil, err
	}
	if created {
		return s, nil
	}

	// lost a race: the bounty closed or a concurrent apply inserted first
	existing, err = e.submissions.GetSubmissionByBountyAndApplicant(ctx, bountyID, applicantID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: bounty %s is no longer open", apperr.ErrInvalidTransition, bountyID)
	}
	return e.resubmit(ctx, existing, content)
}

func (e *Engine) resubmit(ctx context.Context, s *models.Submission, content string) (*models.Submission, error) {
	if s.Status != models.SubmissionPending {
		return nil, fmt.Errorf("%w: submission %s is %s", apperr.ErrInvalidTransition, s.ID, s.Status)
	}
	updated, err := e.submissions.UpdateSubmissionContent(ctx, s.ID, content)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, fmt.Errorf("%w: submission %s is no longer pending", apperr.ErrInvalidTransition, s.ID)
	}
	return e.submissions.GetSubmission(ctx, s.ID)
}

// ListApplications returns the submissions of a bounty to its creator.
func (e *Engine) ListApplications(ctx context.Context, bountyID, requesterID string) ([]models.Submission, error) {
	b, err := e.loadBounty(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if b.CreatorID != requesterID {
		return nil, fmt.Errorf("%w: only the creator can list applications", apperr.ErrForbidden)
	}
	return e.submissions.ListSubmissionsByBounty(ctx, bountyID)
}

// Accept makes submissionID the winner and closes its bounty. The bounty's
// badge and the winner's reputation update run after the commit; their
// failures are queued for retry and never reported to the caller.
func (e *Engine) Accept(ctx context.Context, submissionID, requesterID string) (*models.Submission, error) {
	s, b, err := e.loadOwnedSubmission(ctx, submissionID, requesterID)
	if err != nil {
		return nil, err
	}
	if b.Status != models.BountyPublished {
		return nil, fmt.Errorf("%w: bounty %s is %s", apperr.ErrInvalidTransition, b.ID, b.Status)
	}
	if s.Status != models.SubmissionPending {
		return nil, fmt.Errorf("%w: submission %s is %s", apperr.ErrInvalidTransition, s.ID, s.Status)
	}

	accepted, err := e.bounties.AcceptSubmission(ctx, b.ID, s.ID)
	if err != nil {
		return nil, err
	}
	if !accepted {
		return nil, fmt.Errorf("%w: bounty %s already has a winner", apperr.ErrInvalidTransition, b.ID)
	}
	e.logger.Info("submission accepted", slog.String("bounty_id", b.ID), slog.String("submission_id", s.ID), slog.String("winner_id", s.ApplicantID))

	var keys []string
	if b.BadgeKey != nil {
		keys = append(keys, *b.BadgeKey)
	}
	e.afterAccept(context.WithoutCancel(ctx), s.ApplicantID, keys)

	// committed; report the new state without another read
	s.Status = models.SubmissionAccepted
	s.Updated = time.Now().UTC().UnixMilli()
	return s, nil
}

func (e *Engine) afterAccept(ctx context.Context, winnerID string, keys []string) {
	err := e.reward(ctx, winnerID, keys)
	if err == nil {
		return
	}
	e.logger.Error("post-accept bookkeeping failed", slog.String("winner_id", winnerID), slog.Any("err", err))
	if e.retries == nil {
		return
	}
	if _, qErr := e.retries.Enqueue(ctx, JobAccepted, acceptedPayload{IdentityID: winnerID, BadgeKeys: keys}, 10, jobAcceptedRetries); qErr != nil {
		e.logger.Error("queue post-accept retry", slog.String("winner_id", winnerID), slog.Any("err", qErr))
	}
}

// reward grants keys and refreshes the winner's reputation. Both steps are
// idempotent, so a retry after a partial failure is safe.
func (e *Engine) reward(ctx context.Context, winnerID string, keys []string) error {
	for _, key := range keys {
		if _, err := e.badges.Grant(ctx, winnerID, key); err != nil {
			return err
		}
	}
	_, err := e.reputation.Refresh(ctx, winnerID)
	return err
}

// AcceptedJobHandler processes JobAccepted retries.
func (e *Engine) AcceptedJobHandler() jobs.Handler {
	return func(ctx context.Context, j *jobs.Job) error {
		var p acceptedPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", JobAccepted, err)
		}
		return e.reward(ctx, p.IdentityID, p.BadgeKeys)
	}
}

// Reject marks a PENDING submission REJECTED, whatever the bounty status.
func (e *Engine) Reject(ctx context.Context, submissionID, requesterID string) (*models.Submission, error) {
	s, _, err := e.loadOwnedSubmission(ctx, submissionID, requesterID)
	if err != nil {
		return nil, err
	}
	if s.Status.Terminal() {
		return nil, fmt.Errorf("%w: submission %s is %s", apperr.ErrInvalidTransition, s.ID, s.Status)
	}
	ok, err := e.submissions.UpdateSubmissionStatus(ctx, s.ID, models.SubmissionPending, models.SubmissionRejected)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: submission %s changed concurrently", apperr.ErrInvalidTransition, s.ID)
	}
	e.logger.Info("submission rejected", slog.String("submission_id", s.ID))
	return e.submissions.GetSubmission(ctx, s.ID)
}

// DeleteApplication lets an applicant withdraw a PENDING submission.
func (e *Engine) DeleteApplication(ctx context.Context, submissionID, requesterID string) error {
	s, err := e.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("%w: submission %s", apperr.ErrNotFound, submissionID)
	}
	if s.ApplicantID != requesterID {
		return fmt.Errorf("%w: only the applicant can withdraw a submission", apperr.ErrForbidden)
	}
	if s.Status != models.SubmissionPending {
		return fmt.Errorf("%w: submission %s is %s", apperr.ErrInvalidTransition, s.ID, s.Status)
	}
	ok, err := e.submissions.DeleteSubmission(ctx, s.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: submission %s changed concurrently", apperr.ErrInvalidTransition, s.ID)
	}
	return nil
}

func (e *Engine) loadBounty(ctx context.Context, id string) (*models.Bounty, error) {
	b, err := e.bounties.GetBounty(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%w: bounty %s", apperr.ErrNotFound, id)
	}
	return b, nil
}

// loadOwnedSubmission loads a submission and its bounty, requiring the
// requester to be the bounty creator.
func (e *Engine) loadOwnedSubmission(ctx context.Context, submissionID, requesterID string) (*models.Submission, *models.Bounty, error) {
	s, err := e.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, nil, err
	}
	if s == nil {
		return nil, nil, fmt.Errorf("%w: submission %s", apperr.ErrNotFound, submissionID)
	}
	b, err := e.loadBounty(ctx, s.BountyID)
	if err != nil {
		return nil, nil, err
	}
	if b.CreatorID != requesterID {
		return nil, nil, fmt.Errorf("%w: only the bounty creator can decide on submissions", apperr.ErrForbidden)
	}
	return s, b, nil
}
