// Package reputation derives an identity's score and tier from its accepted
// submissions, badges and penalties.
package reputation

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/garnizeh/bounty/pkg/models"
	"github.com/garnizeh/bounty/pkg/repository"
)

const (
	pointsPerCompleted = 25
	pointsPerRate      = 100
	pointsPerBadge     = 15
	pointsPerPenalty   = 10
)

// Score is completed*25 + acceptanceRate*100 + badges*15 - penalties*10,
// floored at zero.
func Score(completed int, acceptanceRate float64, badges, penalties int) float64 {
	s := float64(completed*pointsPerCompleted) +
		acceptanceRate*pointsPerRate +
		float64(badges*pointsPerBadge) -
		float64(penalties*pointsPerPenalty)
	return math.Max(0, s)
}

func TierFor(score float64) models.Tier {
	switch {
	case score >= 1500:
		return models.TierLegend
	case score >= 500:
		return models.TierElite
	case score >= 100:
		return models.TierProfessional
	default:
		return models.TierNovice
	}
}

// AcceptanceRate approximates the share of accepted work by treating every
// two penalty points as one failed delivery. The result is in [0, 1].
func AcceptanceRate(completed, penalties int) float64 {
	denom := math.Max(1, float64(completed)+float64(penalties)/2)
	return math.Min(1, float64(completed)/denom)
}

type Engine struct {
	reputations repository.ReputationRepo
	submissions repository.SubmissionRepo
	badges      repository.BadgeRepo
	logger      *slog.Logger
}

func NewEngine(rr repository.ReputationRepo, sr repository.SubmissionRepo, br repository.BadgeRepo, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{reputations: rr, submissions: sr, badges: br, logger: logger}
}

// Refresh recomputes the counters of identityID from stored facts and saves
// the result. Running it twice yields the same row.
func (e *Engine) Refresh(ctx context.Context, identityID string) (*models.Reputation, error) {
	rep, err := e.reputations.GetReputation(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("load reputation: %w", err)
	}
	if rep == nil {
		if err := e.reputations.CreateReputation(ctx, identityID); err != nil {
			return nil, err
		}
		rep = &models.Reputation{IdentityID: identityID, Tier: models.TierNovice}
	}

	completed, earnings, err := e.submissions.AcceptedStats(ctx, identityID)
	if err != nil {
		return nil, err
	}
	badgeCount, err := e.badges.CountBadgesFor(ctx, identityID)
	if err != nil {
		return nil, err
	}

	rep.CompletedBounties = completed
	rep.TotalEarnings = earnings
	rep.BadgeCount = badgeCount
	rep.AcceptanceRate = AcceptanceRate(completed, rep.PenaltyPoints)
	rep.TotalScore = Score(completed, rep.AcceptanceRate, badgeCount, rep.PenaltyPoints)
	rep.Tier = TierFor(rep.TotalScore)

	if err := e.reputations.SaveReputation(ctx, rep); err != nil {
		return nil, fmt.Errorf("save reputation: %w", err)
	}
	e.logger.Debug("reputation refreshed",
		slog.String("identity_id", identityID),
		slog.Float64("score", rep.TotalScore),
		slog.String("tier", string(rep.Tier)),
	)
	return rep, nil
}
