// Package users manages wallet identities and their public profiles.
package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/garnizeh/bounty/internal/apperr"
	"github.com/garnizeh/bounty/pkg/models"
	"github.com/garnizeh/bounty/pkg/repository"
)

// LeaderboardSize is the number of identities returned by Leaderboard.
const LeaderboardSize = 20

// baselineBadges are granted to every new identity.
var baselineBadges = []string{models.BadgeWalletVerified, models.BadgeFirstLogin}

type BadgeGranter interface {
	Grant(ctx context.Context, identityID, key string) (bool, error)
	ListFor(ctx context.Context, identityID string) ([]models.BadgeGrant, error)
}

type ReputationRefresher interface {
	Refresh(ctx context.Context, identityID string) (*models.Reputation, error)
}

type Service struct {
	identities  repository.IdentityRepo
	reputations repository.ReputationRepo
	badges      BadgeGranter
	reputation  ReputationRefresher
	logger      *slog.Logger
}

func NewService(ir repository.IdentityRepo, rr repository.ReputationRepo, badges BadgeGranter, rep ReputationRefresher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{identities: ir, reputations: rr, badges: badges, reputation: rep, logger: logger}
}

// UpsertByWallet returns the identity owning wallet, creating it on first
// sight. Every call ensures the reputation row and the baseline badges exist
// and refreshes the reputation, so a login repairs an earlier partial
// bootstrap.
func (s *Service) UpsertByWallet(ctx context.Context, wallet string) (*models.Identity, error) {
	if wallet == "" {
		return nil, fmt.Errorf("%w: wallet address is required", apperr.ErrInvalidInput)
	}
	identity, created, err := s.identities.UpsertIdentityByWallet(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("upsert identity: %w", err)
	}

	if err := s.reputations.CreateReputation(ctx, identity.ID); err != nil {
		return nil, err
	}
	for _, key := range baselineBadges {
		if _, err := s.badges.Grant(ctx, identity.ID, key); err != nil {
			return nil, err
		}
	}
	if _, err := s.reputation.Refresh(ctx, identity.ID); err != nil {
		return nil, err
	}
	if created {
		s.logger.Info("identity created", slog.String("identity_id", identity.ID), slog.String("wallet", wallet))
	}
	return identity, nil
}

// Profile returns the identity with its reputation and badges.
func (s *Service) Profile(ctx context.Context, identityID string) (*models.Profile, error) {
	identity, err := s.identities.GetIdentityByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, fmt.Errorf("%w: identity %s", apperr.ErrNotFound, identityID)
	}
	rep, err := s.reputations.GetReputation(ctx, identityID)
	if err != nil {
		return nil, err
	}
	grants, err := s.badges.ListFor(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if grants == nil {
		grants = []models.BadgeGrant{}
	}
	return &models.Profile{Identity: *identity, Reputation: rep, Badges: grants}, nil
}

func (s *Service) Leaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	entries, err := s.reputations.Leaderboard(ctx, LeaderboardSize)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	return entries, nil
}
