// Package badges awards catalog badges to identities.
package badges

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/garnizeh/bounty/pkg/models"
	"github.com/garnizeh/bounty/pkg/repository"
)

type Awarder struct {
	repo   repository.BadgeRepo
	logger *slog.Logger
}

func NewAwarder(repo repository.BadgeRepo, logger *slog.Logger) *Awarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Awarder{repo: repo, logger: logger}
}

// Grant awards key to identityID. Unknown keys and repeated grants are no-ops;
// granted reports whether a new grant was recorded.
func (a *Awarder) Grant(ctx context.Context, identityID, key string) (bool, error) {
	granted, err := a.repo.GrantBadge(ctx, identityID, key)
	if err != nil {
		return false, fmt.Errorf("grant %s: %w", key, err)
	}
	if granted {
		a.logger.Info("badge granted", slog.String("identity_id", identityID), slog.String("badge", key))
		return true, nil
	}
	b, err := a.repo.GetBadge(ctx, key)
	if err != nil {
		return false, fmt.Errorf("look up badge %s: %w", key, err)
	}
	if b == nil {
		a.logger.Warn("unknown badge ignored", slog.String("identity_id", identityID), slog.String("badge", key))
	}
	return false, nil
}

func (a *Awarder) ListFor(ctx context.Context, identityID string) ([]models.BadgeGrant, error) {
	return a.repo.ListBadgesFor(ctx, identityID)
}
