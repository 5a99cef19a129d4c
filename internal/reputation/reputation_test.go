package reputation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/bounty/internal/reputation"
	"github.com/garnizeh/bounty/pkg/models"
	"github.com/garnizeh/bounty/pkg/repository/mock"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		rate      float64
		badges    int
		penalties int
		want      float64
	}{
		{"zero", 0, 0, 0, 0, 0},
		{"example", 10, 0.9, 2, 1, 360},
		{"floored at zero", 0, 0, 0, 5, 0},
		{"badges only", 0, 0, 2, 0, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, reputation.Score(tt.completed, tt.rate, tt.badges, tt.penalties), 1e-9)
		})
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		score float64
		want  models.Tier
	}{
		{0, models.TierNovice},
		{99.99, models.TierNovice},
		{100, models.TierProfessional},
		{360, models.TierProfessional},
		{499.9, models.TierProfessional},
		{500, models.TierElite},
		{1499, models.TierElite},
		{1500, models.TierLegend},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, reputation.TierFor(tt.score), "score %v", tt.score)
	}
}

func TestAcceptanceRate(t *testing.T) {
	assert.InDelta(t, 0.0, reputation.AcceptanceRate(0, 0), 1e-9)
	assert.InDelta(t, 1.0, reputation.AcceptanceRate(3, 0), 1e-9)
	assert.InDelta(t, 0.8, reputation.AcceptanceRate(4, 2), 1e-9)
	assert.InDelta(t, 0.0, reputation.AcceptanceRate(0, 4), 1e-9)
}

func TestRefresh_RecomputesFromFacts(t *testing.T) {
	ctx := context.Background()
	store := mock.NewStore()
	engine := reputation.NewEngine(store, store, store, nil)

	creator, _, err := store.UpsertIdentityByWallet(ctx, "creator")
	require.NoError(t, err)
	winner, _, err := store.UpsertIdentityByWallet(ctx, "winner")
	require.NoError(t, err)

	b := &models.Bounty{Title: "t", Description: "d", RewardAmount: 2.5, Status: models.BountyPublished, CreatorID: creator.ID}
	require.NoError(t, store.CreateBounty(ctx, b))
	s := &models.Submission{BountyID: b.ID, ApplicantID: winner.ID, Content: "c"}
	ok, err := store.CreateSubmission(ctx, s)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = store.AcceptSubmission(ctx, b.ID, s.ID)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = store.GrantBadge(ctx, winner.ID, models.BadgeFirstBountyWin)
	require.NoError(t, err)

	// no row yet: Refresh creates it
	rep, err := engine.Refresh(ctx, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.CompletedBounties)
	assert.InDelta(t, 2.5, rep.TotalEarnings, 1e-9)
	assert.Equal(t, 1, rep.BadgeCount)
	assert.InDelta(t, 1.0, rep.AcceptanceRate, 1e-9)
	assert.InDelta(t, 140.0, rep.TotalScore, 1e-9)
	assert.Equal(t, models.TierProfessional, rep.Tier)

	again, err := engine.Refresh(ctx, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.TotalScore, again.TotalScore)
	assert.Equal(t, rep.CompletedBounties, again.CompletedBounties)

	store.SetPenalties(winner.ID, 2)
	penalized, err := engine.Refresh(ctx, winner.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, penalized.AcceptanceRate, 1e-9)
	assert.InDelta(t, 25+50+15-20, penalized.TotalScore, 1e-9)
	assert.Equal(t, models.TierNovice, penalized.Tier)
}
