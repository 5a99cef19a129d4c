package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/bounty/pkg/models"
	"github.com/garnizeh/bounty/pkg/repository"
)

var _ repository.IdentityRepo = (*Store)(nil)
var _ repository.ReputationRepo = (*Store)(nil)
var _ repository.BadgeRepo = (*Store)(nil)
var _ repository.BountyRepo = (*Store)(nil)
var _ repository.SubmissionRepo = (*Store)(nil)

// Catalog mirrors db/seed/0001_badges.sql.
var Catalog = []models.Badge{
	{Key: models.BadgeWalletVerified, Name: "Wallet Verified"},
	{Key: models.BadgeFirstLogin, Name: "First Login"},
	{Key: models.BadgeFirstBountyWin, Name: "First Bounty Win"},
	{Key: "fast_solver", Name: "Fast Solver"},
	{Key: "top10", Name: "Top 10"},
}

// Store is an in-memory implementation of every repository interface for
// tests. The *Err fields make the matching operation fail.
type Store struct {
	mu sync.Mutex

	identities  map[string]*models.Identity
	reputations map[string]*models.Reputation
	badges      map[string]models.Badge
	grants      map[string][]models.BadgeGrant
	bounties    map[string]*models.Bounty
	submissions map[string]*models.Submission
	seq         map[string]int64
	next        int64

	GrantErr          error
	SaveReputationErr error
	AcceptErr         error
}

func NewStore() *Store {
	s := &Store{
		identities:  map[string]*models.Identity{},
		reputations: map[string]*models.Reputation{},
		badges:      map[string]models.Badge{},
		grants:      map[string][]models.BadgeGrant{},
		bounties:    map[string]*models.Bounty{},
		submissions: map[string]*models.Submission{},
		seq:         map[string]int64{},
	}
	for _, b := range Catalog {
		s.badges[b.Key] = b
	}
	return s
}

func (s *Store) stamp(id string) int64 {
	s.next++
	s.seq[id] = s.next
	return time.Now().UTC().UnixMilli()
}

func (s *Store) GetIdentityByID(ctx context.Context, id string) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.identities[id]; ok {
		cp := *i
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) GetIdentityByWallet(ctx context.Context, wallet string) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.identities {
		if i.WalletAddress == wallet {
			cp := *i
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) UpsertIdentityByWallet(ctx context.Context, wallet string) (*models.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.identities {
		if i.WalletAddress == wallet {
			cp := *i
			return &cp, false, nil
		}
	}
	id := uuid.NewString()
	ts := s.stamp(id)
	i := &models.Identity{ID: id, WalletAddress: wallet, Created: ts, Updated: ts}
	s.identities[id] = i
	cp := *i
	return &cp, true, nil
}

func (s *Store) CreateReputation(ctx context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reputations[identityID]; !ok {
		s.reputations[identityID] = &models.Reputation{IdentityID: identityID, Tier: models.TierNovice, Updated: time.Now().UnixMilli()}
	}
	return nil
}

func (s *Store) GetReputation(ctx context.Context, identityID string) (*models.Reputation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reputations[identityID]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) SaveReputation(ctx context.Context, rep *models.Reputation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveReputationErr != nil {
		return s.SaveReputationErr
	}
	cp := *rep
	cp.Updated = time.Now().UnixMilli()
	s.reputations[rep.IdentityID] = &cp
	return nil
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LeaderboardEntry
	for id, r := range s.reputations {
		if i, ok := s.identities[id]; ok {
			out = append(out, models.LeaderboardEntry{Identity: *i, Reputation: *r})
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Reputation.TotalScore != out[b].Reputation.TotalScore {
			return out[a].Reputation.TotalScore > out[b].Reputation.TotalScore
		}
		return s.seq[out[a].Identity.ID] < s.seq[out[b].Identity.ID]
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetBadge(ctx context.Context, key string) (*models.Badge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.badges[key]; ok {
		return &b, nil
	}
	return nil, nil
}

func (s *Store) GrantBadge(ctx context.Context, identityID, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GrantErr != nil {
		return false, s.GrantErr
	}
	b, ok := s.badges[key]
	if !ok {
		return false, nil
	}
	for _, g := range s.grants[identityID] {
		if g.Key == key {
			return false, nil
		}
	}
	s.grants[identityID] = append(s.grants[identityID], models.BadgeGrant{Badge: b, IdentityID: identityID, Granted: time.Now().UnixMilli()})
	return true, nil
}

func (s *Store) ListBadgesFor(ctx context.Context, identityID string) ([]models.BadgeGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.BadgeGrant{}, s.grants[identityID]...), nil
}

func (s *Store) CountBadgesFor(ctx context.Context, identityID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.grants[identityID]), nil
}

func (s *Store) CreateBounty(ctx context.Context, b *models.Bounty) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	ts := s.stamp(b.ID)
	b.Created, b.Updated = ts, ts
	cp := *b
	s.bounties[b.ID] = &cp
	return nil
}

func (s *Store) GetBounty(ctx context.Context, id string) (*models.Bounty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bounties[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) ListBounties(ctx context.Context) ([]models.Bounty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Bounty{}
	for _, b := range s.bounties {
		out = append(out, *b)
	}
	sort.Slice(out, func(a, b int) bool { return s.seq[out[a].ID] > s.seq[out[b].ID] })
	return out, nil
}

func (s *Store) AcceptSubmission(ctx context.Context, bountyID, submissionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AcceptErr != nil {
		return false, s.AcceptErr
	}
	b, ok := s.bounties[bountyID]
	if !ok || b.Status != models.BountyPublished {
		return false, nil
	}
	sub, ok := s.submissions[submissionID]
	if !ok || sub.BountyID != bountyID || sub.Status != models.SubmissionPending {
		return false, nil
	}
	ts := time.Now().UnixMilli()
	b.Status, b.Updated = models.BountyClosed, ts
	sub.Status, sub.Updated = models.SubmissionAccepted, ts
	return true, nil
}

func (s *Store) CreateSubmission(ctx context.Context, sub *models.Submission) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bounties[sub.BountyID]
	if !ok || b.Status != models.BountyPublished {
		return false, nil
	}
	for _, existing := range s.submissions {
		if existing.BountyID == sub.BountyID && existing.ApplicantID == sub.ApplicantID {
			return false, nil
		}
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	ts := s.stamp(sub.ID)
	sub.Status = models.SubmissionPending
	sub.Created, sub.Updated = ts, ts
	cp := *sub
	s.submissions[sub.ID] = &cp
	return true, nil
}

func (s *Store) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.submissions[id]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) GetSubmissionByBountyAndApplicant(ctx context.Context, bountyID, applicantID string) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.submissions {
		if sub.BountyID == bountyID && sub.ApplicantID == applicantID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) ListSubmissionsByBounty(ctx context.Context, bountyID string) ([]models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Submission{}
	for _, sub := range s.submissions {
		if sub.BountyID == bountyID {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(a, b int) bool { return s.seq[out[a].ID] < s.seq[out[b].ID] })
	return out, nil
}

func (s *Store) UpdateSubmissionContent(ctx context.Context, id, content string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok || sub.Status != models.SubmissionPending {
		return false, nil
	}
	sub.Content, sub.Updated = content, time.Now().UnixMilli()
	return true, nil
}

func (s *Store) UpdateSubmissionStatus(ctx context.Context, id string, from, to models.SubmissionStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok || sub.Status != from {
		return false, nil
	}
	sub.Status, sub.Updated = to, time.Now().UnixMilli()
	return true, nil
}

func (s *Store) DeleteSubmission(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok || sub.Status != models.SubmissionPending {
		return false, nil
	}
	delete(s.submissions, id)
	return true, nil
}

func (s *Store) AcceptedStats(ctx context.Context, applicantID string) (int, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int
	var earnings float64
	for _, sub := range s.submissions {
		if sub.ApplicantID == applicantID && sub.Status == models.SubmissionAccepted {
			count++
			if b, ok := s.bounties[sub.BountyID]; ok {
				earnings += b.RewardAmount
			}
		}
	}
	return count, earnings, nil
}

// SetPenalties overwrites the penalty points of an identity's reputation.
func (s *Store) SetPenalties(identityID string, points int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reputations[identityID]; ok {
		r.PenaltyPoints = points
	}
}
