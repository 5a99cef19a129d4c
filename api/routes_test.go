package api_test

import (
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/sign"

	"github.com/garnizeh/bounty/api"
	"github.com/garnizeh/bounty/internal/auth"
	"github.com/garnizeh/bounty/internal/auth/challenge"
	"github.com/garnizeh/bounty/internal/badges"
	"github.com/garnizeh/bounty/internal/bounty"
	"github.com/garnizeh/bounty/internal/reputation"
	"github.com/garnizeh/bounty/internal/users"
	"github.com/garnizeh/bounty/pkg/models"
	"github.com/garnizeh/bounty/pkg/repository/mock"
)

func newRouter(t *testing.T, allowInsecure bool) http.Handler {
	t.Helper()
	store := mock.NewStore()
	awarder := badges.NewAwarder(store, nil)
	rep := reputation.NewEngine(store, store, store, nil)
	userSvc := users.NewService(store, store, awarder, rep, nil)

	challenges := challenge.NewMemoryStore(2*auth.DefaultChallengeTTL, time.Minute)
	t.Cleanup(challenges.Close)
	tokens := auth.NewTokenCodec("test-secret", time.Hour)
	authEngine := auth.NewEngine(challenges, userSvc, tokens, auth.Config{
		ChallengeTTL:       auth.DefaultChallengeTTL,
		AllowInsecureLogin: allowInsecure,
	}, nil)

	return api.SetupRoutes("test", "now", api.Services{
		Auth:     authEngine,
		Tokens:   tokens,
		Bounties: bounty.NewEngine(store, store, awarder, rep, nil, nil),
		Users:    userSvc,
	})
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func devLogin(t *testing.T, h http.Handler, wallet string) auth.Session {
	t.Helper()
	w := do(t, h, http.MethodPost, "/auth/dev-login", "", `{"publicKey":"`+wallet+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[auth.Session](t, w)
}

func TestWalletLoginFlow(t *testing.T) {
	h := newRouter(t, false)
	pub, priv, err := sign.GenerateKey(rand.Reader)
	require.NoError(t, err)
	wallet := base58.Encode(pub[:])

	w := do(t, h, http.MethodPost, "/auth/challenge", "", `{"publicKey":"`+wallet+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	c := decode[struct {
		Nonce   string `json:"nonce"`
		Message string `json:"message"`
	}](t, w)
	assert.Contains(t, c.Message, c.Nonce)

	signed := sign.Sign(nil, []byte(c.Message), priv)
	verifyBody, err := json.Marshal(map[string]string{
		"publicKey": wallet,
		"signature": base58.Encode(signed[:sign.Overhead]),
		"message":   c.Message,
		"nonce":     c.Nonce,
	})
	require.NoError(t, err)

	w = do(t, h, http.MethodPost, "/auth/verify", "", string(verifyBody))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	raw := decode[map[string]json.RawMessage](t, w)
	assert.Contains(t, raw, "token")
	assert.Contains(t, raw, "identity")
	assert.NotContains(t, raw, "user")
	session := decode[auth.Session](t, w)
	require.NotEmpty(t, session.Token)
	assert.Equal(t, wallet, session.Identity.WalletAddress)

	// the challenge is single use
	w = do(t, h, http.MethodPost, "/auth/verify", "", string(verifyBody))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/users/me", session.Token, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	profile := decode[models.Profile](t, w)
	assert.Equal(t, session.Identity.ID, profile.ID)
	assert.Len(t, profile.Badges, 2)
}

func TestVerifyRejections(t *testing.T) {
	h := newRouter(t, false)

	w := do(t, h, http.MethodPost, "/auth/verify", "", `{"publicKey":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/auth/verify", "", `{"publicKey":"abc","signature":"s","message":"m","nonce":"n"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, h, http.MethodPost, "/auth/challenge", "", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDevLoginRefusedByDefault(t *testing.T) {
	h := newRouter(t, false)
	w := do(t, h, http.MethodPost, "/auth/dev-login", "", `{"publicKey":"wallet"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newRouter(t, true)
	for _, rt := range []struct{ method, path string }{
		{http.MethodPost, "/bounties"},
		{http.MethodPost, "/bounties/b1/apply"},
		{http.MethodGet, "/bounties/b1/applications"},
		{http.MethodPatch, "/bounties/applications/s1/accept"},
		{http.MethodPatch, "/bounties/applications/s1/reject"},
		{http.MethodPost, "/bounties/applications/s1/delete"},
		{http.MethodGet, "/users/me"},
	} {
		w := do(t, h, rt.method, rt.path, "", `{}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", rt.method, rt.path)
	}
}

func TestPreflight(t *testing.T) {
	h := newRouter(t, false)
	w := do(t, h, http.MethodOptions, "/bounties/applications/s1/accept", "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestCreateBountyValidation(t *testing.T) {
	h := newRouter(t, true)
	creator := devLogin(t, h, "creator")

	for name, body := range map[string]string{
		"missing title":   `{"description":"d","rewardAmount":1}`,
		"negative reward": `{"title":"t","description":"d","rewardAmount":-1}`,
		"reward as text":  `{"title":"t","description":"d","rewardAmount":"10"}`,
		"long title":      `{"title":"` + strings.Repeat("a", bounty.MaxTitleLength+1) + `","description":"d","rewardAmount":1}`,
		"blank title":     `{"title":"   ","description":"d","rewardAmount":1}`,
		"bad deadline":    `{"title":"t","description":"d","rewardAmount":1,"deadline":"tomorrow"}`,
		"not json":        `{`,
	} {
		w := do(t, h, http.MethodPost, "/bounties", creator.Token, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%s: %s", name, w.Body.String())
	}

	w := do(t, h, http.MethodPost, "/bounties", creator.Token,
		`{"title":"t","description":"d","rewardAmount":5,"status":"DRAFT","deadline":"2030-01-01T00:00:00Z"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	b := decode[models.Bounty](t, w)
	assert.Equal(t, models.BountyPublished, b.Status)
	assert.Equal(t, creator.Identity.ID, b.CreatorID)
	require.NotNil(t, b.Deadline)
}

func TestBountyLifecycle(t *testing.T) {
	h := newRouter(t, true)
	creator := devLogin(t, h, "creator")
	x := devLogin(t, h, "applicant-x")
	y := devLogin(t, h, "applicant-y")

	w := do(t, h, http.MethodPost, "/bounties", creator.Token, `{"title":"Fix it","description":"details","rewardAmount":100,"badgeKey":"fast_solver"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	b := decode[models.Bounty](t, w)

	// creators cannot apply to their own bounty
	w = do(t, h, http.MethodPost, "/bounties/"+b.ID+"/apply", creator.Token, `{"content":"me"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/bounties/"+b.ID+"/apply", x.Token, `{"content":"from x"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	subX := decode[models.Submission](t, w)

	w = do(t, h, http.MethodPost, "/bounties/"+b.ID+"/apply", y.Token, `{"content":"from y"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	subY := decode[models.Submission](t, w)

	// only the creator lists applications
	w = do(t, h, http.MethodGet, "/bounties/"+b.ID+"/applications", x.Token, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, h, http.MethodGet, "/bounties/"+b.ID+"/applications", creator.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Submission](t, w), 2)

	// only the creator accepts
	w = do(t, h, http.MethodPatch, "/bounties/applications/"+subX.ID+"/accept", y.Token, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, h, http.MethodPatch, "/bounties/applications/"+subX.ID+"/accept", creator.Token, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.SubmissionAccepted, decode[models.Submission](t, w).Status)

	// single winner
	w = do(t, h, http.MethodPatch, "/bounties/applications/"+subY.ID+"/accept", creator.Token, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	// rejecting after close is still allowed for pending submissions
	w = do(t, h, http.MethodPatch, "/bounties/applications/"+subY.ID+"/reject", creator.Token, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, h, http.MethodPatch, "/bounties/applications/"+subY.ID+"/reject", creator.Token, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodGet, "/bounties/"+b.ID, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[models.BountyDetail](t, w)
	assert.Equal(t, models.BountyClosed, detail.Status)
	assert.Len(t, detail.Submissions, 2)

	// the winner got the bounty's badge
	w = do(t, h, http.MethodGet, "/users/me", x.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[models.Profile](t, w)
	require.NotNil(t, profile.Reputation)
	assert.Equal(t, 1, profile.Reputation.CompletedBounties)
	assert.Equal(t, 100.0, profile.Reputation.TotalEarnings)
	keys := make([]string, 0, len(profile.Badges))
	for _, g := range profile.Badges {
		keys = append(keys, g.Key)
	}
	assert.Contains(t, keys, "fast_solver")
	assert.NotContains(t, keys, models.BadgeFirstBountyWin)

	w = do(t, h, http.MethodGet, "/users/leaderboard", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	board := decode[[]models.LeaderboardEntry](t, w)
	require.NotEmpty(t, board)
	assert.Equal(t, x.Identity.ID, board[0].Identity.ID)
}

func TestDeleteThenReapply(t *testing.T) {
	h := newRouter(t, true)
	creator := devLogin(t, h, "creator")
	x := devLogin(t, h, "applicant-x")

	w := do(t, h, http.MethodPost, "/bounties", creator.Token, `{"title":"t","description":"d","rewardAmount":1}`)
	require.Equal(t, http.StatusCreated, w.Code)
	b := decode[models.Bounty](t, w)

	w = do(t, h, http.MethodPost, "/bounties/"+b.ID+"/apply", x.Token, `{"content":"first"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	sub := decode[models.Submission](t, w)

	w = do(t, h, http.MethodPost, "/bounties/applications/"+sub.ID+"/delete", creator.Token, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, h, http.MethodPost, "/bounties/applications/"+sub.ID+"/delete", x.Token, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, "/bounties/applications/"+sub.ID+"/delete", x.Token, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPost, "/bounties/"+b.ID+"/apply", x.Token, `{"content":"second"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "second", decode[models.Submission](t, w).Content)
}

func TestUnknownBounty(t *testing.T) {
	h := newRouter(t, false)
	w := do(t, h, http.MethodGet, "/bounties/does-not-exist", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodGet, "/bounties", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}
