// Package auth implements password-less wallet login: a server-issued
// challenge is signed with the wallet's private key and exchanged for a
// session token.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/garnizeh/bounty/internal/apperr"
	"github.com/garnizeh/bounty/internal/auth/challenge"
	"github.com/garnizeh/bounty/pkg/models"
)

// DefaultChallengeTTL is how long an issued challenge may be answered.
const DefaultChallengeTTL = 5 * time.Minute

const nonceBytes = 16

type Config struct {
	ChallengeTTL time.Duration
	// AllowInsecureLogin enables DevLogin, which skips signature checks.
	AllowInsecureLogin bool
}

type IdentityUpserter interface {
	UpsertByWallet(ctx context.Context, wallet string) (*models.Identity, error)
}

// Session is the result of a successful login.
type Session struct {
	Token    string           `json:"token"`
	Identity *models.Identity `json:"identity"`
}

type VerifyRequest struct {
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
	Message   string `json:"message"`
	Nonce     string `json:"nonce"`
}

type Engine struct {
	store      challenge.Store
	identities IdentityUpserter
	tokens     *TokenCodec
	verify     SignatureVerifier
	cfg        Config
	now        func() time.Time
	logger     *slog.Logger
}

type Option func(*Engine)

// WithClock replaces the wall clock used for challenge timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithVerifier(v SignatureVerifier) Option {
	return func(e *Engine) { e.verify = v }
}

func NewEngine(store challenge.Store, identities IdentityUpserter, tokens *TokenCodec, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = DefaultChallengeTTL
	}
	e := &Engine{
		store:      store,
		identities: identities,
		tokens:     tokens,
		verify:     VerifySignature,
		cfg:        cfg,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Message is the text a wallet signs to prove ownership of key.
func Message(key, nonce string) string {
	return "Sol Bounties login\n\nWallet: " + key + "\nNonce: " + nonce + "\n\nSign this message to authenticate."
}

// normalizeNewlines maps CRLF and lone CR to LF.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func newNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// CreateChallenge issues a fresh challenge for key, replacing any
// outstanding one.
func (e *Engine) CreateChallenge(ctx context.Context, key string) (*challenge.Challenge, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%w: publicKey is required", apperr.ErrInvalidInput)
	}
	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}
	c := challenge.Challenge{
		OwnerKey: key,
		Nonce:    nonce,
		Message:  Message(key, nonce),
		IssuedAt: e.now(),
	}
	if err := e.store.Put(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Verify checks a signed challenge and logs the wallet in. Only an expired
// challenge is discarded on failure; the others stay answerable until they
// expire.
func (e *Engine) Verify(ctx context.Context, req VerifyRequest) (*Session, error) {
	if req.PublicKey == "" || req.Signature == "" || req.Nonce == "" || req.Message == "" {
		return nil, fmt.Errorf("%w: publicKey, signature, message and nonce are required", apperr.ErrInvalidInput)
	}

	c, err := e.store.Get(ctx, req.PublicKey)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, e.reject(req.PublicKey, apperr.ErrNoChallenge)
	}
	if req.Nonce != c.Nonce {
		return nil, e.reject(req.PublicKey, apperr.ErrNonceMismatch)
	}
	expected := normalizeNewlines(c.Message)
	if normalizeNewlines(req.Message) != expected {
		return nil, e.reject(req.PublicKey, apperr.ErrMessageMismatch)
	}
	if e.now().Sub(c.IssuedAt) > e.cfg.ChallengeTTL {
		if _, err := e.store.Consume(ctx, req.PublicKey, c.Nonce); err != nil {
			e.logger.Error("discard expired challenge", slog.String("wallet", req.PublicKey), slog.Any("err", err))
		}
		return nil, e.reject(req.PublicKey, apperr.ErrChallengeExpired)
	}
	if !e.verify(req.PublicKey, req.Signature, []byte(expected)) {
		return nil, e.reject(req.PublicKey, apperr.ErrInvalidSignature)
	}

	consumed, err := e.store.Consume(ctx, req.PublicKey, c.Nonce)
	if err != nil {
		return nil, err
	}
	if !consumed {
		// a concurrent verify of the same challenge won
		return nil, e.reject(req.PublicKey, apperr.ErrNoChallenge)
	}
	return e.login(ctx, req.PublicKey)
}

// DevLogin logs key in without a signature. It is refused unless the engine
// was built with AllowInsecureLogin.
func (e *Engine) DevLogin(ctx context.Context, key string) (*Session, error) {
	if !e.cfg.AllowInsecureLogin {
		return nil, fmt.Errorf("%w: insecure login is disabled", apperr.ErrForbidden)
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%w: publicKey is required", apperr.ErrInvalidInput)
	}
	e.logger.Warn("insecure login", slog.String("wallet", key))
	return e.login(ctx, key)
}

func (e *Engine) login(ctx context.Context, key string) (*Session, error) {
	identity, err := e.identities.UpsertByWallet(ctx, key)
	if err != nil {
		return nil, err
	}
	token, err := e.tokens.Issue(identity.ID, identity.WalletAddress)
	if err != nil {
		return nil, err
	}
	e.logger.Info("login", slog.String("identity_id", identity.ID), slog.String("wallet", key))
	return &Session{Token: token, Identity: identity}, nil
}

func (e *Engine) reject(key string, reason error) error {
	e.logger.Warn("login rejected", slog.String("wallet", key), slog.String("reason", reason.Error()))
	return reason
}
