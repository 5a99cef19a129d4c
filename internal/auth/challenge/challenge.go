// Package challenge stores outstanding login challenges, one per wallet key.
package challenge

import (
	"context"
	"time"
)

// Challenge is a server-issued login message awaiting a wallet signature.
type Challenge struct {
	OwnerKey string    `json:"ownerKey"`
	Nonce    string    `json:"nonce"`
	Message  string    `json:"message"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Store keeps at most one challenge per owner key. Entries are retained for
// a bounded time; expiry as seen by clients is decided by the caller from
// IssuedAt.
type Store interface {
	// Put stores c, replacing any challenge held for c.OwnerKey.
	Put(ctx context.Context, c Challenge) error
	// Get returns the challenge for key, or nil when there is none.
	Get(ctx context.Context, key string) (*Challenge, error)
	// Consume deletes the challenge for key only if its nonce equals nonce,
	// reporting whether it did. Of concurrent callers at most one wins.
	Consume(ctx context.Context, key, nonce string) (bool, error)
}
