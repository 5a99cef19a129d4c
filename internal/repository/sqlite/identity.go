package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/bounty/pkg/models"
)

const identityColumns = `id, wallet_address, username, created, updated`

func scanIdentity(row scanner) (*models.Identity, error) {
	var i models.Identity
	var username sql.NullString
	if err := row.Scan(&i.ID, &i.WalletAddress, &username, &i.Created, &i.Updated); err != nil {
		return nil, err
	}
	if username.Valid {
		i.Username = &username.String
	}
	return &i, nil
}

func (r *SQLiteRepo) GetIdentityByID(ctx context.Context, id string) (*models.Identity, error) {
	i, err := scanIdentity(r.conn.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return i, err
}

func (r *SQLiteRepo) GetIdentityByWallet(ctx context.Context, wallet string) (*models.Identity, error) {
	i, err := scanIdentity(r.conn.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE wallet_address = ?`, wallet))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return i, err
}

func (r *SQLiteRepo) UpsertIdentityByWallet(ctx context.Context, wallet string) (*models.Identity, bool, error) {
	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO identities (id, wallet_address, created, updated) VALUES (?, ?, ?, ?) ON CONFLICT(wallet_address) DO NOTHING`, newID(), wallet, ts, ts)
	if err != nil {
		return nil, false, fmt.Errorf("upsert identity: %w", err)
	}
	created, err := affected(res)
	if err != nil {
		return nil, false, err
	}

	i, err := r.GetIdentityByWallet(ctx, wallet)
	if err != nil {
		return nil, false, err
	}
	if i == nil {
		return nil, false, fmt.Errorf("identity for wallet %s missing after upsert", wallet)
	}
	return i, created, nil
}
