package sqlite

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/bounty/internal/db"
	"github.com/garnizeh/bounty/pkg/repository"
)

// SQLiteRepo implements repository interfaces using the internal DB wrapper.
type SQLiteRepo struct {
	conn   *db.DB
	logger *slog.Logger
}

// Ensure SQLiteRepo implements the public interfaces.
var _ repository.IdentityRepo = (*SQLiteRepo)(nil)
var _ repository.ReputationRepo = (*SQLiteRepo)(nil)
var _ repository.BadgeRepo = (*SQLiteRepo)(nil)
var _ repository.BountyRepo = (*SQLiteRepo)(nil)
var _ repository.SubmissionRepo = (*SQLiteRepo)(nil)

func New(conn *db.DB, logger *slog.Logger) *SQLiteRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteRepo{conn: conn, logger: logger}
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}

func newID() string {
	return uuid.NewString()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
