package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type LedgerRepo struct {
	db *sql.DB
}

func NewLedgerRepo(db *sql.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

func (r *LedgerRepo) Get(ctx context.Context, userID string) (*LedgerState, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, base_xp, today_xp, tomorrow_xp, last_rollover_day, coins, diamonds,
			level, highest_level, last_seen_ns, modified_ns, version
		FROM ledgers
		WHERE user_id = ?
	`, userID)

	var (
		s          LedgerState
		lastDay    sql.NullString
		lastSeen   int64
		modifiedNs int64
	)
	err := row.Scan(&s.UserID, &s.BaseXP, &s.TodayXP, &s.TomorrowXP, &lastDay, &s.Coins, &s.Diamonds,
		&s.Level, &s.HighestLevel, &lastSeen, &modifiedNs, &s.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger get: %w", err)
	}
	if s.LastRolloverDay, err = scanDay(lastDay); err != nil {
		return nil, fmt.Errorf("ledger get: %w", err)
	}
	s.LastSeenAt = fromNanos(lastSeen)
	s.LastModified = fromNanos(modifiedNs)
	return &s, nil
}

// Put writes the whole ledger row in one statement, so bucket, level and
// diamond changes land together. It is a versioned write.
func (r *LedgerRepo) Put(ctx context.Context, s LedgerState) error {
	cols := []any{s.BaseXP, s.TodayXP, s.TomorrowXP, nullDay(s.LastRolloverDay), s.Coins, s.Diamonds,
		s.Level, s.HighestLevel, toNanos(s.LastSeenAt), toNanos(s.LastModified), s.Version}
	err := versionedWrite(ctx, r.db, `
		UPDATE ledgers SET
			base_xp = ?, today_xp = ?, tomorrow_xp = ?, last_rollover_day = ?, coins = ?, diamonds = ?,
			level = ?, highest_level = ?, last_seen_ns = ?, modified_ns = ?, version = ?
		WHERE user_id = ? AND version = ?
	`, append(cols, s.UserID), s.Version-1, `
		INSERT INTO ledgers (base_xp, today_xp, tomorrow_xp, last_rollover_day, coins, diamonds,
			level, highest_level, last_seen_ns, modified_ns, version, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, append(cols, s.UserID))
	if err != nil {
		return fmt.Errorf("ledger put %s: %w", s.UserID, err)
	}
	return nil
}
