package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type StreakRepo struct {
	db *sql.DB
}

func NewStreakRepo(db *sql.DB) *StreakRepo {
	return &StreakRepo{db: db}
}

const streakColumns = `user_id, template_id, current_streak, best_streak, total_completions,
	last_completed_day, current_start_day, as_of, template_modified_ns, calculated_ns`

func (r *StreakRepo) Get(ctx context.Context, userID, templateID string) (*StreakRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+streakColumns+` FROM streaks WHERE user_id = ? AND template_id = ?`, userID, templateID)
	rec, err := scanStreak(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("streak get: %w", err)
	}
	return rec, nil
}

func (r *StreakRepo) List(ctx context.Context, userID string) ([]StreakRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+streakColumns+` FROM streaks WHERE user_id = ? ORDER BY template_id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("streak list: %w", err)
	}
	defer rows.Close()

	var out []StreakRecord
	for rows.Next() {
		rec, err := scanStreak(rows)
		if err != nil {
			return nil, fmt.Errorf("streak list: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("streak list rows: %w", err)
	}
	return out, nil
}

func (r *StreakRepo) Put(ctx context.Context, rec StreakRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO streaks (`+streakColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, template_id) DO UPDATE SET
			current_streak = excluded.current_streak,
			best_streak = excluded.best_streak,
			total_completions = excluded.total_completions,
			last_completed_day = excluded.last_completed_day,
			current_start_day = excluded.current_start_day,
			as_of = excluded.as_of,
			template_modified_ns = excluded.template_modified_ns,
			calculated_ns = excluded.calculated_ns
	`, rec.UserID, rec.TemplateID, rec.CurrentStreak, rec.BestStreak, rec.TotalCompletions,
		nullDay(rec.LastCompletedDay), nullDay(rec.CurrentStreakStartDay), nullDay(rec.AsOf),
		toNanos(rec.TemplateModified), toNanos(rec.CalculatedAt))
	if err != nil {
		return fmt.Errorf("streak put: %w", err)
	}
	return nil
}

func (r *StreakRepo) Delete(ctx context.Context, userID, templateID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM streaks WHERE user_id = ? AND template_id = ?`, userID, templateID); err != nil {
		return fmt.Errorf("streak delete: %w", err)
	}
	return nil
}

func scanStreak(row scanner) (*StreakRecord, error) {
	var (
		rec          StreakRecord
		lastDone     sql.NullString
		startDay     sql.NullString
		asOf         sql.NullString
		tmplModified int64
		calculated   int64
	)
	if err := row.Scan(&rec.UserID, &rec.TemplateID, &rec.CurrentStreak, &rec.BestStreak, &rec.TotalCompletions,
		&lastDone, &startDay, &asOf, &tmplModified, &calculated); err != nil {
		return nil, err
	}
	var err error
	if rec.LastCompletedDay, err = scanDay(lastDone); err != nil {
		return nil, err
	}
	if rec.CurrentStreakStartDay, err = scanDay(startDay); err != nil {
		return nil, err
	}
	if rec.AsOf, err = scanDay(asOf); err != nil {
		return nil, err
	}
	rec.TemplateModified = fromNanos(tmplModified)
	rec.CalculatedAt = fromNanos(calculated)
	return &rec, nil
}
