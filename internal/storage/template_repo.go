package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type TemplateRepo struct {
	db *sql.DB
}

func NewTemplateRepo(db *sql.DB) *TemplateRepo {
	return &TemplateRepo{db: db}
}

const templateColumns = `id, user_id, name, reward, recurrence, active, start_day, end_day, created_at, modified_ns, version`

func (r *TemplateRepo) Get(ctx context.Context, userID, id string) (*Template, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE user_id = ? AND id = ?`, userID, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("template get: %w", err)
	}
	return t, nil
}

func (r *TemplateRepo) List(ctx context.Context, userID string) ([]Template, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE user_id = ? ORDER BY name ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("template list: %w", err)
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("template list: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("template list rows: %w", err)
	}
	return out, nil
}

func (r *TemplateRepo) Put(ctx context.Context, t Template) error {
	rec, err := json.Marshal(t.Recurrence)
	if err != nil {
		return fmt.Errorf("marshal recurrence: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO templates (`+templateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, id) DO UPDATE SET
			name = excluded.name,
			reward = excluded.reward,
			recurrence = excluded.recurrence,
			active = excluded.active,
			start_day = excluded.start_day,
			end_day = excluded.end_day,
			modified_ns = excluded.modified_ns,
			version = excluded.version
	`, t.ID, t.UserID, t.Name, t.Reward, string(rec), boolToInt(t.Active),
		nullDay(t.StartDate), nullDay(t.EndDate), t.CreatedAt.UTC(), toNanos(t.LastModified), t.Version)
	if err != nil {
		return fmt.Errorf("template put: %w", err)
	}
	return nil
}

func (r *TemplateRepo) Delete(ctx context.Context, userID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE user_id = ? AND id = ?`, userID, id); err != nil {
		return fmt.Errorf("template delete: %w", err)
	}
	return nil
}

func scanTemplate(row scanner) (*Template, error) {
	var (
		t          Template
		recRaw     string
		active     int
		startDay   sql.NullString
		endDay     sql.NullString
		createdAt  time.Time
		modifiedNs int64
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Reward, &recRaw, &active, &startDay, &endDay, &createdAt, &modifiedNs, &t.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(recRaw), &t.Recurrence); err != nil {
		return nil, fmt.Errorf("unmarshal recurrence: %w", err)
	}
	var err error
	if t.StartDate, err = scanDay(startDay); err != nil {
		return nil, err
	}
	if t.EndDate, err = scanDay(endDay); err != nil {
		return nil, err
	}
	t.Active = active != 0
	t.CreatedAt = createdAt
	t.LastModified = fromNanos(modifiedNs)
	return &t, nil
}
