package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/src-lua/apogee/internal/calendar"
)

type InstanceRepo struct {
	db *sql.DB
}

func NewInstanceRepo(db *sql.DB) *InstanceRepo {
	return &InstanceRepo{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const instanceColumns = `user_id, template_id, day, name, reward, status, completed_at, late, modified_ns, version`

func (r *InstanceRepo) Get(ctx context.Context, userID string, key InstanceKey) (*Instance, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+instanceColumns+`
		FROM instances
		WHERE user_id = ? AND template_id = ? AND day = ?
	`, userID, key.TemplateID, key.Day.String())
	in, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("instance get: %w", err)
	}
	return in, nil
}

func (r *InstanceRepo) ListByDay(ctx context.Context, userID string, day calendar.Day) ([]Instance, error) {
	return r.list(ctx, "instance list by day", `
		SELECT `+instanceColumns+`
		FROM instances
		WHERE user_id = ? AND day = ?
		ORDER BY name ASC, template_id ASC
	`, userID, day.String())
}

func (r *InstanceRepo) ListByTemplate(ctx context.Context, userID, templateID string) ([]Instance, error) {
	return r.list(ctx, "instance list by template", `
		SELECT `+instanceColumns+`
		FROM instances
		WHERE user_id = ? AND template_id = ?
		ORDER BY day ASC
	`, userID, templateID)
}

func (r *InstanceRepo) ListAll(ctx context.Context, userID string) ([]Instance, error) {
	return r.list(ctx, "instance list", `
		SELECT `+instanceColumns+`
		FROM instances
		WHERE user_id = ?
		ORDER BY day ASC, template_id ASC
	`, userID)
}

func (r *InstanceRepo) list(ctx context.Context, op string, query string, args ...any) ([]Instance, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []Instance
	for rows.Next() {
		in, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	return out, nil
}

func (r *InstanceRepo) Days(ctx context.Context, userID string) ([]calendar.Day, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT day FROM instances WHERE user_id = ? ORDER BY day ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("instance days: %w", err)
	}
	defer rows.Close()

	var out []calendar.Day
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("instance days scan: %w", err)
		}
		d, err := calendar.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("instance days: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("instance days rows: %w", err)
	}
	return out, nil
}

func (r *InstanceRepo) Put(ctx context.Context, in Instance) error {
	return putInstance(ctx, r.db, in)
}

func (r *InstanceRepo) PutBatch(ctx context.Context, batch []Instance) ([]Instance, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	var written []Instance
	err := WithTx(ctx, r.db, func(tx *sql.Tx) error {
		written = written[:0]
		for _, in := range batch {
			err := putInstance(ctx, tx, in)
			if errors.Is(err, ErrConflict) {
				continue
			}
			if err != nil {
				return err
			}
			written = append(written, in)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

func putInstance(ctx context.Context, db execer, in Instance) error {
	var completedAt sql.NullTime
	if in.CompletedAt != nil {
		completedAt = sql.NullTime{Time: in.CompletedAt.UTC(), Valid: true}
	}
	cols := []any{in.Name, in.Reward, string(in.Status), completedAt, boolToInt(in.Late), toNanos(in.LastModified), in.Version}
	key := []any{in.UserID, in.TemplateID, in.Day.String()}

	err := versionedWrite(ctx, db, `
		UPDATE instances SET
			name = ?, reward = ?, status = ?, completed_at = ?, late = ?, modified_ns = ?, version = ?
		WHERE user_id = ? AND template_id = ? AND day = ? AND version = ?
	`, append(slices.Clone(cols), key...), in.Version-1, `
		INSERT INTO instances (`+instanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, template_id, day) DO NOTHING
	`, append(slices.Clone(key), cols...))
	if err != nil {
		return fmt.Errorf("instance put %s: %w", in.Key(), err)
	}
	return nil
}

func (r *InstanceRepo) DeletePending(ctx context.Context, userID string, key InstanceKey) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM instances
		WHERE user_id = ? AND template_id = ? AND day = ? AND status = 'pending'
	`, userID, key.TemplateID, key.Day.String())
	if err != nil {
		return false, fmt.Errorf("instance delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("instance delete rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *InstanceRepo) DeletePendingFrom(ctx context.Context, userID, templateID string, from calendar.Day) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM instances
		WHERE user_id = ? AND template_id = ? AND day >= ? AND status = 'pending'
	`, userID, templateID, from.String())
	if err != nil {
		return 0, fmt.Errorf("instance prune pending: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("instance prune rows affected: %w", err)
	}
	return int(n), nil
}

func scanInstance(row scanner) (*Instance, error) {
	var (
		in          Instance
		dayRaw      string
		status      string
		completedAt sql.NullTime
		late        int
		modifiedNs  int64
	)
	if err := row.Scan(&in.UserID, &in.TemplateID, &dayRaw, &in.Name, &in.Reward, &status, &completedAt, &late, &modifiedNs, &in.Version); err != nil {
		return nil, err
	}
	d, err := calendar.Parse(dayRaw)
	if err != nil {
		return nil, err
	}
	in.Day = d
	in.Status = InstanceStatus(status)
	if completedAt.Valid {
		v := completedAt.Time
		in.CompletedAt = &v
	}
	in.Late = late != 0
	in.LastModified = fromNanos(modifiedNs)
	return &in, nil
}
