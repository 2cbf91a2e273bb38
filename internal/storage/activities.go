package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"orcamento/internal/core"
)

func (q *Queries) InsertActivity(ctx context.Context, a core.Activity) (int64, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO activities (action, entity_type, entity_name, details, person_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.Action, a.EntityType, a.EntityName, a.Details, nullInt(a.PersonID), formatTime(a.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("insert activity %s/%s: %w", a.Action, a.EntityType, translate(err))
	}
	return res.LastInsertId()
}

// ListActivities returns the newest activities first.
func (q *Queries) ListActivities(ctx context.Context, limit int) ([]core.Activity, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, action, entity_type, entity_name, details, person_id, created_at
		FROM activities ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var out []core.Activity
	for rows.Next() {
		var (
			a       core.Activity
			person  sql.NullInt64
			created string
		)
		if err := rows.Scan(&a.ID, &a.Action, &a.EntityType, &a.EntityName, &a.Details, &person, &created); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parse activity created_at: %w", err)
		}
		a.PersonID = intPtr(person)
		out = append(out, a)
	}
	return out, rows.Err()
}
