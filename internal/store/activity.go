// ABOUTME: Activity log store methods for the append-only audit trail
// ABOUTME: Records who did what and when; entries are never updated or deleted

package store

import (
	"context"
	"database/sql"
	"time"
)

// normalizeActivityLimit applies default (100) and cap (1000) to a list limit.
func normalizeActivityLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

// AppendActivity appends a new entry to the activity log.
// Sets ID, and Timestamp if it is zero.
func (s *SQLiteStore) AppendActivity(ctx context.Context, rec *ActivityRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	var sessionID *string
	if rec.SessionID != "" {
		sessionID = &rec.SessionID
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (actor_id, description, ts, session_id)
		VALUES (?, ?, ?, ?)
	`,
		rec.ActorID,
		rec.Description,
		formatTime(rec.Timestamp),
		sessionID,
	)
	if err != nil {
		return storageErr("inserting activity", err)
	}

	rec.ID, err = result.LastInsertId()
	if err != nil {
		return storageErr("reading activity id", err)
	}

	s.logger.Debug("appended activity", "id", rec.ID, "actor", rec.ActorID)
	return nil
}

// ListActivity returns the most recent entries, newest first.
func (s *SQLiteStore) ListActivity(ctx context.Context, limit int) ([]*ActivityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, description, session_id, ts
		FROM activity_log
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, normalizeActivityLimit(limit))
	if err != nil {
		return nil, storageErr("querying activity", err)
	}
	defer rows.Close()

	records := []*ActivityRecord{}
	for rows.Next() {
		var rec ActivityRecord
		var sessionID sql.NullString
		var ts string
		if err := rows.Scan(&rec.ID, &rec.ActorID, &rec.Description, &sessionID, &ts); err != nil {
			return nil, storageErr("scanning activity", err)
		}
		rec.SessionID = sessionID.String
		if rec.Timestamp, err = parseTime(ts); err != nil {
			return nil, storageErr("parsing activity timestamp", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating activity", err)
	}
	return records, nil
}
