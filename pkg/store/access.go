package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"server-splitter/pkg/model"
)

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func sortByID[T any](items []T, id func(T) int64) {
	sort.Slice(items, func(i, j int) bool { return id(items[i]) < id(items[j]) })
}

func (q *queries) Subusers(ctx context.Context, serverID int64) ([]*model.Subuser, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, server_id, user_id, permissions FROM subusers WHERE server_id = ? ORDER BY id", serverID)
	if err != nil {
		return nil, fmt.Errorf("list subusers of server %d: %w", serverID, err)
	}
	defer rows.Close()

	var out []*model.Subuser
	for rows.Next() {
		var (
			s     model.Subuser
			perms string
		)
		if err := rows.Scan(&s.ID, &s.ServerID, &s.UserID, &perms); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(perms), &s.Permissions); err != nil {
			return nil, fmt.Errorf("decode permissions of subuser %d: %w", s.ID, err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (q *queries) InsertSubuser(ctx context.Context, s *model.Subuser) error {
	perms := s.Permissions
	if perms == nil {
		perms = []string{}
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO subusers (server_id, user_id, permissions) VALUES (?, ?, ?)", s.ServerID, s.UserID, string(raw))
	if err != nil {
		return fmt.Errorf("insert subuser %d on server %d: %w", s.UserID, s.ServerID, err)
	}
	s.ID, err = res.LastInsertId()
	return err
}

// GetSetting returns the stored value and whether one exists.
func (q *queries) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := q.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, true, nil
}

func (q *queries) SetSetting(ctx context.Context, key, value string) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (q *queries) InsertActivity(ctx context.Context, a *model.ActivityLog) error {
	props := a.Properties
	if props == nil {
		props = map[string]interface{}{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("encode activity %s: %w", a.Event, err)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO activity_logs (event, server_id, properties, created_at) VALUES (?, ?, ?, ?)",
		a.Event, nullInt(a.ServerID), string(raw), a.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert activity %s: %w", a.Event, err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

// ListActivity returns the newest entries for a server first.
func (q *queries) ListActivity(ctx context.Context, serverID int64, limit int) ([]*model.ActivityLog, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, event, server_id, properties, created_at FROM activity_logs WHERE server_id = ? ORDER BY id DESC LIMIT ?",
		serverID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity of server %d: %w", serverID, err)
	}
	defer rows.Close()

	var out []*model.ActivityLog
	for rows.Next() {
		var (
			a       model.ActivityLog
			sid     *int64
			props   string
			created int64
		)
		if err := rows.Scan(&a.ID, &a.Event, &sid, &props, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(props), &a.Properties); err != nil {
			return nil, fmt.Errorf("decode activity %d: %w", a.ID, err)
		}
		a.ServerID = sid
		a.CreatedAt = time.UnixMilli(created)
		out = append(out, &a)
	}
	return out, rows.Err()
}
