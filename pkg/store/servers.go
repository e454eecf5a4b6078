package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"server-splitter/pkg/model"
)

// featureColumns lists the stored feature limit columns, in the order they are
// selected, resolved through the feature name table.
var featureColumns = func() []string {
	cols := make([]string, 0, len(model.AssignableFeatures))
	for _, f := range model.AssignableFeatures {
		cols = append(cols, f.Column())
	}
	return cols
}()

var serverColumns = "id, uuid, name, description, owner_id, node_id, allocation_id, nest_id, egg_id, " +
	"parent_id, splitter_limit, cpu, memory, disk, swap, io, threads, oom_disabled, startup, image, " +
	strings.Join(featureColumns, ", ")

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanServer(row rowScanner) (*model.Server, error) {
	var (
		s        model.Server
		parentID sql.NullInt64
		threads  sql.NullString
		oom      int
	)
	features := make([]int64, len(featureColumns))
	dest := []interface{}{
		&s.ID, &s.UUID, &s.Name, &s.Description, &s.OwnerID, &s.NodeID, &s.AllocationID, &s.NestID, &s.EggID,
		&parentID, &s.SplitterLimit, &s.Limits.CPU, &s.Limits.Memory, &s.Limits.Disk, &s.Limits.Swap, &s.Limits.IO,
		&threads, &oom, &s.Startup, &s.Image,
	}
	for i := range features {
		dest = append(dest, &features[i])
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if parentID.Valid {
		id := parentID.Int64
		s.ParentID = &id
	}
	if threads.Valid {
		t := threads.String
		s.Threads = &t
	}
	s.OOMDisabled = oom != 0
	s.FeatureLimits = model.FeatureLimits{}
	for i, col := range featureColumns {
		f, _ := model.FeatureForColumn(col)
		s.FeatureLimits[f] = features[i]
	}
	return &s, nil
}

func (q *queries) listServers(ctx context.Context, where string, args ...interface{}) ([]*model.Server, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT "+serverColumns+" FROM servers WHERE "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	defer rows.Close()

	var out []*model.Server
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *queries) GetServer(ctx context.Context, id int64) (*model.Server, error) {
	s, err := scanServer(q.db.QueryRowContext(ctx, "SELECT "+serverColumns+" FROM servers WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err, "server", id)
	}
	return s, nil
}

func (q *queries) GetServerByUUID(ctx context.Context, uuid string) (*model.Server, error) {
	s, err := scanServer(q.db.QueryRowContext(ctx, "SELECT "+serverColumns+" FROM servers WHERE uuid = ?", uuid))
	if err != nil {
		return nil, notFound(err, "server", uuid)
	}
	return s, nil
}

// Children returns the direct splits of parentID ordered by id.
func (q *queries) Children(ctx context.Context, parentID int64) ([]*model.Server, error) {
	return q.listServers(ctx, "parent_id = ?", parentID)
}

func (q *queries) CountChildren(ctx context.Context, parentID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM servers WHERE parent_id = ?", parentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count children of %d: %w", parentID, err)
	}
	return n, nil
}

// NodeThreadStrings returns the non-empty pinning strings of servers on a node,
// leaving out excludeServerID.
func (q *queries) NodeThreadStrings(ctx context.Context, nodeID, excludeServerID int64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT threads FROM servers WHERE node_id = ? AND id != ? AND threads IS NOT NULL AND threads != '' ORDER BY id",
		nodeID, excludeServerID)
	if err != nil {
		return nil, fmt.Errorf("list thread strings on node %d: %w", nodeID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertServer stores s and sets its ID.
func (q *queries) InsertServer(ctx context.Context, s *model.Server) error {
	cols := "uuid, name, description, owner_id, node_id, allocation_id, nest_id, egg_id, parent_id, splitter_limit, " +
		"cpu, memory, disk, swap, io, threads, oom_disabled, startup, image"
	args := []interface{}{
		s.UUID, s.Name, s.Description, s.OwnerID, s.NodeID, s.AllocationID, s.NestID, s.EggID,
		nullInt(s.ParentID), s.SplitterLimit,
		s.Limits.CPU, s.Limits.Memory, s.Limits.Disk, s.Limits.Swap, s.Limits.IO,
		nullString(s.Threads), boolInt(s.OOMDisabled), s.Startup, s.Image,
	}
	for _, f := range model.AssignableFeatures {
		cols += ", " + f.Column()
		args = append(args, s.FeatureLimits.Get(f))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")

	res, err := q.db.ExecContext(ctx, "INSERT INTO servers ("+cols+") VALUES ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("insert server %s: %w", s.UUID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

// UpdateServer writes the mutable columns of s.
func (q *queries) UpdateServer(ctx context.Context, s *model.Server) error {
	set := "name = ?, description = ?, splitter_limit = ?, cpu = ?, memory = ?, disk = ?, swap = ?, io = ?, " +
		"threads = ?, oom_disabled = ?, egg_id = ?, nest_id = ?, startup = ?, image = ?"
	args := []interface{}{
		s.Name, s.Description, s.SplitterLimit, s.Limits.CPU, s.Limits.Memory, s.Limits.Disk, s.Limits.Swap, s.Limits.IO,
		nullString(s.Threads), boolInt(s.OOMDisabled), s.EggID, s.NestID, s.Startup, s.Image,
	}
	for _, f := range model.AssignableFeatures {
		set += ", " + f.Column() + " = ?"
		args = append(args, s.FeatureLimits.Get(f))
	}
	args = append(args, s.ID)
	return q.execOne(ctx, "UPDATE servers SET "+set+" WHERE id = ?", "server", s.ID, args...)
}

// DeleteServer removes the server row and everything owned by it. Allocations
// are freed rather than deleted.
func (q *queries) DeleteServer(ctx context.Context, id int64) error {
	for _, stmt := range []string{
		"DELETE FROM server_variables WHERE server_id = ?",
		"DELETE FROM subusers WHERE server_id = ?",
		"DELETE FROM backups WHERE server_id = ?",
		"DELETE FROM databases WHERE server_id = ?",
		"UPDATE allocations SET server_id = NULL WHERE server_id = ?",
	} {
		if _, err := q.db.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("delete server %d: %w", id, err)
		}
	}
	return q.execOne(ctx, "DELETE FROM servers WHERE id = ?", "server", id, id)
}

// AdjustLimits adds d to the stored cpu, memory, disk and feature limit
// columns of a server in a single statement.
func (q *queries) AdjustLimits(ctx context.Context, id int64, d model.Delta) error {
	set := "cpu = cpu + ?, memory = memory + ?, disk = disk + ?"
	args := []interface{}{d.CPU, d.Memory, d.Disk}
	for _, f := range d.FeatureLimits.Keys() {
		if !f.Assignable() {
			continue
		}
		set += fmt.Sprintf(", %[1]s = %[1]s + ?", f.Column())
		args = append(args, d.FeatureLimits[f])
	}
	args = append(args, id)
	return q.execOne(ctx, "UPDATE servers SET "+set+" WHERE id = ?", "server", id, args...)
}

func (q *queries) SetParent(ctx context.Context, id int64, parentID *int64) error {
	return q.execOne(ctx, "UPDATE servers SET parent_id = ? WHERE id = ?", "server", id, nullInt(parentID), id)
}

func (q *queries) SetThreads(ctx context.Context, id int64, threads string) error {
	var v interface{} = threads
	if threads == "" {
		v = nil
	}
	return q.execOne(ctx, "UPDATE servers SET threads = ? WHERE id = ?", "server", id, v, id)
}

// LiveCounts counts the sub-resources a server currently owns, per feature.
func (q *queries) LiveCounts(ctx context.Context, id int64) (map[model.Feature]int64, error) {
	tables := map[model.Feature]string{
		model.FeatureAllocations: "allocations",
		model.FeatureBackups:     "backups",
		model.FeatureDatabases:   "databases",
	}
	out := make(map[model.Feature]int64, len(tables))
	for f, table := range tables {
		var n int64
		if err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE server_id = ?", id).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s of server %d: %w", table, id, err)
		}
		out[f] = n
	}
	return out, nil
}

func (q *queries) ServerVariables(ctx context.Context, serverID int64) (map[string]string, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT env_variable, value FROM server_variables WHERE server_id = ?", serverID)
	if err != nil {
		return nil, fmt.Errorf("list variables of server %d: %w", serverID, err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (q *queries) SetServerVariable(ctx context.Context, serverID int64, name, value string) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO server_variables (server_id, env_variable, value) VALUES (?, ?, ?) "+
			"ON CONFLICT(server_id, env_variable) DO UPDATE SET value = excluded.value",
		serverID, name, value)
	if err != nil {
		return fmt.Errorf("set variable %s on server %d: %w", name, serverID, err)
	}
	return nil
}

func (q *queries) InsertBackup(ctx context.Context, serverID int64, name string) error {
	_, err := q.db.ExecContext(ctx, "INSERT INTO backups (server_id, name) VALUES (?, ?)", serverID, name)
	return err
}

func (q *queries) InsertDatabase(ctx context.Context, serverID int64, name string) error {
	_, err := q.db.ExecContext(ctx, "INSERT INTO databases (server_id, name) VALUES (?, ?)", serverID, name)
	return err
}

func (q *queries) execOne(ctx context.Context, stmt, what string, id interface{}, args ...interface{}) error {
	res, err := q.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update %s %v: %w", what, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return nil
}

func nullInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
