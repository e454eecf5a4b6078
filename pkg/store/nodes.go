package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"server-splitter/pkg/model"
)

// ErrAllocationTaken is returned when claiming an allocation another server owns.
var ErrAllocationTaken = errors.New("allocation already assigned")

func (q *queries) GetNode(ctx context.Context, id int64) (*model.Node, error) {
	var n model.Node
	err := q.db.QueryRowContext(ctx,
		"SELECT id, name, scheme, fqdn, daemon_port, daemon_token FROM nodes WHERE id = ?", id,
	).Scan(&n.ID, &n.Name, &n.Scheme, &n.FQDN, &n.DaemonPort, &n.DaemonToken)
	if err != nil {
		return nil, notFound(err, "node", id)
	}
	return &n, nil
}

func (q *queries) ListNodes(ctx context.Context) ([]*model.Node, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT id, name, scheme, fqdn, daemon_port, daemon_token FROM nodes ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var out []*model.Node
	for rows.Next() {
		var n model.Node
		if err := rows.Scan(&n.ID, &n.Name, &n.Scheme, &n.FQDN, &n.DaemonPort, &n.DaemonToken); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (q *queries) InsertNode(ctx context.Context, n *model.Node) error {
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO nodes (name, scheme, fqdn, daemon_port, daemon_token) VALUES (?, ?, ?, ?, ?)",
		n.Name, n.Scheme, n.FQDN, n.DaemonPort, n.DaemonToken)
	if err != nil {
		return fmt.Errorf("insert node %s: %w", n.Name, err)
	}
	n.ID, err = res.LastInsertId()
	return err
}

func scanAllocation(row rowScanner) (*model.Allocation, error) {
	var (
		a        model.Allocation
		serverID sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.NodeID, &a.IP, &a.Port, &serverID); err != nil {
		return nil, err
	}
	if serverID.Valid {
		id := serverID.Int64
		a.ServerID = &id
	}
	return &a, nil
}

func (q *queries) GetAllocation(ctx context.Context, id int64) (*model.Allocation, error) {
	a, err := scanAllocation(q.db.QueryRowContext(ctx,
		"SELECT id, node_id, ip, port, server_id FROM allocations WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err, "allocation", id)
	}
	return a, nil
}

// FreeAllocations lists unassigned allocations on a node bound to ip.
func (q *queries) FreeAllocations(ctx context.Context, nodeID int64, ip string) ([]*model.Allocation, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, node_id, ip, port, server_id FROM allocations WHERE node_id = ? AND ip = ? AND server_id IS NULL ORDER BY port",
		nodeID, ip)
	if err != nil {
		return nil, fmt.Errorf("list free allocations on node %d: %w", nodeID, err)
	}
	defer rows.Close()

	var out []*model.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *queries) InsertAllocation(ctx context.Context, a *model.Allocation) error {
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO allocations (node_id, ip, port, server_id) VALUES (?, ?, ?, ?)",
		a.NodeID, a.IP, a.Port, nullInt(a.ServerID))
	if err != nil {
		return fmt.Errorf("insert allocation %s:%d: %w", a.IP, a.Port, err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

// ClaimAllocation assigns a free allocation to serverID.
func (q *queries) ClaimAllocation(ctx context.Context, id, serverID int64) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE allocations SET server_id = ? WHERE id = ? AND server_id IS NULL", serverID, id)
	if err != nil {
		return fmt.Errorf("claim allocation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("allocation %d: %w", id, ErrAllocationTaken)
	}
	return nil
}

func (q *queries) ReleaseAllocations(ctx context.Context, serverID int64) error {
	if _, err := q.db.ExecContext(ctx, "UPDATE allocations SET server_id = NULL WHERE server_id = ?", serverID); err != nil {
		return fmt.Errorf("release allocations of server %d: %w", serverID, err)
	}
	return nil
}
