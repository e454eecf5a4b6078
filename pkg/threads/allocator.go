package threads

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"

	"server-splitter/pkg/daemon"
	"server-splitter/pkg/lock"
	"server-splitter/pkg/model"
)

// ErrNoFreeThreads is returned when every thread on the node is pinned.
var ErrNoFreeThreads = errors.New("no free cpu threads on node")

const lockTTL = 30 * time.Second

// Store is the persistence the allocator reads and writes pinning strings through.
type Store interface {
	NodeThreadStrings(ctx context.Context, nodeID, excludeServerID int64) ([]string, error)
	SetThreads(ctx context.Context, serverID int64, threads string) error
}

type Allocator struct {
	store  Store
	daemon daemon.Client
	locks  *lock.Coordinator
}

func NewAllocator(store Store, client daemon.Client, locks *lock.Coordinator) *Allocator {
	return &Allocator{store: store, daemon: client, locks: locks}
}

// AssignFreeThreads picks up to n free threads on a node and renders them as a
// flat comma list. It reports false when nothing could be picked; failures are
// logged, never returned.
func (a *Allocator) AssignFreeThreads(ctx context.Context, nodeID int64, n int) (string, bool) {
	free, err := a.freeThreads(ctx, nodeID, 0)
	if err != nil {
		log.WithField("node", nodeID).Warnf("cannot compute free threads: %v", err)
		return "", false
	}
	if len(free) == 0 || n <= 0 {
		return "", false
	}
	if n > len(free) {
		n = len(free)
	}
	return FormatThreads(free[:n]), true
}

// NodeThreadUsage is a read-only view of a node's thread pinning. Any failure
// yields an empty usage.
func (a *Allocator) NodeThreadUsage(ctx context.Context, nodeID int64) model.ThreadUsage {
	empty := model.ThreadUsage{Assigned: []int{}, Free: []int{}}

	total, err := a.totalThreads(ctx, nodeID)
	if err != nil {
		log.WithField("node", nodeID).Warnf("cannot read node thread count: %v", err)
		return empty
	}
	assigned, err := a.assigned(ctx, nodeID, 0, total)
	if err != nil {
		log.WithField("node", nodeID).Warnf("cannot read assigned threads: %v", err)
		return empty
	}
	return model.ThreadUsage{
		Total:    total,
		Assigned: assigned,
		Free:     CalculateFreeThreads(total, assigned),
	}
}

// AssignServerThreads pins n free threads to a server and persists the result.
// The read of free threads and the write are done under the node's lock so
// that two servers on one node never receive the same thread.
func (a *Allocator) AssignServerThreads(ctx context.Context, server *model.Server, n int) (string, error) {
	h, err := a.locks.Acquire(lock.NodeKey(server.NodeID), lockTTL)
	if err != nil {
		return "", err
	}
	defer h.Release()

	// the server's current pinning is replaced, so it does not count as taken
	free, err := a.freeThreads(ctx, server.NodeID, server.ID)
	if err != nil {
		return "", err
	}
	if len(free) == 0 {
		return "", fmt.Errorf("node %d: %w", server.NodeID, ErrNoFreeThreads)
	}
	if n > len(free) {
		n = len(free)
	}
	threads := FormatThreads(free[:n])
	if err := a.store.SetThreads(ctx, server.ID, threads); err != nil {
		return "", err
	}

	log.WithFields(log.Fields{"server": server.ID, "node": server.NodeID, "threads": threads}).Info("assigned cpu threads")
	return threads, nil
}

func (a *Allocator) freeThreads(ctx context.Context, nodeID, excludeServerID int64) ([]int, error) {
	total, err := a.totalThreads(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	assigned, err := a.assigned(ctx, nodeID, excludeServerID, total)
	if err != nil {
		return nil, err
	}
	return CalculateFreeThreads(total, assigned), nil
}

func (a *Allocator) totalThreads(ctx context.Context, nodeID int64) (int, error) {
	info, err := a.daemon.SystemInformation(ctx, nodeID)
	if err != nil {
		return 0, err
	}
	return info.CPUThreads, nil
}

// assigned unions the parsed pinning of every server on the node, ascending,
// ignoring ids at or above total.
// A malformed pinning string is skipped with a warning.
func (a *Allocator) assigned(ctx context.Context, nodeID, excludeServerID int64, total int) ([]int, error) {
	strs, err := a.store.NodeThreadStrings(ctx, nodeID, excludeServerID)
	if err != nil {
		return nil, err
	}
	set := sets.New[int]()
	for _, s := range strs {
		ids, err := ParseThreadString(s, total)
		if err != nil {
			log.WithField("node", nodeID).Warnf("skipping malformed thread string %q: %v", s, err)
			continue
		}
		set.Insert(ids...)
	}
	return sets.List(set), nil
}
