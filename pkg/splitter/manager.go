// Package splitter carves child servers out of a parent server's capacity and
// keeps the parent and its splits consistent under concurrent changes.
package splitter

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"server-splitter/pkg/activity"
	"server-splitter/pkg/daemon"
	"server-splitter/pkg/ledger"
	"server-splitter/pkg/lock"
	"server-splitter/pkg/metrics"
	"server-splitter/pkg/model"
	"server-splitter/pkg/servers"
	"server-splitter/pkg/settings"
	"server-splitter/pkg/store"
)

const (
	mutateLockTTL = 30 * time.Second
	deleteLockTTL = 120 * time.Second
)

type Manager struct {
	store    *store.Store
	daemon   daemon.Client
	locks    *lock.Coordinator
	settings *settings.Provider
	activity *activity.Recorder
	creator  *servers.Creator
	deleter  *servers.Deleter
	disk     *diskUsage

	pick func(n int) int
}

func NewManager(s *store.Store, client daemon.Client, locks *lock.Coordinator, cfg *settings.Provider, rec *activity.Recorder) *Manager {
	return &Manager{
		store:    s,
		daemon:   client,
		locks:    locks,
		settings: cfg,
		activity: rec,
		creator:  servers.NewCreator(s, client),
		deleter:  servers.NewDeleter(s, client),
		disk:     newDiskUsage(client, DiskUsageTTL),
		pick:     rand.Intn,
	}
}

// Parent resolves s to the top-level server it belongs to.
func (m *Manager) Parent(ctx context.Context, s *model.Server) (*model.Server, error) {
	if !s.IsSplit() {
		return s, nil
	}
	parent, err := m.store.GetServer(ctx, *s.ParentID)
	if err != nil {
		return nil, lookupError("Parent server not found.", err)
	}
	return parent, nil
}

// child finds the split identified by uuid under parentID.
func (m *Manager) child(ctx context.Context, parentID int64, uuid string) (*model.Server, error) {
	c, err := m.store.GetServerByUUID(ctx, uuid)
	if err != nil {
		return nil, lookupError("Split not found.", err)
	}
	if c.ParentID == nil || *c.ParentID != parentID {
		return nil, notFound("Split not found.", nil)
	}
	return c, nil
}

// reload re-reads a server after its lock has been taken.
func (m *Manager) reload(ctx context.Context, id int64, msg string) (*model.Server, error) {
	s, err := m.store.GetServer(ctx, id)
	if err != nil {
		return nil, lookupError(msg, err)
	}
	return s, nil
}

func (m *Manager) remaining(ctx context.Context, parent *model.Server, cfg settings.Config, child *model.Server) (model.Resources, error) {
	counts, err := m.store.LiveCounts(ctx, parent.ID)
	if err != nil {
		return model.Resources{}, err
	}
	usage := ledger.Usage{Counts: counts}
	if !parent.IsSplit() && cfg.IncludeDiskUsage {
		usage.DiskBytes = m.disk.bytes(ctx, parent)
	}
	return ledger.Remaining(parent, cfg.Reserved, usage, child), nil
}

func (m *Manager) lockPair(childID, parentID int64, ttl time.Duration) ([]*lock.Handle, error) {
	handles, err := m.locks.AcquireAll(ttl, lock.ServerKey(childID), lock.ServerKey(parentID))
	if err != nil {
		return nil, busy("Failed to acquire lock for server update. Please try again.", err)
	}
	return handles, nil
}

func lookupError(msg string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(msg, err)
	}
	return err
}

// observe counts an operation outcome.
func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		if kind, ok := KindOf(err); ok {
			result = kind.String()
		}
	}
	metrics.SplitterOperations.WithLabelValues(op, result).Inc()
}

func swapFor(parent *model.Server, memory int64) int64 {
	if parent.Limits.SwapProportional() {
		return memory / 4
	}
	return 0
}

// checkCapacity validates cpu, memory and disk against what the parent can
// still grant and against the reserved minimum.
func checkCapacity(parent *model.Server, remaining model.Resources, spec model.SplitSpec, reserved model.Reserved) error {
	if !parent.Limits.UnlimitedCPU() && spec.CPU > remaining.CPU {
		return invalid("CPU limit exceeded.")
	}
	if spec.Memory > remaining.Memory {
		return invalid("Memory limit exceeded.")
	}
	if !parent.Limits.UnlimitedDisk() && spec.Disk > remaining.Disk {
		return invalid("Disk limit exceeded.")
	}
	if remaining.CPU != model.Unlimited && spec.CPU < reserved.CPU {
		return invalid("CPU must be at least %d%%.", reserved.CPU)
	}
	if spec.Memory < reserved.Memory {
		return invalid("Memory must be at least %dMB.", reserved.Memory)
	}
	if remaining.Disk != model.Unlimited && spec.Disk < reserved.Disk {
		return invalid("Disk must be at least %dMB.", reserved.Disk)
	}
	return nil
}

func checkFeatures(requested model.FeatureLimits, remaining model.Resources) error {
	for _, f := range requested.Keys() {
		if !f.Assignable() {
			continue
		}
		if requested[f] > remaining.FeatureLimits.Get(f) {
			return invalid("Feature limit exceeded.")
		}
	}
	return nil
}
