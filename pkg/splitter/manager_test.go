package splitter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"server-splitter/pkg/activity"
	"server-splitter/pkg/daemon/daemontest"
	"server-splitter/pkg/lock"
	"server-splitter/pkg/model"
	"server-splitter/pkg/settings"
	"server-splitter/pkg/store"
	"server-splitter/pkg/store/storetest"
)

type harness struct {
	store    *store.Store
	daemon   *daemontest.Fake
	locks    *lock.Coordinator
	settings *settings.Provider
	m        *Manager
	fix      *storetest.Fixture
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s := storetest.New(t)
	f := storetest.Seed(t, s)
	d := daemontest.New()
	locks := lock.NewInMemoryCoordinator()
	cfg := settings.NewProvider(s, settings.CacheTTL)

	m := NewManager(s, d, locks, cfg, activity.NewRecorder(s))
	m.pick = func(int) int { return 0 }
	return &harness{store: s, daemon: d, locks: locks, settings: cfg, m: m, fix: f}
}

func (h *harness) parent(t *testing.T) *model.Server {
	return storetest.Reload(t, h.store, h.fix.Parent.ID)
}

// updateParent edits the stored parent before any operation runs.
func (h *harness) updateParent(t *testing.T, edit func(*model.Server)) {
	p := h.parent(t)
	edit(p)
	require.NoError(t, h.store.UpdateServer(context.Background(), p))
}

func (h *harness) children(t *testing.T) []*model.Server {
	children, err := h.store.Children(context.Background(), h.fix.Parent.ID)
	require.NoError(t, err)
	return children
}

// requireConserved checks that the parent and its splits still add up to want.
func (h *harness) requireConserved(t *testing.T, want model.Limits, wantFeatures model.FeatureLimits) {
	t.Helper()
	p := h.parent(t)
	got := model.Limits{CPU: p.Limits.CPU, Memory: p.Limits.Memory, Disk: p.Limits.Disk}
	features := p.FeatureLimits.Clone()
	for _, c := range h.children(t) {
		if !p.Limits.UnlimitedCPU() {
			got.CPU += c.Limits.CPU
		}
		got.Memory += c.Limits.Memory
		if !p.Limits.UnlimitedDisk() {
			got.Disk += c.Limits.Disk
		}
		for _, f := range model.AssignableFeatures {
			features[f] += c.FeatureLimits.Get(f)
		}
	}
	require.Equal(t, want, got)
	require.Equal(t, wantFeatures, features)
}

func splitSpec(cpu, memory, disk int64) model.SplitSpec {
	return model.SplitSpec{
		Name:          "split",
		CPU:           cpu,
		Memory:        memory,
		Disk:          disk,
		FeatureLimits: model.FeatureLimits{model.FeatureAllocations: 1},
	}
}

func requireKind(t *testing.T, err error, kind Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	got, ok := KindOf(err)
	require.True(t, ok, "not a splitter error: %v", err)
	require.Equal(t, kind, got)
	if msg != "" {
		var e *Error
		require.True(t, errors.As(err, &e))
		require.Equal(t, msg, e.Message)
	}
}

var seededFeatures = model.FeatureLimits{
	model.FeatureAllocations: 4,
	model.FeatureBackups:     2,
	model.FeatureDatabases:   1,
}

func TestCreateResizeDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	start := model.Limits{CPU: 100, Memory: 4096, Disk: 10240}

	child, err := h.m.Create(ctx, h.fix.Parent, splitSpec(50, 2048, 5120))
	require.NoError(t, err)
	require.Equal(t, h.fix.Parent.ID, *child.ParentID)
	require.True(t, h.daemon.Has(child.UUID))

	p := h.parent(t)
	require.Equal(t, model.Limits{CPU: 50, Memory: 2048, Disk: 5120, IO: 500}, p.Limits)
	require.Equal(t, int64(3), p.FeatureLimits[model.FeatureAllocations])
	stored := storetest.Reload(t, h.store, child.ID)
	require.Equal(t, model.Limits{CPU: 50, Memory: 2048, Disk: 5120, IO: 500}, stored.Limits)
	h.requireConserved(t, start, seededFeatures)

	resized, err := h.m.Resize(ctx, h.fix.Parent, child.UUID, model.SplitSpec{
		Name: "renamed", CPU: 30, Memory: 1024, Disk: 2560,
	})
	require.NoError(t, err)
	require.Equal(t, "renamed", resized.Name)
	require.Equal(t, model.Limits{CPU: 70, Memory: 3072, Disk: 7680, IO: 500}, h.parent(t).Limits)
	stored = storetest.Reload(t, h.store, child.ID)
	require.Equal(t, model.Limits{CPU: 30, Memory: 1024, Disk: 2560, IO: 500}, stored.Limits)
	require.Equal(t, int64(1), stored.FeatureLimits[model.FeatureAllocations])
	require.ElementsMatch(t, []string{child.UUID, h.fix.Parent.UUID}, h.daemon.SyncCalls())
	h.requireConserved(t, start, seededFeatures)

	require.NoError(t, h.m.Delete(ctx, h.fix.Parent, child.UUID))
	p = h.parent(t)
	require.Equal(t, model.Limits{CPU: 100, Memory: 4096, Disk: 10240, IO: 500}, p.Limits)
	require.Equal(t, seededFeatures, p.FeatureLimits)
	require.False(t, h.daemon.Has(child.UUID))
	require.Empty(t, h.children(t))

	logs, err := h.store.ListActivity(ctx, h.fix.Parent.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	require.Equal(t, activity.EventSplitDelete, logs[0].Event)
	require.Equal(t, activity.EventSplitUpdate, logs[1].Event)
	require.Equal(t, activity.EventSplitCreate, logs[2].Event)
}

func TestCreateUnderUnlimitedParent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.updateParent(t, func(p *model.Server) { p.Limits.CPU = 0 })
	parent := h.parent(t)

	before, err := h.m.Overview(ctx, parent)
	require.NoError(t, err)
	require.Equal(t, model.Unlimited, before.Resources.Remaining.CPU)

	child, err := h.m.Create(ctx, parent, splitSpec(50, 1024, 1024))
	require.NoError(t, err)
	require.Equal(t, int64(50), storetest.Reload(t, h.store, child.ID).Limits.CPU)
	require.Equal(t, int64(0), h.parent(t).Limits.CPU, "unlimited cpu is never decremented")

	after, err := h.m.Overview(ctx, parent)
	require.NoError(t, err)
	require.Equal(t, model.Unlimited, after.Resources.Remaining.CPU)
	require.Equal(t, model.Unlimited, after.Resources.Total.CPU)

	// below the reserved cpu is fine when cpu is not capped
	_, err = h.m.Create(ctx, parent, splitSpec(1, 1024, 1024))
	require.NoError(t, err)

	require.NoError(t, h.m.Delete(ctx, parent, child.UUID))
	require.Equal(t, int64(0), h.parent(t).Limits.CPU)
}

func TestCreateViaSplitUsesParent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.m.Create(ctx, h.fix.Parent, splitSpec(20, 512, 1024))
	require.NoError(t, err)
	second, err := h.m.Create(ctx, first, splitSpec(20, 512, 1024))
	require.NoError(t, err)
	require.Equal(t, h.fix.Parent.ID, *second.ParentID)
	require.Len(t, h.children(t), 2)
}

func TestCreateRespectsSplitterLimit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.updateParent(t, func(p *model.Server) { p.SplitterLimit = 1 })
	parent := h.parent(t)

	_, err := h.m.Create(ctx, parent, splitSpec(20, 512, 1024))
	require.NoError(t, err)
	_, err = h.m.Create(ctx, parent, splitSpec(20, 512, 1024))
	requireKind(t, err, KindValidation, "Cannot create more splits than the server allows.")
	require.Len(t, h.children(t), 1)
}

func TestCreateReservedFloor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.m.Create(ctx, h.fix.Parent, splitSpec(5, 512, 1024))
	requireKind(t, err, KindValidation, "CPU must be at least 10% to create a split.")
	_, err = h.m.Create(ctx, h.fix.Parent, splitSpec(20, 64, 1024))
	requireKind(t, err, KindValidation, "Memory must be at least 128MB to create a split.")
	_, err = h.m.Create(ctx, h.fix.Parent, splitSpec(20, 512, 100))
	requireKind(t, err, KindValidation, "Disk must be at least 256MB to create a split.")

	// the parent keeps its own reserved share
	_, err = h.m.Create(ctx, h.fix.Parent, splitSpec(20, 3969, 1024))
	requireKind(t, err, KindValidation, "Memory limit exceeded.")
	_, err = h.m.Create(ctx, h.fix.Parent, splitSpec(91, 512, 1024))
	requireKind(t, err, KindValidation, "CPU limit exceeded.")
	_, err = h.m.Create(ctx, h.fix.Parent, splitSpec(20, 512, 9985))
	requireKind(t, err, KindValidation, "Disk limit exceeded.")

	_, err = h.m.Create(ctx, h.fix.Parent, splitSpec(90, 3968, 9984))
	require.NoError(t, err)
	require.Equal(t, model.Limits{CPU: 10, Memory: 128, Disk: 256, IO: 500}, h.parent(t).Limits)
}

func TestCreateValidatesFeatures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	spec := splitSpec(20, 512, 1024)
	spec.FeatureLimits = model.FeatureLimits{model.FeatureBackups: 1}
	_, err := h.m.Create(ctx, h.fix.Parent, spec)
	requireKind(t, err, KindValidation, "Allocation limit must be at least 1.")

	spec.FeatureLimits = model.FeatureLimits{model.FeatureAllocations: 1, model.FeatureBackups: 3}
	_, err = h.m.Create(ctx, h.fix.Parent, spec)
	requireKind(t, err, KindValidation, "Feature limit exceeded.")

	// the parent's own allocation is counted against its limit of 4
	spec.FeatureLimits = model.FeatureLimits{model.FeatureAllocations: 4}
	_, err = h.m.Create(ctx, h.fix.Parent, spec)
	requireKind(t, err, KindValidation, "Feature limit exceeded.")

	spec.FeatureLimits = model.FeatureLimits{model.FeatureAllocations: 3, model.FeatureBackups: 2}
	child, err := h.m.Create(ctx, h.fix.Parent, spec)
	require.NoError(t, err)
	require.Equal(t, int64(2), child.FeatureLimits[model.FeatureBackups])
	p := h.parent(t)
	require.Equal(t, int64(1), p.FeatureLimits[model.FeatureAllocations])
	require.Equal(t, int64(0), p.FeatureLimits[model.FeatureBackups])
}

func TestCreateNeedsFreeAllocation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	free, err := h.store.FreeAllocations(ctx, h.fix.Node.ID, storetest.AllocationIP)
	require.NoError(t, err)
	for _, a := range free {
		require.NoError(t, h.store.ClaimAllocation(ctx, a.ID, 999))
	}
	// allocations on another ip do not qualify
	storetest.SeedAllocations(t, h.store, h.fix.Node.ID, "10.0.0.2", 25565)

	_, err = h.m.Create(ctx, h.fix.Parent, splitSpec(20, 512, 1024))
	requireKind(t, err, KindValidation, "No available allocations on the node.")
	h.requireConserved(t, model.Limits{CPU: 100, Memory: 4096, Disk: 10240}, seededFeatures)
}

func TestCreateWithAllowedEgg(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, velocity := storetest.SeedEgg(t, h.store, "Proxies", "Velocity")

	spec := splitSpec(20, 512, 1024)
	spec.EggUUID = velocity.UUID
	_, err := h.m.Create(ctx, h.fix.Parent, spec)
	requireKind(t, err, KindValidation, "Invalid egg ID provided.")

	require.NoError(t, h.store.InsertEggRule(ctx, &model.EggRule{
		Eggs:        []int64{h.fix.Egg.ID},
		AllowedEggs: []int64{h.fix.Egg.ID, velocity.ID},
	}))

	nests, err := h.m.UsableNests(ctx, h.fix.Parent)
	require.NoError(t, err)
	require.Len(t, nests["Minecraft"], 1)
	require.Len(t, nests["Proxies"], 1)

	child, err := h.m.Create(ctx, h.fix.Parent, spec)
	require.NoError(t, err)
	stored := storetest.Reload(t, h.store, child.ID)
	require.Equal(t, velocity.ID, stored.EggID)
	require.Equal(t, velocity.NestID, stored.NestID)
	require.Equal(t, velocity.DefaultImage(), stored.Image)

	vars, err := h.store.ServerVariables(ctx, child.ID)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"SERVER_JARFILE": "server.jar"}, vars)
}

func TestCreateSwapFollowsParent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	child, err := h.m.Create(ctx, h.fix.Parent, splitSpec(20, 1024, 1024))
	require.NoError(t, err)
	require.Equal(t, int64(0), child.Limits.Swap)

	h.updateParent(t, func(p *model.Server) { p.Limits.Swap = -1 })
	child, err = h.m.Create(ctx, h.fix.Parent, splitSpec(20, 1024, 1024))
	require.NoError(t, err)
	require.Equal(t, int64(256), child.Limits.Swap)
}

func TestCreateWhileLocked(t *testing.T) {
	h := newHarness(t)
	held, err := h.locks.Acquire(lock.ServerKey(h.fix.Parent.ID), time.Minute)
	require.NoError(t, err)

	_, err = h.m.Create(context.Background(), h.fix.Parent, splitSpec(20, 512, 1024))
	requireKind(t, err, KindBusy, "")
	require.ErrorIs(t, err, lock.ErrBusy)

	held.Release()
	_, err = h.m.Create(context.Background(), h.fix.Parent, splitSpec(20, 512, 1024))
	require.NoError(t, err)
}

func TestCreateCompensatesFailedCapacityMove(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var created *model.Server
	h.daemon.OnCreate = func(s *model.Server) {
		created = s
		// the parent vanishing makes moving capacity onto the split fail
		require.NoError(t, h.store.DeleteServer(ctx, h.fix.Parent.ID))
	}

	_, err := h.m.Create(ctx, h.fix.Parent, splitSpec(20, 512, 1024))
	require.Error(t, err)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NotNil(t, created)

	_, lookupErr := h.store.GetServerByUUID(ctx, created.UUID)
	require.ErrorIs(t, lookupErr, store.ErrNotFound)
	require.False(t, h.daemon.Has(created.UUID))

	// the lock is released after the failed attempt
	held, err := h.locks.Acquire(lock.ServerKey(h.fix.Parent.ID), time.Second)
	require.NoError(t, err)
	held.Release()
}

func TestCreateDaemonFailure(t *testing.T) {
	h := newHarness(t)
	h.daemon.CreateErr = errors.New("no space left on node")

	_, err := h.m.Create(context.Background(), h.fix.Parent, splitSpec(20, 512, 1024))
	require.ErrorIs(t, err, h.daemon.CreateErr)
	_, isSplitterErr := KindOf(err)
	require.False(t, isSplitterErr)
	h.requireConserved(t, model.Limits{CPU: 100, Memory: 4096, Disk: 10240}, seededFeatures)
	require.Empty(t, h.children(t))
}

func TestResizeValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	child, err := h.m.Create(ctx, h.fix.Parent, splitSpec(50, 2048, 5120))
	require.NoError(t, err)

	// the split's own share counts as available: 50 - 10 + 50
	_, err = h.m.Resize(ctx, h.fix.Parent, child.UUID, model.SplitSpec{Name: "x", CPU: 91, Memory: 2048, Disk: 5120})
	requireKind(t, err, KindValidation, "CPU limit exceeded.")
	_, err = h.m.Resize(ctx, h.fix.Parent, child.UUID, model.SplitSpec{Name: "x", CPU: 50, Memory: 64, Disk: 5120})
	requireKind(t, err, KindValidation, "Memory must be at least 128MB.")
	_, err = h.m.Resize(ctx, h.fix.Parent, child.UUID, model.SplitSpec{Name: "x", CPU: 50, Memory: 2048, Disk: 5120,
		FeatureLimits: model.FeatureLimits{model.FeatureDatabases: 2}})
	requireKind(t, err, KindValidation, "Feature limit exceeded.")
	_, err = h.m.Resize(ctx, h.fix.Parent, "missing", model.SplitSpec{Name: "x", CPU: 50, Memory: 2048, Disk: 5120})
	requireKind(t, err, KindNotFound, "Split not found.")

	_, err = h.m.Resize(ctx, h.fix.Parent, child.UUID, model.SplitSpec{Name: "x", CPU: 90, Memory: 3968, Disk: 9984})
	require.NoError(t, err)
	require.Equal(t, model.Limits{CPU: 10, Memory: 128, Disk: 256, IO: 500}, h.parent(t).Limits)
}

func TestResizeKeepsUnnamedFeatures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	spec := splitSpec(20, 512, 1024)
	spec.FeatureLimits[model.FeatureBackups] = 1
	child, err := h.m.Create(ctx, h.fix.Parent, spec)
	require.NoError(t, err)

	_, err = h.m.Resize(ctx, h.fix.Parent, child.UUID, model.SplitSpec{
		Name: "split", CPU: 20, Memory: 512, Disk: 1024,
		FeatureLimits: model.FeatureLimits{model.FeatureAllocations: 2},
	})
	require.NoError(t, err)

	stored := storetest.Reload(t, h.store, child.ID)
	require.Equal(t, int64(2), stored.FeatureLimits[model.FeatureAllocations])
	require.Equal(t, int64(1), stored.FeatureLimits[model.FeatureBackups])
	p := h.parent(t)
	require.Equal(t, int64(2), p.FeatureLimits[model.FeatureAllocations])
	require.Equal(t, int64(1), p.FeatureLimits[model.FeatureBackups])
	h.requireConserved(t, model.Limits{CPU: 100, Memory: 4096, Disk: 10240}, seededFeatures)
}

func TestResizeSyncFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	child, err := h.m.Create(ctx, h.fix.Parent, splitSpec(50, 2048, 5120))
	require.NoError(t, err)

	h.daemon.SyncErr = errors.New("daemon timeout")
	_, err = h.m.Resize(ctx, h.fix.Parent, child.UUID, model.SplitSpec{Name: "x", CPU: 30, Memory: 1024, Disk: 2560})
	require.ErrorIs(t, err, h.daemon.SyncErr)

	require.Equal(t, model.Limits{CPU: 50, Memory: 2048, Disk: 5120, IO: 500}, h.parent(t).Limits)
	require.Equal(t, "split", storetest.Reload(t, h.store, child.ID).Name)
}

func TestDeleteTwiceDoesNotCreditTwice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	child, err := h.m.Create(ctx, h.fix.Parent, splitSpec(50, 2048, 5120))
	require.NoError(t, err)

	require.NoError(t, h.m.Delete(ctx, h.fix.Parent, child.UUID))
	err = h.m.Delete(ctx, h.fix.Parent, child.UUID)
	requireKind(t, err, KindNotFound, "Split not found.")
	require.Equal(t, model.Limits{CPU: 100, Memory: 4096, Disk: 10240, IO: 500}, h.parent(t).Limits)
}

func TestDeleteRejectsSelf(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	child, err := h.m.Create(ctx, h.fix.Parent, splitSpec(50, 2048, 5120))
	require.NoError(t, err)

	err = h.m.Delete(ctx, child, child.UUID)
	requireKind(t, err, KindValidation, "Cannot delete current server.")
	err = h.m.Delete(ctx, h.fix.Parent, h.fix.Parent.UUID)
	requireKind(t, err, KindValidation, "Cannot delete current server.")

	// a split may remove a sibling through its parent
	sibling, err := h.m.Create(ctx, h.fix.Parent, splitSpec(20, 512, 1024))
	require.NoError(t, err)
	require.NoError(t, h.m.Delete(ctx, child, sibling.UUID))
}

func TestDeleteDaemonFailureKeepsSplit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	child, err := h.m.Create(ctx, h.fix.Parent, splitSpec(50, 2048, 5120))
	require.NoError(t, err)

	h.daemon.DeleteErr = errors.New("daemon unreachable")
	require.Error(t, h.m.Delete(ctx, h.fix.Parent, child.UUID))
	require.Len(t, h.children(t), 1)
	h.requireConserved(t, model.Limits{CPU: 100, Memory: 4096, Disk: 10240}, seededFeatures)
}

func TestConcurrentCreatesNeverOverAllocate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const attempts = 8

	storetest.SeedAllocations(t, h.store, h.fix.Node.ID, storetest.AllocationIP,
		30000, 30001, 30002, 30003, 30004, 30005, 30006, 30007)
	h.updateParent(t, func(p *model.Server) {
		p.SplitterLimit = attempts
		p.FeatureLimits[model.FeatureAllocations] = attempts + 1
	})
	parent := h.parent(t)

	var (
		mu       sync.Mutex
		ok       int
		rejected []string
	)
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			for {
				// 3968 MiB can be granted, so only three 1024 MiB splits fit
				_, err := h.m.Create(ctx, parent, splitSpec(10, 1024, 1000))
				if kind, isErr := KindOf(err); isErr && kind == KindBusy {
					time.Sleep(time.Millisecond)
					continue
				}
				mu.Lock()
				defer mu.Unlock()
				switch kind, isErr := KindOf(err); {
				case err == nil:
					ok++
				case isErr && kind == KindValidation:
					rejected = append(rejected, err.Error())
				default:
					return err
				}
				return nil
			}
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, 3, ok)
	require.Len(t, rejected, attempts-3)
	for _, msg := range rejected {
		require.Equal(t, "Memory limit exceeded.", msg)
	}
	require.Len(t, h.children(t), 3)
	require.Equal(t, int64(4096-3*1024), h.parent(t).Limits.Memory)
	h.requireConserved(t, model.Limits{CPU: 100, Memory: 4096, Disk: 10240}, model.FeatureLimits{
		model.FeatureAllocations: attempts + 1,
		model.FeatureBackups:     2,
		model.FeatureDatabases:   1,
	})
}

func TestModificationAction(t *testing.T) {
	for _, tc := range []struct {
		action  settings.Action
		running bool
		want    []daemontest.PowerCall
	}{
		{action: settings.ActionNone, running: true},
		{action: settings.ActionRestart, running: false},
		{action: settings.ActionRestart, running: true, want: []daemontest.PowerCall{{Action: "restart"}}},
		{action: settings.ActionKill, running: true, want: []daemontest.PowerCall{{Action: "kill"}}},
		{action: settings.ActionKillAndRestart, running: true, want: []daemontest.PowerCall{{Action: "kill"}, {Action: "start"}}},
	} {
		t.Run(string(tc.action), func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			require.NoError(t, h.settings.Set(ctx, map[string]string{settings.KeyServerModificationAction: string(tc.action)}))
			if tc.running {
				h.daemon.SetState(h.fix.Parent.UUID, "running")
			}

			_, err := h.m.Create(ctx, h.fix.Parent, splitSpec(20, 512, 1024))
			require.NoError(t, err)

			for i := range tc.want {
				tc.want[i].UUID = h.fix.Parent.UUID
			}
			if tc.want == nil {
				require.Empty(t, h.daemon.PowerCalls())
				return
			}
			require.Equal(t, tc.want, h.daemon.PowerCalls())
		})
	}
}

func TestModificationActionOnResize(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.settings.Set(ctx, map[string]string{settings.KeyServerModificationAction: "stop"}))

	child, err := h.m.Create(ctx, h.fix.Parent, splitSpec(20, 512, 1024))
	require.NoError(t, err)
	h.daemon.SetState(child.UUID, "running")

	_, err = h.m.Resize(ctx, h.fix.Parent, child.UUID, model.SplitSpec{Name: "x", CPU: 20, Memory: 256, Disk: 1024})
	require.NoError(t, err)
	require.Equal(t, []daemontest.PowerCall{{UUID: child.UUID, Action: "stop"}}, h.daemon.PowerCalls())
}
