package splitter

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"server-splitter/pkg/activity"
	"server-splitter/pkg/ledger"
	"server-splitter/pkg/lock"
	"server-splitter/pkg/model"
	"server-splitter/pkg/servers"
	"server-splitter/pkg/store"
)

// Create carves a new split out of the parent of s. When s is itself a split
// the split is created under its parent.
func (m *Manager) Create(ctx context.Context, s *model.Server, spec model.SplitSpec) (child *model.Server, err error) {
	defer func() { observe("create", err) }()

	parent, err := m.Parent(ctx, s)
	if err != nil {
		return nil, err
	}
	cfg, err := m.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	if err := m.checkSplitCount(ctx, parent); err != nil {
		return nil, err
	}
	// cheap checks before the lock; capacity is validated again once held
	if !parent.Limits.UnlimitedCPU() && spec.CPU < cfg.Reserved.CPU {
		return nil, invalid("CPU must be at least %d%% to create a split.", cfg.Reserved.CPU)
	}
	if spec.Memory < cfg.Reserved.Memory {
		return nil, invalid("Memory must be at least %dMB to create a split.", cfg.Reserved.Memory)
	}
	if !parent.Limits.UnlimitedDisk() && spec.Disk < cfg.Reserved.Disk {
		return nil, invalid("Disk must be at least %dMB to create a split.", cfg.Reserved.Disk)
	}

	h, err := m.locks.Acquire(lock.ServerKey(parent.ID), mutateLockTTL)
	if err != nil {
		return nil, busy("Failed to acquire lock for server update. Please try again.", err)
	}
	defer h.Release()

	if parent, err = m.reload(ctx, parent.ID, "Parent server not found."); err != nil {
		return nil, err
	}
	if err := m.checkSplitCount(ctx, parent); err != nil {
		return nil, err
	}

	remaining, err := m.remaining(ctx, parent, cfg, nil)
	if err != nil {
		return nil, err
	}
	if err := checkCapacity(parent, remaining, spec, cfg.Reserved); err != nil {
		return nil, err
	}

	egg, err := m.resolveEgg(ctx, parent, spec.EggUUID)
	if err != nil {
		return nil, err
	}

	if err := checkFeatures(spec.FeatureLimits, remaining); err != nil {
		return nil, err
	}
	if spec.FeatureLimits.Get(model.FeatureAllocations) < 1 {
		return nil, invalid("Allocation limit must be at least 1.")
	}

	allocation, err := m.pickAllocation(ctx, parent)
	if err != nil {
		return nil, err
	}

	vars, err := m.store.EggVariables(ctx, egg.ID)
	if err != nil {
		return nil, err
	}
	env := make(map[string]string, len(vars))
	for _, v := range vars {
		env[v.EnvVariable] = v.DefaultValue
	}

	description := ""
	if spec.Description != nil {
		description = *spec.Description
	}
	features := model.FeatureLimits{}
	for _, f := range model.AssignableFeatures {
		features[f] = spec.FeatureLimits.Get(f)
	}

	child, err = m.creator.Create(ctx, servers.CreateSpec{
		Name:          spec.Name,
		Description:   description,
		AllocationID:  allocation.ID,
		Egg:           egg,
		Limits:        model.Limits{CPU: spec.CPU, Memory: spec.Memory, Disk: spec.Disk, Swap: swapFor(parent, spec.Memory)},
		FeatureLimits: features,
		Environment:   env,
		OnBehalfOf:    parent,
	})
	if err != nil {
		return nil, fmt.Errorf("provision split of %s: %w", parent.UUID, err)
	}

	logger := log.WithFields(log.Fields{"parent": parent.ID, "split": child.ID, "uuid": child.UUID})

	err = m.store.Tx(ctx, func(tx *store.Tx) error {
		if err := tx.SetParent(ctx, child.ID, &parent.ID); err != nil {
			return err
		}
		return tx.AdjustLimits(ctx, parent.ID, ledger.Grant(parent, child.Limits, child.FeatureLimits))
	})
	if err != nil {
		return nil, m.compensateCreate(ctx, child, err)
	}
	child.ParentID = &parent.ID

	logger.WithFields(log.Fields{"cpu": child.Limits.CPU, "memory": child.Limits.Memory, "disk": child.Limits.Disk}).
		Info("split created")
	m.activity.Record(ctx, activity.EventSplitCreate, parent.ID, map[string]interface{}{
		"uuid":   child.UUID,
		"name":   child.Name,
		"cpu":    child.Limits.CPU,
		"memory": child.Limits.Memory,
		"disk":   child.Limits.Disk,
		"swap":   child.Limits.Swap,
		"egg":    egg.Name,
	})

	if spec.SyncSubusers {
		if err := m.copySubusers(ctx, parent, child); err != nil {
			logger.Warnf("failed to copy subusers to split: %v", err)
		}
	}

	m.applyModificationAction(ctx, parent, cfg.ServerModificationAction)
	return child, nil
}

// compensateCreate removes a provisioned split whose capacity could not be
// moved off the parent. The split has no parent link at this point, so its
// removal credits nothing.
func (m *Manager) compensateCreate(ctx context.Context, child *model.Server, cause error) error {
	logger := log.WithFields(log.Fields{"split": child.ID, "uuid": child.UUID})
	child.ParentID = nil

	if err := m.deleter.Delete(ctx, child, true); err != nil {
		logger.Errorf("split compensation failed, manual cleanup required: %v (cause: %v)", err, cause)
		return errors.Join(fmt.Errorf("move capacity to split %s: %w", child.UUID, cause), err)
	}
	logger.Warnf("split creation rolled back: %v", cause)
	return fmt.Errorf("move capacity to split %s: %w", child.UUID, cause)
}

func (m *Manager) checkSplitCount(ctx context.Context, parent *model.Server) error {
	n, err := m.store.CountChildren(ctx, parent.ID)
	if err != nil {
		return err
	}
	if n >= parent.SplitterLimit {
		return invalid("Cannot create more splits than the server allows.")
	}
	return nil
}

// resolveEgg returns the egg requested by uuid, which must be allowed for the
// parent's egg, or the parent's own egg when none is requested.
func (m *Manager) resolveEgg(ctx context.Context, parent *model.Server, eggUUID string) (*model.Egg, error) {
	if eggUUID == "" {
		return m.store.GetEgg(ctx, parent.EggID)
	}
	eggs, err := m.usableEggs(ctx, parent)
	if err != nil {
		return nil, err
	}
	for _, e := range eggs {
		if e.UUID == eggUUID {
			return e, nil
		}
	}
	return nil, invalid("Invalid egg ID provided.")
}

// pickAllocation chooses at random a free allocation on the parent's node
// bound to the same ip as the parent's own allocation.
func (m *Manager) pickAllocation(ctx context.Context, parent *model.Server) (*model.Allocation, error) {
	own, err := m.store.GetAllocation(ctx, parent.AllocationID)
	if err != nil {
		return nil, err
	}
	free, err := m.store.FreeAllocations(ctx, parent.NodeID, own.IP)
	if err != nil {
		return nil, err
	}
	if len(free) == 0 {
		return nil, invalid("No available allocations on the node.")
	}
	return free[m.pick(len(free))], nil
}
