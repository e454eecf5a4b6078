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
	"server-splitter/pkg/store"
)

// Resize changes the capacity of an existing split. The split's current share
// counts as available while the new share is validated. Feature limits
// absent from the request keep their current value.
func (m *Manager) Resize(ctx context.Context, s *model.Server, childUUID string, spec model.SplitSpec) (child *model.Server, err error) {
	defer func() { observe("resize", err) }()

	parent, err := m.Parent(ctx, s)
	if err != nil {
		return nil, err
	}
	child, err = m.child(ctx, parent.ID, childUUID)
	if err != nil {
		return nil, err
	}

	handles, err := m.lockPair(child.ID, parent.ID, mutateLockTTL)
	if err != nil {
		return nil, err
	}
	defer lock.ReleaseAll(handles)

	if parent, err = m.reload(ctx, parent.ID, "Parent server not found."); err != nil {
		return nil, err
	}
	if child, err = m.child(ctx, parent.ID, childUUID); err != nil {
		return nil, err
	}

	cfg, err := m.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	remaining, err := m.remaining(ctx, parent, cfg, child)
	if err != nil {
		return nil, err
	}
	if err := checkCapacity(parent, remaining, spec, cfg.Reserved); err != nil {
		return nil, err
	}
	if err := checkFeatures(spec.FeatureLimits, remaining); err != nil {
		return nil, err
	}

	updated := *child
	updated.Name = spec.Name
	if spec.Description != nil && *spec.Description != "" {
		updated.Description = *spec.Description
	}
	updated.Limits.CPU = spec.CPU
	updated.Limits.Memory = spec.Memory
	updated.Limits.Disk = spec.Disk
	updated.Limits.Swap = swapFor(parent, spec.Memory)
	updated.FeatureLimits = child.FeatureLimits.Clone()
	for _, f := range spec.FeatureLimits.Keys() {
		if f.Assignable() {
			updated.FeatureLimits[f] = spec.FeatureLimits[f]
		}
	}

	if err := m.store.Tx(ctx, func(tx *store.Tx) error {
		return m.moveShare(ctx, tx, parent, child, &updated)
	}); err != nil {
		return nil, err
	}
	if err := m.syncPair(ctx, parent, &updated); err != nil {
		return nil, m.compensateResize(ctx, parent, child, &updated, err)
	}

	log.WithFields(log.Fields{
		"parent": parent.ID, "split": updated.ID, "cpu": updated.Limits.CPU, "memory": updated.Limits.Memory, "disk": updated.Limits.Disk,
	}).Info("split resized")
	m.activity.Record(ctx, activity.EventSplitUpdate, parent.ID, map[string]interface{}{
		"uuid":   updated.UUID,
		"name":   updated.Name,
		"cpu":    updated.Limits.CPU,
		"memory": updated.Limits.Memory,
		"disk":   updated.Limits.Disk,
		"swap":   updated.Limits.Swap,
	})

	m.applyModificationAction(ctx, parent, cfg.ServerModificationAction)
	m.applyModificationAction(ctx, &updated, cfg.ServerModificationAction)
	return &updated, nil
}

// moveShare hands from's share back to parent, stores to and takes its share.
func (m *Manager) moveShare(ctx context.Context, tx *store.Tx, parent, from, to *model.Server) error {
	if err := tx.AdjustLimits(ctx, parent.ID, ledger.Credit(parent, from)); err != nil {
		return err
	}
	if err := tx.UpdateServer(ctx, to); err != nil {
		return err
	}
	return tx.AdjustLimits(ctx, parent.ID, ledger.Grant(parent, to.Limits, to.FeatureLimits))
}

// syncPair pushes the split and its parent to the daemon. It runs after the
// transaction commits; the daemon client reads nodes through the same store.
func (m *Manager) syncPair(ctx context.Context, parent, split *model.Server) error {
	if err := m.daemon.SyncServer(ctx, split); err != nil {
		return fmt.Errorf("sync split %s: %w", split.UUID, err)
	}
	if err := m.daemon.SyncServer(ctx, parent); err != nil {
		return fmt.Errorf("sync parent %s: %w", parent.UUID, err)
	}
	return nil
}

// compensateResize restores the split's previous share after the daemon
// refused the new one, then pushes the restored state on a best-effort basis.
func (m *Manager) compensateResize(ctx context.Context, parent, previous, updated *model.Server, cause error) error {
	logger := log.WithFields(log.Fields{"parent": parent.ID, "split": updated.ID})
	err := m.store.Tx(ctx, func(tx *store.Tx) error {
		return m.moveShare(ctx, tx, parent, updated, previous)
	})
	if err != nil {
		logger.Errorf("split resize rollback failed, manual cleanup required: %v (cause: %v)", err, cause)
		return errors.Join(cause, err)
	}
	if err := m.syncPair(ctx, parent, previous); err != nil {
		logger.Warnf("restored split share but sync failed: %v", err)
	}
	logger.Warnf("split resize rolled back: %v", cause)
	return cause
}
