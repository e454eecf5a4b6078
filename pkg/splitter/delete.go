package splitter

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"server-splitter/pkg/activity"
	"server-splitter/pkg/lock"
	"server-splitter/pkg/model"
	"server-splitter/pkg/store"
)

// Delete removes a split and returns its capacity to the parent.
func (m *Manager) Delete(ctx context.Context, s *model.Server, childUUID string) (err error) {
	defer func() { observe("delete", err) }()

	if s.UUID == childUUID {
		return invalid("Cannot delete current server.")
	}
	parent, err := m.Parent(ctx, s)
	if err != nil {
		return err
	}
	child, err := m.child(ctx, parent.ID, childUUID)
	if err != nil {
		return err
	}

	handles, err := m.lockPair(child.ID, parent.ID, deleteLockTTL)
	if err != nil {
		return err
	}
	defer lock.ReleaseAll(handles)

	if err := m.deleter.Delete(ctx, child, false); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Split not found.", err)
		}
		return err
	}

	log.WithFields(log.Fields{"parent": parent.ID, "split": child.ID, "uuid": child.UUID}).Info("split deleted")
	m.activity.Record(ctx, activity.EventSplitDelete, parent.ID, map[string]interface{}{
		"uuid": child.UUID,
		"name": child.Name,
	})
	return nil
}
