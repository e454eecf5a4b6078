package servers

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"server-splitter/pkg/daemon"
	"server-splitter/pkg/ledger"
	"server-splitter/pkg/model"
	"server-splitter/pkg/store"
)

type Deleter struct {
	store  *store.Store
	daemon daemon.Client
}

func NewDeleter(s *store.Store, client daemon.Client) *Deleter {
	return &Deleter{store: s, daemon: client}
}

// Delete removes a server from its daemon and from the panel.
//
// A split hands its capacity back to its parent in the same transaction that
// removes its record. The parent is re-synced with the daemon once that
// transaction has committed. A top-level server deletes its splits first.
//
// With force, daemon errors are logged and the records are removed anyway. A
// daemon answering that the server does not exist is never an error.
func (d *Deleter) Delete(ctx context.Context, srv *model.Server, force bool) error {
	logger := log.WithFields(log.Fields{"server": srv.ID, "uuid": srv.UUID, "force": force})

	if !srv.IsSplit() {
		children, err := d.store.Children(ctx, srv.ID)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := d.Delete(ctx, child, force); err != nil {
				return fmt.Errorf("delete split %s of %s: %w", child.UUID, srv.UUID, err)
			}
		}
	}

	if err := d.daemon.DeleteServer(ctx, srv); err != nil {
		switch {
		case daemon.IsNotFound(err):
			logger.Warn("server already absent on daemon")
		case force:
			logger.Warnf("ignoring daemon error on forced delete: %v", err)
		default:
			return fmt.Errorf("delete server %s on daemon: %w", srv.UUID, err)
		}
	}

	var parent *model.Server
	err := d.store.Tx(ctx, func(tx *store.Tx) error {
		// re-read so a concurrent delete cannot credit the parent twice
		current, err := tx.GetServer(ctx, srv.ID)
		if err != nil {
			return err
		}
		if current.ParentID != nil {
			if parent, err = creditParent(ctx, tx, current); err != nil {
				return err
			}
		}
		return tx.DeleteServer(ctx, current.ID)
	})
	if err != nil {
		return err
	}
	logger.Info("server deleted")

	// a failed parent sync leaves the credit in place
	if parent != nil {
		if err := d.daemon.SyncServer(ctx, parent); err != nil {
			logger.WithField("parent", parent.ID).Warnf("parent credited but sync failed: %v", err)
		}
	}
	return nil
}

func creditParent(ctx context.Context, tx *store.Tx, child *model.Server) (*model.Server, error) {
	parent, err := tx.GetServer(ctx, *child.ParentID)
	if err != nil {
		return nil, err
	}
	if err := tx.AdjustLimits(ctx, parent.ID, ledger.Credit(parent, child)); err != nil {
		return nil, err
	}
	return tx.GetServer(ctx, parent.ID)
}
