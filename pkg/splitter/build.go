package splitter

import (
	"context"

	log "github.com/sirupsen/logrus"

	"server-splitter/pkg/activity"
	"server-splitter/pkg/lock"
	"server-splitter/pkg/model"
	"server-splitter/pkg/store"
)

// dimension is one adjustable limit of a server.
type dimension struct {
	name  string
	value int64
	get   func(*model.Server) int64
	set   func(*model.Server, int64)
	floor int64
	// feature limits are rebalanced even when the parent already holds value
	feature bool
}

// UpdateBuild applies an administrative change of a server's limits.
//
// For a top-level server with splits each value is the new total of the whole
// family: a larger total grows the parent by the difference, a smaller one is
// shared evenly, each split getting the floor of the share and the parent the
// rest. The splitter limit is set on the parent directly. Without splits, or
// for a split, values are written as given.
func (m *Manager) UpdateBuild(ctx context.Context, id int64, change model.BuildChange) (srv *model.Server, err error) {
	defer func() { observe("build", err) }()

	features := map[model.Feature]int64{}
	for name, v := range change.FeatureLimits {
		f, err := model.ParseFeature(name)
		if err != nil {
			return nil, invalid("Unknown feature limit %q.", name)
		}
		if v < 0 {
			return nil, invalid("Feature limit %q must not be negative.", name)
		}
		features[f] = v
	}

	srv, err = m.store.GetServer(ctx, id)
	if err != nil {
		return nil, lookupError("Server not found.", err)
	}
	var children []*model.Server
	if !srv.IsSplit() {
		if children, err = m.store.Children(ctx, srv.ID); err != nil {
			return nil, err
		}
	}

	keys := []string{lock.ServerKey(srv.ID)}
	for _, c := range children {
		keys = append(keys, lock.ServerKey(c.ID))
	}
	handles, err := m.locks.AcquireAll(mutateLockTTL, keys...)
	if err != nil {
		return nil, busy("Failed to acquire lock for server update. Please try again.", err)
	}
	defer lock.ReleaseAll(handles)

	if srv, err = m.reload(ctx, srv.ID, "Server not found."); err != nil {
		return nil, err
	}
	if !srv.IsSplit() {
		if children, err = m.store.Children(ctx, srv.ID); err != nil {
			return nil, err
		}
	}

	cfg, err := m.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	dims := buildDimensions(change, features, cfg.Reserved)

	if change.Swap != nil {
		srv.Limits.Swap = *change.Swap
	}
	if v, ok := features[model.FeatureSplits]; ok && v != 0 {
		srv.SplitterLimit = v
	}

	if len(children) == 0 {
		for _, d := range dims {
			d.set(srv, d.value)
		}
	} else {
		for _, d := range dims {
			if err := rebalance(d, srv, children); err != nil {
				return nil, err
			}
		}
	}

	affected := append([]*model.Server{srv}, children...)
	err = m.store.Tx(ctx, func(tx *store.Tx) error {
		for _, s := range affected {
			if err := tx.UpdateServer(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, s := range affected {
		if err := m.daemon.SyncServer(ctx, s); err != nil {
			log.WithField("server", s.ID).Warnf("build saved but sync failed: %v", err)
		}
	}

	log.WithFields(log.Fields{"server": srv.ID, "splits": len(children)}).Info("build updated")
	m.activity.Record(ctx, activity.EventBuildUpdate, srv.ID, map[string]interface{}{
		"cpu":    srv.Limits.CPU,
		"memory": srv.Limits.Memory,
		"disk":   srv.Limits.Disk,
		"swap":   srv.Limits.Swap,
		"splits": len(children),
	})
	return srv, nil
}

// buildDimensions lists the requested non-zero changes. A zero value leaves
// the dimension untouched.
func buildDimensions(change model.BuildChange, features map[model.Feature]int64, reserved model.Reserved) []dimension {
	var dims []dimension
	add := func(name string, v *int64, floor int64, get func(*model.Server) int64, set func(*model.Server, int64)) {
		if v == nil || *v == 0 {
			return
		}
		_, feature := features[model.Feature(name)]
		dims = append(dims, dimension{name: name, value: *v, get: get, set: set, floor: floor, feature: feature})
	}
	add("CPU", change.CPU, reserved.CPU,
		func(s *model.Server) int64 { return s.Limits.CPU },
		func(s *model.Server, v int64) { s.Limits.CPU = v })
	add("Memory", change.Memory, reserved.Memory,
		func(s *model.Server) int64 { return s.Limits.Memory },
		func(s *model.Server, v int64) { s.Limits.Memory = v })
	add("Disk", change.Disk, reserved.Disk,
		func(s *model.Server) int64 { return s.Limits.Disk },
		func(s *model.Server, v int64) { s.Limits.Disk = v })

	for _, f := range model.AssignableFeatures {
		v, ok := features[f]
		if !ok {
			continue
		}
		f := f
		add(string(f), &v, 0,
			func(s *model.Server) int64 { return s.FeatureLimits.Get(f) },
			func(s *model.Server, v int64) {
				if s.FeatureLimits == nil {
					s.FeatureLimits = model.FeatureLimits{}
				}
				s.FeatureLimits[f] = v
			})
	}
	return dims
}

// rebalance makes d.value the new family total of parent and children.
func rebalance(d dimension, parent *model.Server, children []*model.Server) error {
	if !d.feature && d.value == d.get(parent) {
		return nil
	}
	sum := d.get(parent)
	for _, c := range children {
		sum += d.get(c)
	}
	if d.value >= sum {
		d.set(parent, d.get(parent)+d.value-sum)
		return nil
	}

	n := int64(len(children))
	share := d.value / (n + 1)
	if share < d.floor {
		return invalid("%s total of %d cannot be shared by %d servers above the reserved minimum of %d.", d.name, d.value, n+1, d.floor)
	}
	for _, c := range children {
		d.set(c, share)
	}
	d.set(parent, d.value-n*share)
	return nil
}
