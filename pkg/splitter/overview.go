package splitter

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"server-splitter/pkg/ledger"
	"server-splitter/pkg/model"
	"server-splitter/pkg/store"
)

// Overview lists the parent of s with its splits and the capacity totals.
func (m *Manager) Overview(ctx context.Context, s *model.Server) (*model.SplitOverview, error) {
	parent, err := m.Parent(ctx, s)
	if err != nil {
		return nil, err
	}
	children, err := m.store.Children(ctx, parent.ID)
	if err != nil {
		return nil, err
	}
	cfg, err := m.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	remaining, err := m.remaining(ctx, parent, cfg, nil)
	if err != nil {
		return nil, err
	}

	return &model.SplitOverview{
		ServerModificationAction: string(cfg.ServerModificationAction),
		Resources: model.OverviewTotals{
			Total:            ledger.Total(parent, children),
			Remaining:        remaining,
			RemainingDisplay: ledger.Display(remaining, cfg.Reserved, cfg.DisplayReservedLimits),
			Reserved:         cfg.Reserved,
		},
		Master:  model.NewServerView(parent),
		Servers: model.NewServerViews(children),
	}, nil
}

// UsableNests groups the eggs a split of s may run by nest name.
func (m *Manager) UsableNests(ctx context.Context, s *model.Server) (map[string][]*model.Egg, error) {
	parent, err := m.Parent(ctx, s)
	if err != nil {
		return nil, err
	}
	eggs, err := m.usableEggs(ctx, parent)
	if err != nil {
		return nil, err
	}

	out := map[string][]*model.Egg{}
	names := map[int64]string{}
	for _, e := range eggs {
		name, ok := names[e.NestID]
		if !ok {
			nest, err := m.store.GetNest(ctx, e.NestID)
			if err != nil {
				return nil, err
			}
			name = nest.Name
			names[e.NestID] = name
		}
		out[name] = append(out[name], e)
	}
	return out, nil
}

// usableEggs returns the eggs allowed by the rule matching the parent's egg.
// No matching rule allows nothing.
func (m *Manager) usableEggs(ctx context.Context, parent *model.Server) ([]*model.Egg, error) {
	rule, err := m.store.EggRuleFor(ctx, parent.EggID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.store.EggsByIDs(ctx, rule.AllowedEggs)
}

// SyncSubusers copies the subusers of s onto one of its splits. s must be a
// top-level server.
func (m *Manager) SyncSubusers(ctx context.Context, s *model.Server, childUUID string) error {
	if s.IsSplit() {
		return invalid("Cannot sync subusers on a server that is not a parent server.")
	}
	child, err := m.child(ctx, s.ID, childUUID)
	if err != nil {
		return err
	}
	return m.copySubusers(ctx, s, child)
}

// copySubusers grants every subuser of parent the same permissions on child,
// skipping users the child already has.
func (m *Manager) copySubusers(ctx context.Context, parent, child *model.Server) error {
	from, err := m.store.Subusers(ctx, parent.ID)
	if err != nil {
		return err
	}
	existing, err := m.store.Subusers(ctx, child.ID)
	if err != nil {
		return err
	}
	have := make(map[int64]bool, len(existing))
	for _, su := range existing {
		have[su.UserID] = true
	}

	copied := 0
	for _, su := range from {
		if have[su.UserID] {
			continue
		}
		if err := m.store.InsertSubuser(ctx, &model.Subuser{ServerID: child.ID, UserID: su.UserID, Permissions: su.Permissions}); err != nil {
			return err
		}
		copied++
	}
	log.WithFields(log.Fields{"parent": parent.ID, "split": child.ID, "copied": copied}).Debug("subusers synced")
	return nil
}
