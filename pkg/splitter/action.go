package splitter

import (
	"context"

	log "github.com/sirupsen/logrus"

	"server-splitter/pkg/daemon"
	"server-splitter/pkg/model"
	"server-splitter/pkg/settings"
)

// applyModificationAction sends the configured power action to s if the daemon
// reports it running. Failures are logged only.
func (m *Manager) applyModificationAction(ctx context.Context, s *model.Server, action settings.Action) {
	if action == settings.ActionNone || action == "" {
		return
	}
	logger := log.WithFields(log.Fields{"server": s.ID, "action": action})

	details, err := m.daemon.ServerDetails(ctx, s)
	if err != nil {
		logger.Warnf("cannot read server state: %v", err)
		return
	}
	if !details.Running() {
		return
	}

	var steps []daemon.PowerAction
	switch action {
	case settings.ActionRestart:
		steps = []daemon.PowerAction{daemon.PowerRestart}
	case settings.ActionStop:
		steps = []daemon.PowerAction{daemon.PowerStop}
	case settings.ActionKill:
		steps = []daemon.PowerAction{daemon.PowerKill}
	case settings.ActionKillAndRestart:
		steps = []daemon.PowerAction{daemon.PowerKill, daemon.PowerStart}
	}
	for _, step := range steps {
		if err := m.daemon.SendPower(ctx, s, step); err != nil {
			logger.Warnf("power action %s failed: %v", step, err)
			return
		}
	}
}
