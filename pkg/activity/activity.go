// Package activity records audit events for server changes.
package activity

import (
	"context"

	log "github.com/sirupsen/logrus"

	"server-splitter/pkg/model"
)

const (
	EventSplitCreate = "server:splitter.split"
	EventSplitUpdate = "server:splitter.update"
	EventSplitDelete = "server:splitter.delete"
	EventBuildUpdate = "server:build.update"
	EventThreads     = "server:threads.assign"
)

type Store interface {
	InsertActivity(ctx context.Context, a *model.ActivityLog) error
}

type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record stores an event. It never fails the caller; errors are logged.
func (r *Recorder) Record(ctx context.Context, event string, serverID int64, props map[string]interface{}) {
	fields := log.Fields{"event": event, "server": serverID}
	for k, v := range props {
		fields[k] = v
	}
	log.WithFields(fields).Info("activity")

	entry := &model.ActivityLog{Event: event, ServerID: &serverID, Properties: props}
	if err := r.store.InsertActivity(ctx, entry); err != nil {
		log.WithFields(fields).Errorf("failed to record activity: %v", err)
	}
}
