package activity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"server-splitter/pkg/model"
	"server-splitter/pkg/store/storetest"
)

type failingStore struct{}

func (failingStore) InsertActivity(context.Context, *model.ActivityLog) error {
	return errors.New("disk full")
}

func TestRecord(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	NewRecorder(s).Record(ctx, EventSplitDelete, 9, map[string]interface{}{"name": "lobby"})

	logs, err := s.ListActivity(ctx, 9, 5)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, EventSplitDelete, logs[0].Event)
	require.Equal(t, "lobby", logs[0].Properties["name"])
}

func TestRecordSwallowsErrors(t *testing.T) {
	require.NotPanics(t, func() {
		NewRecorder(failingStore{}).Record(context.Background(), EventSplitCreate, 1, nil)
	})
}
