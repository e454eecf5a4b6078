package ledger

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"server-splitter/pkg/model"
)

var reserved = model.Reserved{CPU: 10, Memory: 128, Disk: 256}

func parentServer() *model.Server {
	return &model.Server{
		ID:            1,
		SplitterLimit: 3,
		Limits:        model.Limits{CPU: 100, Memory: 4096, Disk: 10240},
		FeatureLimits: model.FeatureLimits{
			model.FeatureAllocations: 4,
			model.FeatureBackups:     2,
			model.FeatureDatabases:   1,
		},
	}
}

func childServer(cpu, memory, disk int64) *model.Server {
	parentID := int64(1)
	return &model.Server{
		ID:            2,
		ParentID:      &parentID,
		Limits:        model.Limits{CPU: cpu, Memory: memory, Disk: disk},
		FeatureLimits: model.FeatureLimits{model.FeatureAllocations: 1},
	}
}

func TestTotal(t *testing.T) {
	parent := parentServer()
	got := Total(parent, []*model.Server{childServer(30, 1024, 2048), childServer(20, 512, 1024)})

	want := model.Resources{
		CPU:    150,
		Memory: 5632,
		Disk:   13312,
		FeatureLimits: model.FeatureLimits{
			model.FeatureAllocations: 6,
			model.FeatureBackups:     2,
			model.FeatureDatabases:   1,
			model.FeatureSplits:      3,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected total (-want +got):\n%s", diff)
	}
}

func TestTotalUnlimitedParent(t *testing.T) {
	parent := parentServer()
	parent.Limits.CPU = 0
	parent.Limits.Disk = 0

	got := Total(parent, []*model.Server{childServer(50, 1024, 2048)})
	require.Equal(t, model.Unlimited, got.CPU)
	require.Equal(t, model.Unlimited, got.Disk)
	require.Equal(t, int64(5120), got.Memory)
}

func TestRemaining(t *testing.T) {
	parent := parentServer()
	usage := Usage{
		DiskBytes: 1024*1024*100 + 1,
		Counts:    map[model.Feature]int64{model.FeatureAllocations: 1, model.FeatureBackups: 3},
	}

	got := Remaining(parent, reserved, usage, nil)
	require.Equal(t, int64(90), got.CPU)
	require.Equal(t, int64(3968), got.Memory)
	// 10240 - 256 - ceil(100MiB + 1 byte)
	require.Equal(t, int64(9883), got.Disk)
	require.Equal(t, int64(3), got.FeatureLimits[model.FeatureAllocations])
	require.Equal(t, int64(0), got.FeatureLimits[model.FeatureBackups], "clamped at zero")
	require.Equal(t, int64(1), got.FeatureLimits[model.FeatureDatabases])
	require.Equal(t, int64(0), got.FeatureLimits[model.FeatureSplits])
}

func TestRemainingAddsBackChild(t *testing.T) {
	parent := parentServer()
	child := childServer(50, 2048, 5120)

	got := Remaining(parent, reserved, Usage{}, child)
	require.Equal(t, int64(140), got.CPU)
	require.Equal(t, int64(6016), got.Memory)
	require.Equal(t, int64(15104), got.Disk)
	require.Equal(t, int64(5), got.FeatureLimits[model.FeatureAllocations])
}

func TestRemainingSkipsReservedBelowTopLevel(t *testing.T) {
	split := childServer(50, 2048, 5120)
	got := Remaining(split, reserved, Usage{DiskBytes: 1 << 30}, nil)
	require.Equal(t, int64(50), got.CPU)
	require.Equal(t, int64(2048), got.Memory)
	require.Equal(t, int64(5120), got.Disk)
}

func TestRemainingUnlimited(t *testing.T) {
	parent := parentServer()
	parent.Limits.CPU = 0
	parent.Limits.Disk = 0

	got := Remaining(parent, reserved, Usage{}, childServer(50, 1024, 0))
	require.Equal(t, model.Unlimited, got.CPU)
	require.Equal(t, model.Unlimited, got.Disk)
}

func TestDisplay(t *testing.T) {
	rem := model.Resources{CPU: model.Unlimited, Memory: 100, Disk: 200, FeatureLimits: model.FeatureLimits{}}

	shown := Display(rem, reserved, true)
	require.Equal(t, rem, shown)

	hidden := Display(rem, reserved, false)
	require.Equal(t, model.Unlimited, hidden.CPU)
	require.Equal(t, int64(228), hidden.Memory)
	require.Equal(t, int64(456), hidden.Disk)
}

func TestGrantAndCreditAreSymmetric(t *testing.T) {
	parent := parentServer()
	child := childServer(50, 2048, 5120)

	grant := Grant(parent, child.Limits, child.FeatureLimits)
	credit := Credit(parent, child)
	require.Equal(t, model.Delta{CPU: 50, Memory: 2048, Disk: 5120, FeatureLimits: model.FeatureLimits{
		model.FeatureAllocations: 1, model.FeatureBackups: 0, model.FeatureDatabases: 0,
	}}, credit)
	require.Equal(t, model.Delta{CPU: -50, Memory: -2048, Disk: -5120, FeatureLimits: model.FeatureLimits{
		model.FeatureAllocations: -1, model.FeatureBackups: 0, model.FeatureDatabases: 0,
	}}, grant)
}

func TestGrantSkipsUnlimitedDimensions(t *testing.T) {
	parent := parentServer()
	parent.Limits.CPU = 0

	d := Grant(parent, model.Limits{CPU: 50, Memory: 1024, Disk: 2048}, nil)
	require.Equal(t, int64(0), d.CPU)
	require.Equal(t, int64(-1024), d.Memory)
	require.Equal(t, int64(-2048), d.Disk)

	c := Credit(parent, childServer(50, 1024, 2048))
	require.Equal(t, int64(0), c.CPU)
}
