// Package ledger computes capacity aggregates for a parent server and its
// splits. It performs no I/O; callers supply live usage figures.
package ledger

import "server-splitter/pkg/model"

const bytesPerMiB = 1024 * 1024

// Usage carries live figures for a parent that are not stored on the server row.
type Usage struct {
	// DiskBytes is the parent's used disk; zero when unknown or not tracked.
	DiskBytes int64
	// Counts holds the number of existing sub-resources per feature on the parent.
	Counts map[model.Feature]int64
}

// Total sums the parent's own limits with those of its direct children.
// An unlimited parent cpu or disk is reported as model.Unlimited.
func Total(parent *model.Server, children []*model.Server) model.Resources {
	total := model.Resources{
		CPU:           parent.Limits.CPU,
		Memory:        parent.Limits.Memory,
		Disk:          parent.Limits.Disk,
		FeatureLimits: model.FeatureLimits{},
	}
	for _, f := range model.AssignableFeatures {
		total.FeatureLimits[f] = parent.FeatureLimits.Get(f)
	}
	for _, c := range children {
		total.CPU += c.Limits.CPU
		total.Memory += c.Limits.Memory
		total.Disk += c.Limits.Disk
		for _, f := range model.AssignableFeatures {
			total.FeatureLimits[f] += c.FeatureLimits.Get(f)
		}
	}
	total.FeatureLimits[model.FeatureSplits] = parent.SplitterLimit
	if parent.Limits.UnlimitedCPU() {
		total.CPU = model.Unlimited
	}
	if parent.Limits.UnlimitedDisk() {
		total.Disk = model.Unlimited
	}
	return total
}

// Remaining computes what can still be granted to splits of parent. The reserved
// minimum and live disk usage only apply to a top-level parent. When child is
// given, its current share is added back so it can be revalidated in place.
func Remaining(parent *model.Server, reserved model.Reserved, usage Usage, child *model.Server) model.Resources {
	var neg model.Reserved
	var usedMiB int64
	if !parent.IsSplit() {
		neg = reserved
		if usage.DiskBytes > 0 {
			usedMiB = (usage.DiskBytes + bytesPerMiB - 1) / bytesPerMiB
		}
	}

	var back model.Limits
	backFeatures := model.FeatureLimits{}
	if child != nil {
		back = child.Limits
		backFeatures = child.FeatureLimits
	}

	out := model.Resources{
		CPU:           parent.Limits.CPU - neg.CPU + back.CPU,
		Memory:        parent.Limits.Memory - neg.Memory + back.Memory,
		Disk:          parent.Limits.Disk - neg.Disk - usedMiB + back.Disk,
		FeatureLimits: model.FeatureLimits{},
	}
	if parent.Limits.UnlimitedCPU() {
		out.CPU = model.Unlimited
	}
	if parent.Limits.UnlimitedDisk() {
		out.Disk = model.Unlimited
	}

	for _, f := range model.AssignableFeatures {
		v := parent.FeatureLimits.Get(f) - usage.Counts[f] + backFeatures.Get(f)
		if v < 0 {
			v = 0
		}
		out.FeatureLimits[f] = v
	}
	out.FeatureLimits[model.FeatureSplits] = 0
	return out
}

// Display adds the reserved minimum back onto capped dimensions when the
// reserved share should not be shown to users.
func Display(remaining model.Resources, reserved model.Reserved, showReserved bool) model.Resources {
	out := remaining
	out.FeatureLimits = remaining.FeatureLimits.Clone()
	if showReserved {
		return out
	}
	if out.CPU != model.Unlimited {
		out.CPU += reserved.CPU
	}
	out.Memory += reserved.Memory
	if out.Disk != model.Unlimited {
		out.Disk += reserved.Disk
	}
	return out
}

// Grant returns the change to apply to parent when handing cpu, memory, disk and
// features to a split. Dimensions the parent holds as unlimited are left at zero.
func Grant(parent *model.Server, limits model.Limits, features model.FeatureLimits) model.Delta {
	d := model.Delta{Memory: -limits.Memory, FeatureLimits: model.FeatureLimits{}}
	if !parent.Limits.UnlimitedCPU() {
		d.CPU = -limits.CPU
	}
	if !parent.Limits.UnlimitedDisk() {
		d.Disk = -limits.Disk
	}
	for _, f := range model.AssignableFeatures {
		d.FeatureLimits[f] = -features.Get(f)
	}
	return d
}

// Credit returns the change to apply to parent when child's share is returned.
func Credit(parent, child *model.Server) model.Delta {
	d := model.Delta{Memory: child.Limits.Memory, FeatureLimits: model.FeatureLimits{}}
	if child.Limits.CPU > 0 && !parent.Limits.UnlimitedCPU() {
		d.CPU = child.Limits.CPU
	}
	if child.Limits.Disk > 0 && !parent.Limits.UnlimitedDisk() {
		d.Disk = child.Limits.Disk
	}
	for _, f := range model.AssignableFeatures {
		d.FeatureLimits[f] = child.FeatureLimits.Get(f)
	}
	return d
}
