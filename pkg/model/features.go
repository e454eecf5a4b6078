package model

import (
	"fmt"
	"sort"
)

// Feature is the public name of a countable sub-resource cap.
type Feature string

const (
	FeatureAllocations Feature = "allocations"
	FeatureBackups     Feature = "backups"
	FeatureDatabases   Feature = "databases"
	// FeatureSplits is reported alongside the others but is never assignable.
	FeatureSplits Feature = "splits"
)

// featureColumns maps every public feature name to the servers column storing it.
var featureColumns = map[Feature]string{
	FeatureAllocations: "allocation_limit",
	FeatureBackups:     "backup_limit",
	FeatureDatabases:   "database_limit",
	FeatureSplits:      "splitter_limit",
}

var columnFeatures = map[string]Feature{}

// AssignableFeatures are the features carved from a parent when splitting.
var AssignableFeatures = []Feature{FeatureAllocations, FeatureBackups, FeatureDatabases}

func init() {
	if err := buildColumnIndex(); err != nil {
		panic(err)
	}
}

func buildColumnIndex() error {
	for f, col := range featureColumns {
		if col == "" {
			return fmt.Errorf("feature %q has no storage column", f)
		}
		if other, ok := columnFeatures[col]; ok {
			return fmt.Errorf("features %q and %q share storage column %q", f, other, col)
		}
		columnFeatures[col] = f
	}
	for _, f := range AssignableFeatures {
		if _, ok := featureColumns[f]; !ok {
			return fmt.Errorf("assignable feature %q has no storage column", f)
		}
	}
	return nil
}

// Column returns the storage column backing the feature.
func (f Feature) Column() string { return featureColumns[f] }

func (f Feature) Assignable() bool {
	return f != FeatureSplits && featureColumns[f] != ""
}

// ParseFeature resolves a public feature name.
func ParseFeature(name string) (Feature, error) {
	f := Feature(name)
	if _, ok := featureColumns[f]; !ok {
		return "", fmt.Errorf("unknown feature limit %q", name)
	}
	return f, nil
}

// FeatureForColumn resolves a storage column back to its feature name.
func FeatureForColumn(column string) (Feature, bool) {
	f, ok := columnFeatures[column]
	return f, ok
}

// FeatureLimits holds assignable feature caps keyed by public name.
type FeatureLimits map[Feature]int64

// ParseFeatureLimits converts a request map into FeatureLimits, dropping the
// non-assignable "splits" key and rejecting unknown names.
func ParseFeatureLimits(in map[string]int64) (FeatureLimits, error) {
	out := FeatureLimits{}
	for name, v := range in {
		f, err := ParseFeature(name)
		if err != nil {
			return nil, err
		}
		if !f.Assignable() {
			continue
		}
		if v < 0 {
			return nil, fmt.Errorf("feature limit %q must not be negative", name)
		}
		out[f] = v
	}
	return out, nil
}

func (fl FeatureLimits) Get(f Feature) int64 { return fl[f] }

func (fl FeatureLimits) Clone() FeatureLimits {
	out := make(FeatureLimits, len(fl))
	for k, v := range fl {
		out[k] = v
	}
	return out
}

// Keys returns the features present, in stable order.
func (fl FeatureLimits) Keys() []Feature {
	keys := make([]Feature, 0, len(fl))
	for k := range fl {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
