package model

// Resources is an aggregate of capacity. CPU and Disk may be Unlimited.
type Resources struct {
	CPU           int64         `json:"cpu"`
	Memory        int64         `json:"memory"`
	Disk          int64         `json:"disk"`
	FeatureLimits FeatureLimits `json:"feature_limits"`
}

type Reserved struct {
	CPU    int64 `json:"cpu"`
	Memory int64 `json:"memory"`
	Disk   int64 `json:"disk"`
}

// Delta is a signed change applied to a server's stored limits.
type Delta struct {
	CPU           int64
	Memory        int64
	Disk          int64
	FeatureLimits FeatureLimits
}
