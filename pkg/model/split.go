package model

// SplitSpec describes the capacity requested for a new or resized split.
type SplitSpec struct {
	Name          string
	Description   *string
	CPU           int64
	Memory        int64
	Disk          int64
	FeatureLimits FeatureLimits
	// EggUUID optionally selects an egg allowed by the parent's egg rule.
	EggUUID      string
	SyncSubusers bool
}

type CreateSplitRequest struct {
	Name          string           `json:"name" binding:"required,min=1,max=191"`
	Description   *string          `json:"description"`
	SyncSubusers  bool             `json:"sync_subusers"`
	CPU           int64            `json:"cpu" binding:"min=0"`
	Memory        int64            `json:"memory" binding:"min=0"`
	Disk          int64            `json:"disk" binding:"min=0"`
	FeatureLimits map[string]int64 `json:"feature_limits" binding:"required"`
	EggID         string           `json:"egg_id" binding:"omitempty,uuid"`
}

type ResizeSplitRequest struct {
	Name          string           `json:"name" binding:"required,min=1,max=191"`
	Description   *string          `json:"description"`
	CPU           int64            `json:"cpu" binding:"min=0"`
	Memory        int64            `json:"memory" binding:"min=0"`
	Disk          int64            `json:"disk" binding:"min=0"`
	FeatureLimits map[string]int64 `json:"feature_limits" binding:"required"`
}

// SplitOverview is the listing returned for a parent and its splits.
type SplitOverview struct {
	ServerModificationAction string         `json:"server_modification_action"`
	Resources                OverviewTotals `json:"resources"`
	Master                   ServerView     `json:"master"`
	Servers                  []ServerView   `json:"servers"`
}

type OverviewTotals struct {
	Total            Resources `json:"total"`
	Remaining        Resources `json:"remaining"`
	RemainingDisplay Resources `json:"remaining_display"`
	Reserved         Reserved  `json:"reserved"`
}

// BuildChange is an administrative change of a server's build limits.
// Nil fields are left unchanged.
type BuildChange struct {
	CPU           *int64           `json:"cpu"`
	Memory        *int64           `json:"memory"`
	Disk          *int64           `json:"disk"`
	Swap          *int64           `json:"swap"`
	FeatureLimits map[string]int64 `json:"feature_limits"`
}

type AssignThreadsRequest struct {
	Threads int `json:"threads" binding:"required,min=1"`
}
