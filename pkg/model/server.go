package model

// Unlimited is reported for a cpu or disk dimension that has no cap.
const Unlimited int64 = -1

type Limits struct {
	CPU    int64 `json:"cpu"`
	Memory int64 `json:"memory"`
	Disk   int64 `json:"disk"`
	Swap   int64 `json:"swap"`
	IO     int64 `json:"io"`
}

// UnlimitedCPU reports whether cpu is the "no cap" sentinel (0).
func (l Limits) UnlimitedCPU() bool { return l.CPU == 0 }

// UnlimitedDisk reports whether disk is the "no cap" sentinel (0).
func (l Limits) UnlimitedDisk() bool { return l.Disk == 0 }

// SwapProportional reports whether children should get swap sized from memory.
func (l Limits) SwapProportional() bool { return l.Swap > 0 || l.Swap == -1 }

type Server struct {
	ID            int64
	UUID          string
	Name          string
	Description   string
	OwnerID       int64
	NodeID        int64
	AllocationID  int64
	NestID        int64
	EggID         int64
	ParentID      *int64
	SplitterLimit int64
	Limits        Limits
	FeatureLimits FeatureLimits
	Threads       *string
	OOMDisabled   bool
	Startup       string
	Image         string
}

func (s *Server) IsSplit() bool { return s.ParentID != nil }

// Identifier is the short form of the uuid shown to users.
func (s *Server) Identifier() string {
	if len(s.UUID) < 8 {
		return s.UUID
	}
	return s.UUID[:8]
}

type Node struct {
	ID          int64
	Name        string
	Scheme      string
	FQDN        string
	DaemonPort  int
	DaemonToken string
}

type Allocation struct {
	ID       int64
	NodeID   int64
	IP       string
	Port     int
	ServerID *int64
}

type Subuser struct {
	ID          int64
	ServerID    int64
	UserID      int64
	Permissions []string
}
