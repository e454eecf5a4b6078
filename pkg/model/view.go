package model

type ServerView struct {
	ID            int64             `json:"id"`
	UUID          string            `json:"uuid"`
	Identifier    string            `json:"identifier"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	ParentID      *int64            `json:"parent_id"`
	Limits        ServerViewLimits  `json:"limits"`
	FeatureLimits map[Feature]int64 `json:"feature_limits"`
	EggID         int64             `json:"egg_id"`
	NodeID        int64             `json:"node_id"`
}

type ServerViewLimits struct {
	Limits
	Threads *string `json:"threads"`
}

func NewServerView(s *Server) ServerView {
	features := map[Feature]int64{FeatureSplits: s.SplitterLimit}
	for _, f := range AssignableFeatures {
		features[f] = s.FeatureLimits.Get(f)
	}
	return ServerView{
		ID:            s.ID,
		UUID:          s.UUID,
		Identifier:    s.Identifier(),
		Name:          s.Name,
		Description:   s.Description,
		ParentID:      s.ParentID,
		Limits:        ServerViewLimits{Limits: s.Limits, Threads: s.Threads},
		FeatureLimits: features,
		EggID:         s.EggID,
		NodeID:        s.NodeID,
	}
}

func NewServerViews(servers []*Server) []ServerView {
	out := make([]ServerView, 0, len(servers))
	for _, s := range servers {
		out = append(out, NewServerView(s))
	}
	return out
}
