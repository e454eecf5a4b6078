package model

import "time"

// ActivityLog is one audit record.
type ActivityLog struct {
	ID         int64                  `json:"id"`
	Event      string                 `json:"event"`
	ServerID   *int64                 `json:"server_id"`
	Properties map[string]interface{} `json:"properties"`
	CreatedAt  time.Time              `json:"created_at"`
}
