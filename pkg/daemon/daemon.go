// Package daemon talks to the hosting daemon that runs servers on a node.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"server-splitter/pkg/model"
)

type PowerAction string

const (
	PowerStart   PowerAction = "start"
	PowerStop    PowerAction = "stop"
	PowerRestart PowerAction = "restart"
	PowerKill    PowerAction = "kill"
)

const StateOffline = "offline"

type Utilization struct {
	MemoryBytes int64   `json:"memory_bytes"`
	CPUAbsolute float64 `json:"cpu_absolute"`
	DiskBytes   int64   `json:"disk_bytes"`
}

type ServerDetails struct {
	State       string      `json:"state"`
	Utilization Utilization `json:"utilization"`
}

// Running reports whether the server is in any state other than offline.
func (d *ServerDetails) Running() bool {
	return d.State != "" && d.State != StateOffline
}

type SystemInformation struct {
	Architecture  string `json:"architecture"`
	CPUThreads    int    `json:"cpu_threads"`
	MemoryBytes   int64  `json:"memory_bytes"`
	KernelVersion string `json:"kernel_version"`
}

// Client is the set of daemon operations the panel depends on.
type Client interface {
	CreateServer(ctx context.Context, s *model.Server, startOnCompletion bool) error
	// DeleteServer returns an error satisfying IsNotFound when the daemon has no such server.
	DeleteServer(ctx context.Context, s *model.Server) error
	SyncServer(ctx context.Context, s *model.Server) error
	ServerDetails(ctx context.Context, s *model.Server) (*ServerDetails, error)
	SendPower(ctx context.Context, s *model.Server, action PowerAction) error
	SystemInformation(ctx context.Context, nodeID int64) (*SystemInformation, error)
}

// RequestError is a non-2xx answer from the daemon.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("daemon %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func IsNotFound(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}
