// Package daemontest provides an in-memory daemon.Client for tests.
package daemontest

import (
	"context"
	"net/http"
	"sync"

	"server-splitter/pkg/daemon"
	"server-splitter/pkg/model"
)

type PowerCall struct {
	UUID   string
	Action daemon.PowerAction
}

// Fake records calls and answers from configurable state. The zero value is
// not usable; call New.
type Fake struct {
	mu sync.Mutex

	Servers     map[string]bool
	States      map[string]string
	DiskBytes   map[string]int64
	NodeThreads map[int64]int

	CreateErr  error
	DeleteErr  error
	SyncErr    error
	DetailsErr error
	SystemErr  error
	PowerErr   error

	Synced []string
	Power  []PowerCall

	// OnCreate runs after a successful CreateServer, outside the fake's lock.
	OnCreate func(s *model.Server)
}

var _ daemon.Client = &Fake{}

func New() *Fake {
	return &Fake{
		Servers:     map[string]bool{},
		States:      map[string]string{},
		DiskBytes:   map[string]int64{},
		NodeThreads: map[int64]int{},
	}
}

func notFound(path string) error {
	return &daemon.RequestError{Method: http.MethodDelete, Path: path, StatusCode: http.StatusNotFound}
}

func (f *Fake) CreateServer(_ context.Context, s *model.Server, _ bool) error {
	f.mu.Lock()
	if f.CreateErr != nil {
		f.mu.Unlock()
		return f.CreateErr
	}
	f.Servers[s.UUID] = true
	hook := f.OnCreate
	f.mu.Unlock()

	if hook != nil {
		hook(s)
	}
	return nil
}

func (f *Fake) DeleteServer(_ context.Context, s *model.Server) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if !f.Servers[s.UUID] {
		return notFound("/api/servers/" + s.UUID)
	}
	delete(f.Servers, s.UUID)
	return nil
}

func (f *Fake) SyncServer(_ context.Context, s *model.Server) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SyncErr != nil {
		return f.SyncErr
	}
	f.Synced = append(f.Synced, s.UUID)
	return nil
}

func (f *Fake) ServerDetails(_ context.Context, s *model.Server) (*daemon.ServerDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DetailsErr != nil {
		return nil, f.DetailsErr
	}
	state, ok := f.States[s.UUID]
	if !ok {
		state = daemon.StateOffline
	}
	return &daemon.ServerDetails{
		State:       state,
		Utilization: daemon.Utilization{DiskBytes: f.DiskBytes[s.UUID]},
	}, nil
}

func (f *Fake) SendPower(_ context.Context, s *model.Server, action daemon.PowerAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PowerErr != nil {
		return f.PowerErr
	}
	f.Power = append(f.Power, PowerCall{UUID: s.UUID, Action: action})
	return nil
}

func (f *Fake) SystemInformation(_ context.Context, nodeID int64) (*daemon.SystemInformation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SystemErr != nil {
		return nil, f.SystemErr
	}
	return &daemon.SystemInformation{CPUThreads: f.NodeThreads[nodeID]}, nil
}

// SetState marks a server as being in the given daemon state.
func (f *Fake) SetState(uuid, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.States[uuid] = state
}

// Has reports whether the daemon currently knows the server.
func (f *Fake) Has(uuid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Servers[uuid]
}

func (f *Fake) PowerCalls() []PowerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PowerCall(nil), f.Power...)
}

func (f *Fake) SyncCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Synced...)
}
