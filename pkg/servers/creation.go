// Package servers provisions and removes servers on their node's daemon while
// keeping the panel's records in step.
package servers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"server-splitter/pkg/daemon"
	"server-splitter/pkg/model"
	"server-splitter/pkg/store"
)

// CreateSpec describes a server to provision.
type CreateSpec struct {
	Name          string
	Description   string
	OwnerID       int64
	NodeID        int64
	AllocationID  int64
	Egg           *model.Egg
	Limits        model.Limits
	FeatureLimits model.FeatureLimits
	Environment   map[string]string
	Threads       *string
	OOMDisabled   bool

	StartOnCompletion bool

	// OnBehalfOf is the parent a split is carved from. When set, the new
	// server takes its owner, node, io weight, OOM setting and thread pinning
	// from it. It does not set the parent link; the caller does that once the
	// capacity has been moved.
	OnBehalfOf *model.Server
}

type Creator struct {
	store  *store.Store
	daemon daemon.Client
}

func NewCreator(s *store.Store, client daemon.Client) *Creator {
	return &Creator{store: s, daemon: client}
}

// Create stores the server, claims its allocation and asks the daemon to
// install it. If the daemon refuses, the stored records are removed again.
func (c *Creator) Create(ctx context.Context, spec CreateSpec) (*model.Server, error) {
	if spec.Egg == nil {
		return nil, errors.New("server egg is required")
	}
	srv := &model.Server{
		UUID:          uuid.NewString(),
		Name:          spec.Name,
		Description:   spec.Description,
		OwnerID:       spec.OwnerID,
		NodeID:        spec.NodeID,
		AllocationID:  spec.AllocationID,
		NestID:        spec.Egg.NestID,
		EggID:         spec.Egg.ID,
		Limits:        spec.Limits,
		FeatureLimits: spec.FeatureLimits.Clone(),
		Threads:       spec.Threads,
		OOMDisabled:   spec.OOMDisabled,
		Startup:       spec.Egg.Startup,
		Image:         spec.Egg.DefaultImage(),
	}
	if p := spec.OnBehalfOf; p != nil {
		srv.OwnerID = p.OwnerID
		srv.NodeID = p.NodeID
		srv.Limits.IO = p.Limits.IO
		srv.OOMDisabled = p.OOMDisabled
		srv.Threads = p.Threads
	}

	err := c.store.Tx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertServer(ctx, srv); err != nil {
			return err
		}
		if err := tx.ClaimAllocation(ctx, srv.AllocationID, srv.ID); err != nil {
			return err
		}
		for k, v := range spec.Environment {
			if err := tx.SetServerVariable(ctx, srv.ID, k, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store server %s: %w", srv.Name, err)
	}

	logger := log.WithFields(log.Fields{"server": srv.ID, "uuid": srv.UUID, "node": srv.NodeID})
	if spec.OnBehalfOf != nil {
		logger = logger.WithField("parent", spec.OnBehalfOf.ID)
	}

	if err := c.daemon.CreateServer(ctx, srv, spec.StartOnCompletion); err != nil {
		logger.Errorf("daemon refused server creation: %v", err)
		if cleanupErr := c.store.DeleteServer(ctx, srv.ID); cleanupErr != nil {
			logger.Errorf("failed to remove server record after daemon error: %v", cleanupErr)
			return nil, errors.Join(err, cleanupErr)
		}
		return nil, fmt.Errorf("create server %s on daemon: %w", srv.UUID, err)
	}

	logger.Info("server created")
	return srv, nil
}
