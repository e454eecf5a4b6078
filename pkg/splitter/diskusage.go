package splitter

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	log "github.com/sirupsen/logrus"

	"server-splitter/pkg/daemon"
	"server-splitter/pkg/model"
)

// DiskUsageTTL bounds how stale a parent's reported disk usage may be.
const DiskUsageTTL = 15 * time.Second

type diskUsage struct {
	daemon daemon.Client
	cache  *ttlcache.Cache[int64, int64]
}

func newDiskUsage(client daemon.Client, ttl time.Duration) *diskUsage {
	return &diskUsage{
		daemon: client,
		cache: ttlcache.New(
			ttlcache.WithTTL[int64, int64](ttl),
			ttlcache.WithDisableTouchOnHit[int64, int64](),
		),
	}
}

// bytes returns the server's used disk. When the daemon cannot answer the
// usage is taken as zero, and that answer is cached like any other.
func (d *diskUsage) bytes(ctx context.Context, s *model.Server) int64 {
	if item := d.cache.Get(s.ID); item != nil {
		return item.Value()
	}
	var used int64
	details, err := d.daemon.ServerDetails(ctx, s)
	if err != nil {
		log.WithField("server", s.ID).Warnf("disk usage unavailable, assuming none: %v", err)
	} else {
		used = details.Utilization.DiskBytes
	}
	d.cache.Set(s.ID, used, ttlcache.DefaultTTL)
	return used
}
