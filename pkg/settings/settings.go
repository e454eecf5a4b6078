// Package settings provides the splitter's runtime configuration, stored in
// the settings table and cached for a short time.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"
	log "github.com/sirupsen/logrus"

	"server-splitter/pkg/model"
)

// Action is the power action applied to running servers after their capacity changed.
type Action string

const (
	ActionNone           Action = "none"
	ActionRestart        Action = "restart"
	ActionStop           Action = "stop"
	ActionKill           Action = "kill"
	ActionKillAndRestart Action = "kill_and_restart"
)

func (a Action) Valid() bool {
	switch a {
	case ActionNone, ActionRestart, ActionStop, ActionKill, ActionKillAndRestart:
		return true
	}
	return false
}

const (
	KeyReservedCPU              = "reserved_cpu"
	KeyReservedMemory           = "reserved_memory"
	KeyReservedDisk             = "reserved_disk"
	KeyIncludeDiskUsage         = "include_disk_usage"
	KeyDisplayReservedLimits    = "display_reserved_limits"
	KeyServerModificationAction = "server_modification_action"

	keyPrefix = "serversplitter:"
)

// Defaults apply when a key is missing, or for reserved minimums, zero.
var Defaults = Config{
	Reserved:                 model.Reserved{CPU: 10, Memory: 128, Disk: 256},
	IncludeDiskUsage:         true,
	DisplayReservedLimits:    true,
	ServerModificationAction: ActionNone,
}

const CacheTTL = 15 * time.Second

type Config struct {
	Reserved                 model.Reserved `json:"reserved"`
	IncludeDiskUsage         bool           `json:"include_disk_usage"`
	DisplayReservedLimits    bool           `json:"display_reserved_limits"`
	ServerModificationAction Action         `json:"server_modification_action"`
}

// Store is the key/value backing store.
type Store interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

const cacheKey = "config"

type Provider struct {
	store Store
	cache *ttlcache.Cache[string, Config]
}

func NewProvider(store Store, ttl time.Duration) *Provider {
	return &Provider{
		store: store,
		cache: ttlcache.New(
			ttlcache.WithTTL[string, Config](ttl),
			ttlcache.WithDisableTouchOnHit[string, Config](),
		),
	}
}

// Get returns the current configuration. Writes made through Set become
// visible once the cached copy expires.
func (p *Provider) Get(ctx context.Context) (Config, error) {
	if item := p.cache.Get(cacheKey); item != nil {
		return item.Value(), nil
	}
	cfg, err := p.load(ctx)
	if err != nil {
		return Config{}, err
	}
	p.cache.Set(cacheKey, cfg, ttlcache.DefaultTTL)
	return cfg, nil
}

func (p *Provider) load(ctx context.Context) (Config, error) {
	cfg := Defaults
	for _, r := range []struct {
		key string
		dst *int64
		def int64
	}{
		{KeyReservedCPU, &cfg.Reserved.CPU, Defaults.Reserved.CPU},
		{KeyReservedMemory, &cfg.Reserved.Memory, Defaults.Reserved.Memory},
		{KeyReservedDisk, &cfg.Reserved.Disk, Defaults.Reserved.Disk},
	} {
		v, _, err := p.store.GetSetting(ctx, keyPrefix+r.key)
		if err != nil {
			return Config{}, err
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n == 0 {
			n = r.def
		}
		*r.dst = n
	}

	for _, b := range []struct {
		key string
		dst *bool
	}{
		{KeyIncludeDiskUsage, &cfg.IncludeDiskUsage},
		{KeyDisplayReservedLimits, &cfg.DisplayReservedLimits},
	} {
		v, _, err := p.store.GetSetting(ctx, keyPrefix+b.key)
		if err != nil {
			return Config{}, err
		}
		*b.dst = v != "0"
	}

	v, _, err := p.store.GetSetting(ctx, keyPrefix+KeyServerModificationAction)
	if err != nil {
		return Config{}, err
	}
	if v != "" {
		cfg.ServerModificationAction = Action(v)
	}
	return cfg, nil
}

// Set validates and stores values keyed by setting name. Unknown keys and
// invalid values are rejected before anything is written.
func (p *Provider) Set(ctx context.Context, values map[string]string) error {
	for key, v := range values {
		if err := validate(key, v); err != nil {
			return err
		}
	}
	for key, v := range values {
		if err := p.store.SetSetting(ctx, keyPrefix+key, v); err != nil {
			return err
		}
	}
	log.WithField("keys", len(values)).Info("splitter settings updated")
	return nil
}

// ValidationError is a rejected settings value.
type ValidationError struct {
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Key, e.Reason)
}

func validate(key, v string) error {
	switch key {
	case KeyReservedCPU, KeyReservedMemory, KeyReservedDisk:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return &ValidationError{Key: key, Reason: "must be an integer"}
		}
		if n < 1 {
			return &ValidationError{Key: key, Reason: "must be at least 1"}
		}
	case KeyIncludeDiskUsage, KeyDisplayReservedLimits:
		if v != "0" && v != "1" {
			return &ValidationError{Key: key, Reason: "must be 0 or 1"}
		}
	case KeyServerModificationAction:
		if !Action(v).Valid() {
			return &ValidationError{Key: key, Reason: "must be one of none, restart, stop, kill, kill_and_restart"}
		}
	default:
		return &ValidationError{Key: key, Reason: "is not a known setting"}
	}
	return nil
}
