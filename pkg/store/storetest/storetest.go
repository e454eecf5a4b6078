// Package storetest builds throwaway in-memory stores and seed data for tests.
package storetest

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"server-splitter/pkg/model"
	"server-splitter/pkg/store"
)

// New returns an empty in-memory store closed when the test ends.
func New(t testing.TB) *store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_txlock=immediate", uuid.NewString())
	s, err := store.OpenDSN(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

const AllocationIP = "10.0.0.1"

// Fixture is a node with free allocations, one egg and a top-level server.
type Fixture struct {
	Node   *model.Node
	Nest   *model.Nest
	Egg    *model.Egg
	Parent *model.Server
}

// Seed creates a Fixture whose parent has cpu 100, memory 4096, disk 10240,
// a splitter limit of 3 and feature limits allocations 4, backups 2, databases 1.
func Seed(t testing.TB, s *store.Store) *Fixture {
	t.Helper()
	return SeedOn(t, s, SeedNode(t, s, "node-1"))
}

// SeedOn is Seed with the fixture placed on an existing node.
func SeedOn(t testing.TB, s *store.Store, node *model.Node) *Fixture {
	t.Helper()
	ctx := context.Background()

	allocs := SeedAllocations(t, s, node.ID, AllocationIP, 25565, 25566, 25567, 25568, 25569, 25570)
	nest, egg := SeedEgg(t, s, "Minecraft", "Paper")

	parent := &model.Server{
		Name:          "survival",
		OwnerID:       1,
		NodeID:        node.ID,
		AllocationID:  allocs[0].ID,
		NestID:        nest.ID,
		EggID:         egg.ID,
		SplitterLimit: 3,
		Limits:        model.Limits{CPU: 100, Memory: 4096, Disk: 10240, Swap: 0, IO: 500},
		FeatureLimits: model.FeatureLimits{
			model.FeatureAllocations: 4,
			model.FeatureBackups:     2,
			model.FeatureDatabases:   1,
		},
		Startup: egg.Startup,
		Image:   egg.DefaultImage(),
	}
	SeedServer(t, s, parent)
	require.NoError(t, s.SetServerVariable(ctx, parent.ID, "SERVER_JARFILE", "paper.jar"))

	return &Fixture{Node: node, Nest: nest, Egg: egg, Parent: parent}
}

func SeedNode(t testing.TB, s *store.Store, name string) *model.Node {
	t.Helper()
	n := &model.Node{Name: name, Scheme: "https", FQDN: name + ".example.com", DaemonPort: 8080, DaemonToken: "token"}
	require.NoError(t, s.InsertNode(context.Background(), n))
	return n
}

// SeedNodeAt creates a node whose daemon listens at rawURL, such as the URL of
// an httptest server.
func SeedNodeAt(t testing.TB, s *store.Store, name, rawURL string) *model.Node {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	n := &model.Node{Name: name, Scheme: u.Scheme, FQDN: host, DaemonToken: "token"}
	n.DaemonPort, err = strconv.Atoi(port)
	require.NoError(t, err)
	require.NoError(t, s.InsertNode(context.Background(), n))
	return n
}

func SeedAllocations(t testing.TB, s *store.Store, nodeID int64, ip string, ports ...int) []*model.Allocation {
	t.Helper()
	out := make([]*model.Allocation, 0, len(ports))
	for _, port := range ports {
		a := &model.Allocation{NodeID: nodeID, IP: ip, Port: port}
		require.NoError(t, s.InsertAllocation(context.Background(), a))
		out = append(out, a)
	}
	return out
}

// SeedEgg creates a nest and an egg with one variable and two images.
func SeedEgg(t testing.TB, s *store.Store, nestName, eggName string) (*model.Nest, *model.Egg) {
	t.Helper()
	ctx := context.Background()

	nest := &model.Nest{Name: nestName}
	require.NoError(t, s.InsertNest(ctx, nest))

	egg := &model.Egg{
		UUID:    uuid.NewString(),
		NestID:  nest.ID,
		Name:    eggName,
		Startup: "java -jar {{SERVER_JARFILE}}",
		Images: []model.EggImage{
			{Label: "Java 17", Image: "ghcr.io/panel/yolks:java_17"},
			{Label: "Java 21", Image: "ghcr.io/panel/yolks:java_21"},
		},
	}
	require.NoError(t, s.InsertEgg(ctx, egg))
	require.NoError(t, s.InsertEggVariable(ctx, &model.EggVariable{EggID: egg.ID, EnvVariable: "SERVER_JARFILE", DefaultValue: "server.jar"}))
	return nest, egg
}

// SeedServer inserts srv, filling in a uuid when empty, and claims its allocation.
func SeedServer(t testing.TB, s *store.Store, srv *model.Server) *model.Server {
	t.Helper()
	ctx := context.Background()
	if srv.UUID == "" {
		srv.UUID = uuid.NewString()
	}
	if srv.FeatureLimits == nil {
		srv.FeatureLimits = model.FeatureLimits{}
	}
	require.NoError(t, s.InsertServer(ctx, srv))
	if srv.AllocationID != 0 {
		require.NoError(t, s.ClaimAllocation(ctx, srv.AllocationID, srv.ID))
	}
	return srv
}

// Reload fetches the current stored state of a server.
func Reload(t testing.TB, s *store.Store, id int64) *model.Server {
	t.Helper()
	srv, err := s.GetServer(context.Background(), id)
	require.NoError(t, err)
	return srv
}
