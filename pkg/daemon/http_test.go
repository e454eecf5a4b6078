package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"server-splitter/pkg/model"
)

type staticNodes map[int64]*model.Node

func (n staticNodes) GetNode(_ context.Context, id int64) (*model.Node, error) {
	node, ok := n[id]
	if !ok {
		return nil, errors.New("node not found")
	}
	return node, nil
}

func newTestClient(t *testing.T, h http.Handler) *HTTPClient {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	nodes := staticNodes{1: {ID: 1, Scheme: "http", FQDN: host, DaemonPort: port, DaemonToken: "secret"}}
	return NewHTTPClient(nodes, 5*time.Second)
}

func TestServerDetails(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.Equal(t, "/api/servers/abc", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"state":       "running",
			"utilization": map[string]interface{}{"disk_bytes": 2048},
		})
	}))

	d, err := c.ServerDetails(context.Background(), &model.Server{UUID: "abc", NodeID: 1})
	require.NoError(t, err)
	require.True(t, d.Running())
	require.Equal(t, int64(2048), d.Utilization.DiskBytes)
}

func TestSystemInformation(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/system", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("v"))
		_, _ = w.Write([]byte(`{"system":{"cpu_threads":16}}`))
	}))

	info, err := c.SystemInformation(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 16, info.CPUThreads)
}

func TestDeleteNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		http.Error(w, "not found", http.StatusNotFound)
	}))

	err := c.DeleteServer(context.Background(), &model.Server{UUID: "gone", NodeID: 1})
	require.Error(t, err)
	require.True(t, IsNotFound(err))
}

func TestSendPower(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/servers/abc/power", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.SendPower(context.Background(), &model.Server{UUID: "abc", NodeID: 1}, PowerKill))
	require.Equal(t, "kill", got["action"])
}

func TestServerErrorIsNotNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))

	err := c.SyncServer(context.Background(), &model.Server{UUID: "abc", NodeID: 1})
	var re *RequestError
	require.True(t, errors.As(err, &re))
	require.Equal(t, http.StatusBadGateway, re.StatusCode)
	require.Equal(t, "boom", re.Body)
	require.False(t, IsNotFound(err))
}

func TestUnknownNode(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	err := c.SyncServer(context.Background(), &model.Server{UUID: "abc", NodeID: 9})
	require.Error(t, err)
	require.False(t, IsNotFound(err))
}
