package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"server-splitter/pkg/model"
)

// NodeSource resolves the node a server lives on.
type NodeSource interface {
	GetNode(ctx context.Context, id int64) (*model.Node, error)
}

type HTTPClient struct {
	nodes  NodeSource
	client *http.Client
}

var _ Client = &HTTPClient{}

func NewHTTPClient(nodes NodeSource, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		nodes:  nodes,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) CreateServer(ctx context.Context, s *model.Server, startOnCompletion bool) error {
	body := map[string]interface{}{
		"uuid":                s.UUID,
		"start_on_completion": startOnCompletion,
	}
	return c.do(ctx, s.NodeID, http.MethodPost, "/api/servers", body, nil)
}

func (c *HTTPClient) DeleteServer(ctx context.Context, s *model.Server) error {
	return c.do(ctx, s.NodeID, http.MethodDelete, "/api/servers/"+s.UUID, nil, nil)
}

func (c *HTTPClient) SyncServer(ctx context.Context, s *model.Server) error {
	return c.do(ctx, s.NodeID, http.MethodPost, "/api/servers/"+s.UUID+"/sync", nil, nil)
}

func (c *HTTPClient) ServerDetails(ctx context.Context, s *model.Server) (*ServerDetails, error) {
	var out ServerDetails
	if err := c.do(ctx, s.NodeID, http.MethodGet, "/api/servers/"+s.UUID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SendPower(ctx context.Context, s *model.Server, action PowerAction) error {
	body := map[string]string{"action": string(action)}
	return c.do(ctx, s.NodeID, http.MethodPost, "/api/servers/"+s.UUID+"/power", body, nil)
}

func (c *HTTPClient) SystemInformation(ctx context.Context, nodeID int64) (*SystemInformation, error) {
	var out struct {
		System SystemInformation `json:"system"`
	}
	if err := c.do(ctx, nodeID, http.MethodGet, "/api/system?v=2", nil, &out); err != nil {
		return nil, err
	}
	return &out.System, nil
}

func (c *HTTPClient) do(ctx context.Context, nodeID int64, method, path string, in, out interface{}) error {
	node, err := c.nodes.GetNode(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("resolve node %d: %w", nodeID, err)
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL(node)+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+node.DaemonToken)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("daemon %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	log.WithFields(log.Fields{
		"node":    node.ID,
		"method":  method,
		"path":    path,
		"status":  resp.StatusCode,
		"elapsed": time.Since(start).String(),
	}).Debug("daemon request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RequestError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode daemon %s %s: %w", method, path, err)
	}
	return nil
}

func baseURL(node *model.Node) string {
	scheme := node.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, node.FQDN, node.DaemonPort)
}
