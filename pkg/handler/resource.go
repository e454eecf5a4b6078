package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"server-splitter/pkg/metrics"
	"server-splitter/pkg/model"
)

// ResourceHandler reports thread usage across all nodes.
type ResourceHandler struct {
	Handler *Handler
}

func NewResourceHandler(handler *Handler) *ResourceHandler {
	return &ResourceHandler{
		Handler: handler,
	}
}

// ProbeNodeThreads refreshes the per-node thread gauges.
func (h *ResourceHandler) ProbeNodeThreads(ctx context.Context) {
	for _, nt := range h.nodeThreads(ctx) {
		metrics.NodeThreads.With(prometheus.Labels{"node": nt.NodeName, "state": "assigned"}).Set(float64(nt.Threads.AssignedCount))
		metrics.NodeThreads.With(prometheus.Labels{"node": nt.NodeName, "state": "free"}).Set(float64(nt.Threads.FreeCount))
	}
}

// NodeResources returns the thread usage of every node.
func (h *ResourceHandler) NodeResources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.nodeThreads(c.Request.Context())})
}

func (h *ResourceHandler) nodeThreads(ctx context.Context) []model.NodeThreads {
	nodes, err := h.Handler.store.ListNodes(ctx)
	if err != nil {
		log.Errorf("failed to list nodes: %v", err)
		return []model.NodeThreads{}
	}
	out := make([]model.NodeThreads, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, model.NewNodeThreads(node, h.Handler.threads.NodeThreadUsage(ctx, node.ID)))
	}
	return out
}
