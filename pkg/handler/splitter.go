package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"server-splitter/pkg/model"
)

// SplitterHandler serves the client routes of a server's splits.
type SplitterHandler struct {
	Handler *Handler
}

func NewSplitterHandler(handler *Handler) *SplitterHandler {
	return &SplitterHandler{
		Handler: handler,
	}
}

func (h *SplitterHandler) Overview(c *gin.Context) {
	srv, ok := h.Handler.serverByUUID(c)
	if !ok {
		return
	}
	overview, err := h.Handler.splitter.Overview(c.Request.Context(), srv)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *SplitterHandler) Nests(c *gin.Context) {
	srv, ok := h.Handler.serverByUUID(c)
	if !ok {
		return
	}
	nests, err := h.Handler.splitter.UsableNests(c.Request.Context(), srv)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nests": nests})
}

func (h *SplitterHandler) Create(c *gin.Context) {
	var req model.CreateSplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	features, err := model.ParseFeatureLimits(req.FeatureLimits)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	srv, ok := h.Handler.serverByUUID(c)
	if !ok {
		return
	}

	child, err := h.Handler.splitter.Create(c.Request.Context(), srv, model.SplitSpec{
		Name:          req.Name,
		Description:   req.Description,
		CPU:           req.CPU,
		Memory:        req.Memory,
		Disk:          req.Disk,
		FeatureLimits: features,
		EggUUID:       req.EggID,
		SyncSubusers:  req.SyncSubusers,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewServerView(child))
}

func (h *SplitterHandler) Update(c *gin.Context) {
	var req model.ResizeSplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	features, err := model.ParseFeatureLimits(req.FeatureLimits)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	srv, ok := h.Handler.serverByUUID(c)
	if !ok {
		return
	}

	child, err := h.Handler.splitter.Resize(c.Request.Context(), srv, c.Param("child"), model.SplitSpec{
		Name:          req.Name,
		Description:   req.Description,
		CPU:           req.CPU,
		Memory:        req.Memory,
		Disk:          req.Disk,
		FeatureLimits: features,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewServerView(child))
}

func (h *SplitterHandler) Delete(c *gin.Context) {
	srv, ok := h.Handler.serverByUUID(c)
	if !ok {
		return
	}
	if err := h.Handler.splitter.Delete(c.Request.Context(), srv, c.Param("child")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SplitterHandler) SyncSubusers(c *gin.Context) {
	srv, ok := h.Handler.serverByUUID(c)
	if !ok {
		return
	}
	if err := h.Handler.splitter.SyncSubusers(c.Request.Context(), srv, c.Param("child")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
