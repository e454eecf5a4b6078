package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"server-splitter/pkg/activity"
	"server-splitter/pkg/model"
	"server-splitter/pkg/store"
	"server-splitter/pkg/threads"
)

// AdminHandler serves the administrative settings, egg rule, build and thread routes.
type AdminHandler struct {
	Handler *Handler
}

func NewAdminHandler(handler *Handler) *AdminHandler {
	return &AdminHandler{
		Handler: handler,
	}
}

func (h *AdminHandler) Settings(c *gin.Context) {
	cfg, err := h.Handler.settings.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateSettings accepts a flat object of setting keys. Booleans are stored as
// 0 or 1, numbers in their decimal form.
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	values := make(map[string]string, len(req))
	for key, v := range req {
		s, err := settingValue(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s %v", key, err)})
			return
		}
		values[key] = s
	}
	if err := h.Handler.settings.Set(c.Request.Context(), values); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func settingValue(v interface{}) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return "", errors.New("must be a string, number or boolean")
}

func (h *AdminHandler) EggRules(c *gin.Context) {
	rules, err := h.Handler.store.ListEggRules(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if rules == nil {
		rules = []*model.EggRule{}
	}
	c.JSON(http.StatusOK, gin.H{"data": rules})
}

func (h *AdminHandler) CreateEggRule(c *gin.Context) {
	rule, ok := h.bindEggRule(c)
	if !ok {
		return
	}
	if err := h.Handler.store.InsertEggRule(c.Request.Context(), rule); err != nil {
		writeError(c, err)
		return
	}
	log.WithField("rule", rule.ID).Info("egg rule created")
	c.JSON(http.StatusCreated, rule)
}

func (h *AdminHandler) UpdateEggRule(c *gin.Context) {
	id, ok := idParam(c, "rule")
	if !ok {
		return
	}
	rule, ok := h.bindEggRule(c)
	if !ok {
		return
	}
	rule.ID = id
	if err := h.Handler.store.UpdateEggRule(c.Request.Context(), rule); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *AdminHandler) DeleteEggRule(c *gin.Context) {
	id, ok := idParam(c, "rule")
	if !ok {
		return
	}
	if err := h.Handler.store.DeleteEggRule(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	log.WithField("rule", id).Info("egg rule deleted")
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) bindEggRule(c *gin.Context) (*model.EggRule, bool) {
	var req struct {
		Eggs        []int64 `json:"eggs" binding:"required,min=1"`
		AllowedEggs []int64 `json:"allowed_eggs" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	ids := make([]int64, 0, len(req.Eggs)+len(req.AllowedEggs))
	ids = append(append(ids, req.Eggs...), req.AllowedEggs...)
	for _, id := range ids {
		if _, err := h.Handler.store.GetEgg(c.Request.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("egg %d does not exist", id)})
			} else {
				writeError(c, err)
			}
			return nil, false
		}
	}
	return &model.EggRule{Eggs: req.Eggs, AllowedEggs: req.AllowedEggs}, true
}

func (h *AdminHandler) UpdateBuild(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req model.BuildChange
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	srv, err := h.Handler.splitter.UpdateBuild(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewServerView(srv))
}

func (h *AdminHandler) NodeThreads(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	node, err := h.Handler.store.GetNode(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	usage := h.Handler.threads.NodeThreadUsage(c.Request.Context(), node.ID)
	c.JSON(http.StatusOK, model.NewNodeThreads(node, usage))
}

// AssignThreads pins free threads of the server's node to the server and
// pushes the new build to the daemon.
func (h *AdminHandler) AssignThreads(c *gin.Context) {
	var req model.AssignThreadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	srv, ok := h.Handler.serverByID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	pinned, err := h.Handler.threads.AssignServerThreads(ctx, srv, req.Threads)
	if err != nil {
		if errors.Is(err, threads.ErrNoFreeThreads) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No free CPU threads on the node."})
			return
		}
		writeError(c, err)
		return
	}
	srv.Threads = &pinned
	if err := h.Handler.daemon.SyncServer(ctx, srv); err != nil {
		log.WithField("server", srv.ID).Warnf("threads saved but sync failed: %v", err)
	}
	h.Handler.activity.Record(ctx, activity.EventThreads, srv.ID, map[string]interface{}{"threads": pinned})
	c.JSON(http.StatusOK, gin.H{"threads": pinned})
}
