package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"server-splitter/pkg/activity"
	"server-splitter/pkg/daemon"
	"server-splitter/pkg/lock"
	"server-splitter/pkg/model"
	"server-splitter/pkg/settings"
	"server-splitter/pkg/splitter"
	"server-splitter/pkg/store"
	"server-splitter/pkg/threads"
)

// Handler holds the services shared by every route group.
type Handler struct {
	store    *store.Store
	daemon   daemon.Client
	splitter *splitter.Manager
	threads  *threads.Allocator
	settings *settings.Provider
	activity *activity.Recorder
}

func NewHandler(s *store.Store, client daemon.Client, m *splitter.Manager, alloc *threads.Allocator, cfg *settings.Provider, rec *activity.Recorder) *Handler {
	return &Handler{
		store:    s,
		daemon:   client,
		splitter: m,
		threads:  alloc,
		settings: cfg,
		activity: rec,
	}
}

// serverByUUID loads the server named by the :server path parameter.
func (h *Handler) serverByUUID(c *gin.Context) (*model.Server, bool) {
	srv, err := h.store.GetServerByUUID(c.Request.Context(), c.Param("server"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return srv, true
}

func (h *Handler) serverByID(c *gin.Context) (*model.Server, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}
	srv, err := h.store.GetServer(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return srv, true
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// writeError maps err onto a status code and a single message.
func writeError(c *gin.Context, err error) {
	var se *splitter.Error
	var ve *settings.ValidationError
	switch {
	case errors.As(err, &se):
		status := http.StatusBadRequest
		switch se.Kind {
		case splitter.KindNotFound:
			status = http.StatusNotFound
		case splitter.KindBusy:
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": se.Message})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	case errors.Is(err, lock.ErrBusy):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Resource is busy. Please try again."})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found."})
	default:
		log.WithFields(log.Fields{"method": c.Request.Method, "path": c.FullPath()}).Errorf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An unexpected error occurred."})
	}
}
