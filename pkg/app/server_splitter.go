package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"

	"server-splitter/pkg/activity"
	"server-splitter/pkg/config"
	"server-splitter/pkg/daemon"
	"server-splitter/pkg/handler"
	"server-splitter/pkg/lock"
	"server-splitter/pkg/settings"
	"server-splitter/pkg/splitter"
	"server-splitter/pkg/store"
	"server-splitter/pkg/threads"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	// engine is the app router engine
	engine          *gin.Engine
	cfg             config.Config
	store           *store.Store
	baseHandler     *handler.Handler
	splitterHandler *handler.SplitterHandler
	adminHandler    *handler.AdminHandler
	rscHandler      *handler.ResourceHandler
}

func NewServerSplitterApp(cfg config.Config) (*App, error) {
	s, err := store.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, s, daemon.NewHTTPClient(s, cfg.Daemon.Timeout)), nil
}

func newApp(cfg config.Config, s *store.Store, client daemon.Client) *App {
	locks := lock.NewInMemoryCoordinator()
	provider := settings.NewProvider(s, settings.CacheTTL)
	rec := activity.NewRecorder(s)

	baseHandler := handler.NewHandler(
		s,
		client,
		splitter.NewManager(s, client, locks, provider, rec),
		threads.NewAllocator(s, client, locks),
		provider,
		rec,
	)
	return &App{
		engine:          gin.Default(),
		cfg:             cfg,
		store:           s,
		baseHandler:     baseHandler,
		splitterHandler: handler.NewSplitterHandler(baseHandler),
		adminHandler:    handler.NewAdminHandler(baseHandler),
		rscHandler:      handler.NewResourceHandler(baseHandler),
	}
}

func (a *App) registerRoute() {
	// splits of a server
	client := a.engine.Group("/api/client/servers/:server/splitter")
	client.GET("", a.splitterHandler.Overview)
	client.GET("/nests", a.splitterHandler.Nests)
	client.POST("", a.splitterHandler.Create)
	client.PUT("/:child", a.splitterHandler.Update)
	client.DELETE("/:child", a.splitterHandler.Delete)
	client.POST("/:child/subusers-sync", a.splitterHandler.SyncSubusers)

	admin := a.engine.Group("/api/admin/splitter")
	admin.GET("/settings", a.adminHandler.Settings)
	admin.PUT("/settings", a.adminHandler.UpdateSettings)
	admin.GET("/egg-rules", a.adminHandler.EggRules)
	admin.POST("/egg-rules", a.adminHandler.CreateEggRule)
	admin.PUT("/egg-rules/:rule", a.adminHandler.UpdateEggRule)
	admin.DELETE("/egg-rules/:rule", a.adminHandler.DeleteEggRule)

	application := a.engine.Group("/api/application")
	application.PATCH("/servers/:id/build", a.adminHandler.UpdateBuild)
	application.POST("/servers/:id/threads", a.adminHandler.AssignThreads)
	application.GET("/nodes/:id/threads", a.adminHandler.NodeThreads)
	application.GET("/threads", a.rscHandler.NodeResources)

	// prometheus metrics
	a.engine.GET("/metrics", a.prometheusHandler())
}

// Run serves until ctx is cancelled, refreshing the thread gauges in the
// background.
func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()

	go wait.UntilWithContext(ctx, a.rscHandler.ProbeNodeThreads, a.cfg.ProbeInterval)

	a.registerRoute()

	srv := &http.Server{Addr: a.cfg.Listen, Handler: a.engine}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("http server shutdown: %v", err)
		}
	}()

	log.Infof("server splitter listening on %s", a.cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) prometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()

	return func(c *gin.Context) {
		a.rscHandler.ProbeNodeThreads(c.Request.Context())
		h.ServeHTTP(c.Writer, c.Request)
	}
}
