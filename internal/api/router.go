package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vatscope/traffic-server/internal/config"
	"github.com/vatscope/traffic-server/internal/storage/sqlite"
	"github.com/vatscope/traffic-server/internal/traffic"
	"github.com/vatscope/traffic-server/internal/websocket"
	"github.com/vatscope/traffic-server/pkg/logger"
)

// Router assembles the HTTP surface: the REST API, the WebSocket endpoint
// and the Prometheus scrape endpoint.
type Router struct {
	handler  *Handler
	wsServer *websocket.Server
	config   *config.Config
	logger   *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(trafficService *traffic.Service, store traffic.Store, archive *sqlite.ArchiveStorage, cfg *config.Config, log *logger.Logger, wsServer *websocket.Server) *Router {
	return &Router{
		handler:  NewHandler(trafficService, store, archive, cfg, log, wsServer),
		wsServer: wsServer,
		config:   cfg,
		logger:   log.Named("api-router"),
	}
}

// Routes returns the assembled HTTP handler
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(r.corsMiddleware)

	router.Route("/api/v1", func(api chi.Router) {
		api.Get("/pilots", r.handler.GetPilots)
		api.Get("/pilots/{callsign}", r.handler.GetPilotByCallsign)
		api.Get("/controllers", r.handler.GetControllers)
		api.Get("/prefiles", r.handler.GetPrefiles)
		api.Get("/servers", r.handler.GetServers)
		api.Get("/snapshots", r.handler.GetSnapshots)
		api.Get("/status", r.handler.GetStatus)
		api.Post("/refresh", r.handler.TriggerRefresh)
	})

	router.Get("/ws", r.wsServer.HandleConnection)

	if r.config.Metrics.Enabled {
		router.Handle("/metrics", promhttp.Handler())
	}

	return router
}

// corsMiddleware allows browser clients on configured origins to consume the
// API
func (r *Router) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if origin := r.allowedOrigin(req.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *Router) allowedOrigin(origin string) string {
	allowed := r.config.Server.CORSAllowedOrigins
	if len(allowed) == 0 {
		return "*"
	}
	for _, a := range allowed {
		if a == "*" {
			return "*"
		}
		if a == origin {
			return origin
		}
	}
	return ""
}
