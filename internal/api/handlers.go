package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vatscope/traffic-server/internal/config"
	"github.com/vatscope/traffic-server/internal/storage/sqlite"
	"github.com/vatscope/traffic-server/internal/traffic"
	"github.com/vatscope/traffic-server/internal/websocket"
	"github.com/vatscope/traffic-server/pkg/logger"
)

// Handler contains the API handlers
type Handler struct {
	trafficService *traffic.Service
	store          traffic.Store
	archive        *sqlite.ArchiveStorage
	config         *config.Config
	logger         *logger.Logger
	wsServer       *websocket.Server
}

// NewHandler creates a new API handler
func NewHandler(trafficService *traffic.Service, store traffic.Store, archive *sqlite.ArchiveStorage, config *config.Config, logger *logger.Logger, wsServer *websocket.Server) *Handler {
	return &Handler{
		trafficService: trafficService,
		store:          store,
		archive:        archive,
		config:         config,
		logger:         logger.Named("api-handler"),
		wsServer:       wsServer,
	}
}

// listResponse wraps a record list with its timestamp and count
type listResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
	Data      any       `json:"data"`
}

// GetPilots returns all online pilots
func (h *Handler) GetPilots(w http.ResponseWriter, r *http.Request) {
	pilots, err := h.store.GetPilots(r.Context())
	if err != nil {
		h.logger.Error("Failed to get pilots", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to get pilots")
		return
	}

	WriteJSON(w, http.StatusOK, listResponse{
		Timestamp: time.Now().UTC(),
		Count:     len(pilots),
		Data:      pilots,
	})
}

// GetPilotByCallsign returns a single pilot by callsign
func (h *Handler) GetPilotByCallsign(w http.ResponseWriter, r *http.Request) {
	callsign := chi.URLParam(r, "callsign")

	pilot, err := h.store.GetPilotByCallsign(r.Context(), callsign)
	if err != nil {
		h.logger.Error("Failed to get pilot",
			logger.String("callsign", callsign),
			logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to get pilot")
		return
	}
	if pilot == nil {
		WriteError(w, http.StatusNotFound, "pilot not found")
		return
	}

	WriteJSON(w, http.StatusOK, pilot)
}

// GetControllers returns all online controllers
func (h *Handler) GetControllers(w http.ResponseWriter, r *http.Request) {
	controllers, err := h.store.GetControllers(r.Context())
	if err != nil {
		h.logger.Error("Failed to get controllers", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to get controllers")
		return
	}

	WriteJSON(w, http.StatusOK, listResponse{
		Timestamp: time.Now().UTC(),
		Count:     len(controllers),
		Data:      controllers,
	})
}

// GetPrefiles returns all prefiled flight plans
func (h *Handler) GetPrefiles(w http.ResponseWriter, r *http.Request) {
	prefiles, err := h.store.GetFlightNotifications(r.Context())
	if err != nil {
		h.logger.Error("Failed to get prefiles", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to get prefiles")
		return
	}

	WriteJSON(w, http.StatusOK, listResponse{
		Timestamp: time.Now().UTC(),
		Count:     len(prefiles),
		Data:      prefiles,
	})
}

// GetServers returns all network servers
func (h *Handler) GetServers(w http.ResponseWriter, r *http.Request) {
	servers, err := h.store.GetServers(r.Context())
	if err != nil {
		h.logger.Error("Failed to get servers", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to get servers")
		return
	}

	WriteJSON(w, http.StatusOK, listResponse{
		Timestamp: time.Now().UTC(),
		Count:     len(servers),
		Data:      servers,
	})
}

// GetStatus returns the refresh pipeline status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.trafficService.Status())
}

// GetSnapshots returns metadata for the most recent archived snapshots
func (h *Handler) GetSnapshots(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.archive.GetRecentSnapshots(r.Context(), 50)
	if err != nil {
		h.logger.Error("Failed to get snapshots", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to get snapshots")
		return
	}

	WriteJSON(w, http.StatusOK, listResponse{
		Timestamp: time.Now().UTC(),
		Count:     len(snapshots),
		Data:      snapshots,
	})
}

// TriggerRefresh runs a refresh cycle outside the schedule
func (h *Handler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.trafficService.RunCycle(r.Context()); err != nil {
		h.logger.Error("Manual refresh failed", logger.Error(err))
		WriteError(w, http.StatusBadGateway, "refresh failed")
		return
	}
	WriteJSON(w, http.StatusOK, h.trafficService.Status())
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
