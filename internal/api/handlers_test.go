package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vatscope/traffic-server/internal/config"
	"github.com/vatscope/traffic-server/internal/storage/sqlite"
	"github.com/vatscope/traffic-server/internal/traffic"
	"github.com/vatscope/traffic-server/internal/websocket"
	"github.com/vatscope/traffic-server/pkg/logger"
)

type staticProvider struct {
	raw string
}

func (p *staticProvider) GetTrafficData(ctx context.Context) (*traffic.TrafficData, error) {
	return &traffic.TrafficData{
		Raw:          p.raw,
		Source:       "test",
		DateReceived: time.Now().UTC(),
		FetchTime:    10 * time.Millisecond,
	}, nil
}

type noopNotifier struct{}

func (noopNotifier) TrafficDataUpdated(ctx context.Context) error { return nil }

func pilotLine(callsign string) string {
	f := make([]string, 42)
	f[0] = callsign
	f[1] = "1000001"
	f[2] = "Test Pilot"
	f[3] = "PILOT"
	f[5] = "43.67"
	f[6] = "-79.62"
	f[7] = "36000"
	f[8] = "460"
	f[9] = "A320"
	f[10] = "440"
	f[11] = "CYYZ"
	f[12] = "FL360"
	f[13] = "CYVR"
	f[14] = "CA-1"
	f[15] = "100"
	f[16] = "1"
	f[17] = "1200"
	f[21] = "I"
	f[30] = "DCT"
	f[37] = "20260829100000"
	f[38] = "270"
	return strings.Join(f, ":")
}

func setupTestRouter(t *testing.T) http.Handler {
	t.Helper()

	log := logger.NewNop()
	store, err := sqlite.NewTrafficStorage(filepath.Join(t.TempDir(), "api.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	archive, err := sqlite.NewArchiveStorage(store.GetDB(), log)
	require.NoError(t, err)

	provider := &staticProvider{raw: strings.Join([]string{
		"!CLIENTS",
		pilotLine("ACA101"),
		"!SERVERS",
		"CA-1:165.22.239.31:Canada:Toronto FSD:1",
	}, "\n")}

	svc := traffic.NewService(
		provider, store, archive, noopNotifier{},
		traffic.NewParser(traffic.VATSIM),
		time.Minute, log, nil,
	)
	require.NoError(t, svc.RunCycle(context.Background()))

	cfg := &config.Config{
		Server:  config.ServerConfig{Port: 8080},
		Traffic: config.TrafficConfig{StatusURLs: []string{"http://test"}, FetchIntervalSecs: 60},
		Storage: config.StorageConfig{SQLitePath: "x.db"},
	}
	require.NoError(t, cfg.Validate())

	wsServer := websocket.NewServer(log)
	return NewRouter(svc, store, archive, cfg, log, wsServer).Routes()
}

func TestGetPilotsEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pilots", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		Count int              `json:"count"`
		Data  []*traffic.Pilot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "ACA101", resp.Data[0].Callsign)
	require.NotNil(t, resp.Data[0].FlightPlan)
	assert.Equal(t, "CYYZ", resp.Data[0].FlightPlan.DepartureICAO)
}

func TestGetPilotByCallsignEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pilots/ACA101", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var pilot traffic.Pilot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pilot))
	assert.Equal(t, "ACA101", pilot.Callsign)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/pilots/NOPE99", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetServersEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/servers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Count int               `json:"count"`
		Data  []*traffic.Server `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "CA-1", resp.Data[0].NetworkIdentifier)
}

func TestGetStatusEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var status traffic.CycleStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.Pilots)
	assert.Empty(t, status.LastError)
}

func TestTriggerRefreshEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var status traffic.CycleStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.Pilots)
}

func TestCORSHeaders(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/pilots", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
