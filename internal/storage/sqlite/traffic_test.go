package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vatscope/traffic-server/internal/traffic"
	"github.com/vatscope/traffic-server/pkg/logger"
)

func setupTestStorage(t *testing.T) *TrafficStorage {
	t.Helper()
	store, err := NewTrafficStorage(filepath.Join(t.TempDir(), "test.db"), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testPilot(callsign, networkID string) *traffic.Pilot {
	dep := time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)
	return &traffic.Pilot{
		Client: traffic.Client{
			Callsign:         callsign,
			NetworkID:        networkID,
			Name:             "Test Pilot",
			Server:           "CA-1",
			ProtocolRevision: 100,
			LogonTime:        time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
		},
		Latitude:    43.6777,
		Longitude:   -79.6248,
		Altitude:    36000,
		GroundSpeed: 460,
		Heading:     270,
		Squawk:      traffic.Squawk(0o2200),
		FlightPlan: &traffic.FlightPlan{
			Rules:              traffic.IFR,
			AircraftType:       "B38M",
			TrueAirSpeed:       "450",
			Altitude:           36000,
			DepartureICAO:      "CYYZ",
			ArrivalICAO:        "CYVR",
			AlternateICAO:      "CYXX",
			EstimatedDeparture: &dep,
			TimeEnroute:        4*time.Hour + 30*time.Minute,
			FuelOnBoard:        6 * time.Hour,
			Route:              "DCT MEDOK DCT",
			Remarks:            "RMK/TEST",
		},
		History: []traffic.PositionPoint{
			{Time: time.Date(2026, 8, 29, 11, 0, 0, 0, time.UTC), Latitude: 43.0, Longitude: -79.0, Altitude: 34000},
		},
	}
}

func TestReplaceAndGetPilots(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	in := testPilot("ACA101", "1000001")
	require.NoError(t, store.ReplacePilots(ctx, []*traffic.Pilot{in}))

	pilots, err := store.GetPilots(ctx)
	require.NoError(t, err)
	require.Len(t, pilots, 1)

	got := pilots[0]
	assert.Equal(t, in.Callsign, got.Callsign)
	assert.Equal(t, in.NetworkID, got.NetworkID)
	assert.Equal(t, in.LogonTime, got.LogonTime)
	assert.Equal(t, in.Squawk, got.Squawk)
	assert.Equal(t, in.Latitude, got.Latitude)
	assert.Equal(t, in.Heading, got.Heading)

	require.NotNil(t, got.FlightPlan)
	assert.Equal(t, in.FlightPlan.DepartureICAO, got.FlightPlan.DepartureICAO)
	assert.Equal(t, in.FlightPlan.TimeEnroute, got.FlightPlan.TimeEnroute)
	require.NotNil(t, got.FlightPlan.EstimatedDeparture)
	assert.Equal(t, *in.FlightPlan.EstimatedDeparture, *got.FlightPlan.EstimatedDeparture)
	assert.Nil(t, got.FlightPlan.ActualDeparture)

	require.Len(t, got.History, 1)
	assert.Equal(t, in.History[0], got.History[0])
}

func TestReplacePilotsRemovesDeparted(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.ReplacePilots(ctx, []*traffic.Pilot{
		testPilot("ACA101", "1000001"),
		testPilot("WJA200", "1000002"),
	}))
	require.NoError(t, store.ReplacePilots(ctx, []*traffic.Pilot{
		testPilot("ACA101", "1000001"),
	}))

	pilots, err := store.GetPilots(ctx)
	require.NoError(t, err)
	require.Len(t, pilots, 1)
	assert.Equal(t, "ACA101", pilots[0].Callsign)

	// The departed pilot must leave no orphaned rows behind
	var planCount, historyCount int
	require.NoError(t, store.GetDB().QueryRow(`SELECT COUNT(*) FROM flight_plans WHERE owner = 'pilot'`).Scan(&planCount))
	require.NoError(t, store.GetDB().QueryRow(`SELECT COUNT(*) FROM position_history`).Scan(&historyCount))
	assert.Equal(t, 1, planCount)
	assert.Equal(t, 1, historyCount)
}

func TestGetPilotByCallsign(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.ReplacePilots(ctx, []*traffic.Pilot{testPilot("ACA101", "1000001")}))

	pilot, err := store.GetPilotByCallsign(ctx, "ACA101")
	require.NoError(t, err)
	require.NotNil(t, pilot)
	assert.Equal(t, "1000001", pilot.NetworkID)

	missing, err := store.GetPilotByCallsign(ctx, "NOPE99")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReplaceAndGetControllers(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	in := &traffic.Controller{
		Client: traffic.Client{
			Callsign:  "CYYZ_TWR",
			NetworkID: "2000001",
			Name:      "Test Controller",
			Server:    "CA-1",
			LogonTime: time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
		},
		Frequency:       "118.350",
		Rating:          traffic.RatingController1,
		Facility:        traffic.FacilityTower,
		VisibilityRange: 40,
		Atis:            "Toronto Tower, information Q",
	}
	require.NoError(t, store.ReplaceControllers(ctx, []*traffic.Controller{in}))

	controllers, err := store.GetControllers(ctx)
	require.NoError(t, err)
	require.Len(t, controllers, 1)
	assert.Equal(t, in, controllers[0])

	// Old controllers vanish on the next replace
	require.NoError(t, store.ReplaceControllers(ctx, nil))
	controllers, err = store.GetControllers(ctx)
	require.NoError(t, err)
	assert.Empty(t, controllers)
}

func TestReplaceFlightNotificationsKeepsPilotPlans(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.ReplacePilots(ctx, []*traffic.Pilot{testPilot("ACA101", "1000001")}))
	require.NoError(t, store.ReplaceFlightNotifications(ctx, []*traffic.FlightNotification{
		{
			Callsign:   "DLH456",
			NetworkID:  "3000001",
			Name:       "Prefile Pilot",
			FlightPlan: testPilot("DLH456", "3000001").FlightPlan,
		},
	}))

	// Replacing prefiles with an empty set must not touch pilot plans
	require.NoError(t, store.ReplaceFlightNotifications(ctx, nil))

	pilots, err := store.GetPilots(ctx)
	require.NoError(t, err)
	require.Len(t, pilots, 1)
	assert.NotNil(t, pilots[0].FlightPlan)

	notifications, err := store.GetFlightNotifications(ctx)
	require.NoError(t, err)
	assert.Empty(t, notifications)
}

func TestReplaceAndGetServers(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	in := []*traffic.Server{
		{NetworkIdentifier: "CA-1", Name: "Toronto FSD", IPAddress: "165.22.239.31", Location: "Canada"},
		{NetworkIdentifier: "UK-1", Name: "London FSD", IPAddress: "83.97.20.1", Location: "United Kingdom"},
	}
	require.NoError(t, store.ReplaceServers(ctx, in))

	servers, err := store.GetServers(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, servers)
}

func TestArchiveAppendsSnapshots(t *testing.T) {
	store := setupTestStorage(t)
	archive, err := NewArchiveStorage(store.GetDB(), logger.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		data, err := traffic.NewTrafficData("!GENERAL\n", "http://test/data.txt", base.Add(time.Duration(i)*time.Minute), 30*time.Millisecond)
		require.NoError(t, err)
		require.NoError(t, archive.SaveTrafficData(ctx, data))
	}

	snapshots, err := archive.GetRecentSnapshots(ctx, 2)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	// Most recent first
	assert.Equal(t, base.Add(2*time.Minute), snapshots[0].DateReceived)
	assert.Equal(t, base.Add(time.Minute), snapshots[1].DateReceived)
	assert.Equal(t, 30*time.Millisecond, snapshots[0].FetchTime)
}

func TestNewTrafficDataValidation(t *testing.T) {
	now := time.Now().UTC()

	_, err := traffic.NewTrafficData("raw", "", now, time.Millisecond)
	assert.Error(t, err)

	_, err = traffic.NewTrafficData("raw", "src", time.Time{}, time.Millisecond)
	assert.Error(t, err)

	_, err = traffic.NewTrafficData("raw", "src", now, 0)
	assert.Error(t, err)

	data, err := traffic.NewTrafficData("raw", "src", now, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "raw", data.Raw)
}
