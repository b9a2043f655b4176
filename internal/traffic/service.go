package traffic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vatscope/traffic-server/pkg/logger"
	"github.com/vatscope/traffic-server/pkg/metrics"
)

// Provider fetches raw status-file snapshots.
type Provider interface {
	GetTrafficData(ctx context.Context) (*TrafficData, error)
}

// Store is the current-state storage the service reconciles into. Every
// Replace method swaps the full set of records of its kind atomically.
type Store interface {
	GetPilots(ctx context.Context) ([]*Pilot, error)
	GetPilotByCallsign(ctx context.Context, callsign string) (*Pilot, error)
	GetControllers(ctx context.Context) ([]*Controller, error)
	GetFlightNotifications(ctx context.Context) ([]*FlightNotification, error)
	GetServers(ctx context.Context) ([]*Server, error)

	ReplacePilots(ctx context.Context, pilots []*Pilot) error
	ReplaceControllers(ctx context.Context, controllers []*Controller) error
	ReplaceFlightNotifications(ctx context.Context, notifications []*FlightNotification) error
	ReplaceServers(ctx context.Context, servers []*Server) error
}

// Archive stores every raw snapshot, append-only.
type Archive interface {
	SaveTrafficData(ctx context.Context, data *TrafficData) error
}

// Notifier announces that the current state was replaced. A refresh cycle
// notifies exactly once, after all records are stored.
type Notifier interface {
	TrafficDataUpdated(ctx context.Context) error
}

// CycleStatus is a point-in-time summary of the refresh pipeline, served by
// the status endpoint.
type CycleStatus struct {
	LastRun       time.Time     `json:"last_run"`
	LastSuccess   time.Time     `json:"last_success"`
	LastError     string        `json:"last_error,omitempty"`
	LastFetchTime time.Duration `json:"last_fetch_time_ns"`
	Source        string        `json:"source,omitempty"`
	Pilots        int           `json:"pilots"`
	Controllers   int           `json:"controllers"`
	Prefiles      int           `json:"prefiles"`
	Servers       int           `json:"servers"`
	ParseErrors   int           `json:"parse_errors"`
}

// Service runs the refresh pipeline: fetch a snapshot, archive the raw text,
// parse it, reconcile the current state and notify listeners.
type Service struct {
	provider Provider
	store    Store
	archive  Archive
	notifier Notifier
	parser   *Parser
	interval time.Duration
	logger   *logger.Logger
	metrics  *metrics.Metrics

	// cycleMu makes refresh cycles single-flight: a manual refresh that
	// races the scheduled one waits its turn instead of interleaving.
	cycleMu sync.Mutex

	statusMu sync.RWMutex
	status   CycleStatus

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewService creates the refresh service. The metrics bundle may be nil.
func NewService(
	provider Provider,
	store Store,
	archive Archive,
	notifier Notifier,
	parser *Parser,
	interval time.Duration,
	loggerObj *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		provider: provider,
		store:    store,
		archive:  archive,
		notifier: notifier,
		parser:   parser,
		interval: interval,
		logger:   loggerObj.Named("traffic"),
		metrics:  m,
		stopCh:   make(chan struct{}),
	}
}

// Start begins periodic refresh cycles.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting traffic service",
		logger.Duration("interval", s.interval),
	)

	s.wg.Add(1)
	go s.fetchLoop(ctx)

	return nil
}

// Stop halts the refresh loop and waits for an in-flight cycle to finish.
func (s *Service) Stop() {
	s.logger.Info("Stopping traffic service")
	close(s.stopCh)
	s.wg.Wait()
}

// Status returns a snapshot of the last cycle's outcome.
func (s *Service) Status() CycleStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

func (s *Service) fetchLoop(ctx context.Context) {
	defer s.wg.Done()

	// Run once immediately so the state is populated before the first tick.
	if err := s.RunCycle(ctx); err != nil {
		s.logger.Error("Initial refresh cycle failed", logger.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.RunCycle(ctx); err != nil {
				s.logger.Error("Refresh cycle failed", logger.Error(err))
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunCycle executes one full refresh cycle. Cycles are serialized; a call
// that arrives while another cycle runs blocks until the running one is done.
func (s *Service) RunCycle(ctx context.Context) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := time.Now()
	if s.metrics != nil {
		s.metrics.RefreshCycles.Inc()
	}

	err := s.runCycle(ctx, start)
	if s.metrics != nil {
		s.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}
	return err
}

func (s *Service) runCycle(ctx context.Context, start time.Time) error {
	data, err := s.provider.GetTrafficData(ctx)
	if err != nil {
		s.failCycle(start, "fetch", err)
		return fmt.Errorf("failed to fetch traffic data: %w", err)
	}
	if s.metrics != nil {
		s.metrics.FetchDuration.Observe(data.FetchTime.Seconds())
	}

	// The raw snapshot is archived before parsing so a parse regression
	// never loses source data.
	if err := s.archive.SaveTrafficData(ctx, data); err != nil {
		s.failCycle(start, "archive", err)
		return fmt.Errorf("failed to archive traffic data: %w", err)
	}

	result := s.parser.Parse(data.Raw)
	for _, perr := range result.Errors {
		s.logger.Warn("Skipped malformed status line", logger.Error(perr))
	}
	if s.metrics != nil {
		s.metrics.ParseErrors.Add(float64(len(result.Errors)))
	}

	pilots, err := s.reconcilePilots(ctx, result.Pilots, data.DateReceived)
	if err != nil {
		s.failCycle(start, "store", err)
		return fmt.Errorf("failed to reconcile pilots: %w", err)
	}
	if err := s.store.ReplacePilots(ctx, pilots); err != nil {
		s.failCycle(start, "store", err)
		return fmt.Errorf("failed to replace pilots: %w", err)
	}
	if err := s.store.ReplaceControllers(ctx, result.Controllers); err != nil {
		s.failCycle(start, "store", err)
		return fmt.Errorf("failed to replace controllers: %w", err)
	}
	if err := s.store.ReplaceFlightNotifications(ctx, result.FlightNotifications); err != nil {
		s.failCycle(start, "store", err)
		return fmt.Errorf("failed to replace flight notifications: %w", err)
	}
	if err := s.store.ReplaceServers(ctx, result.Servers); err != nil {
		s.failCycle(start, "store", err)
		return fmt.Errorf("failed to replace servers: %w", err)
	}

	if err := s.notifier.TrafficDataUpdated(ctx); err != nil {
		s.failCycle(start, "notify", err)
		return fmt.Errorf("failed to notify listeners: %w", err)
	}

	if s.metrics != nil {
		s.metrics.OnlineEntities.WithLabelValues("pilots").Set(float64(len(pilots)))
		s.metrics.OnlineEntities.WithLabelValues("controllers").Set(float64(len(result.Controllers)))
		s.metrics.OnlineEntities.WithLabelValues("prefiles").Set(float64(len(result.FlightNotifications)))
		s.metrics.OnlineEntities.WithLabelValues("servers").Set(float64(len(result.Servers)))
	}

	s.statusMu.Lock()
	s.status = CycleStatus{
		LastRun:       start,
		LastSuccess:   start,
		LastFetchTime: data.FetchTime,
		Source:        data.Source,
		Pilots:        len(pilots),
		Controllers:   len(result.Controllers),
		Prefiles:      len(result.FlightNotifications),
		Servers:       len(result.Servers),
		ParseErrors:   len(result.Errors),
	}
	s.statusMu.Unlock()

	s.logger.Info("Refresh cycle complete",
		logger.Int("pilots", len(pilots)),
		logger.Int("controllers", len(result.Controllers)),
		logger.Int("prefiles", len(result.FlightNotifications)),
		logger.Int("servers", len(result.Servers)),
		logger.Int("parse_errors", len(result.Errors)),
		logger.Duration("elapsed", time.Since(start)),
	)

	return nil
}

func (s *Service) failCycle(start time.Time, phase string, err error) {
	if s.metrics != nil {
		s.metrics.RefreshFailures.WithLabelValues(phase).Inc()
	}
	s.statusMu.Lock()
	prev := s.status
	s.status = CycleStatus{
		LastRun:       start,
		LastSuccess:   prev.LastSuccess,
		LastError:     err.Error(),
		LastFetchTime: prev.LastFetchTime,
		Source:        prev.Source,
		Pilots:        prev.Pilots,
		Controllers:   prev.Controllers,
		Prefiles:      prev.Prefiles,
		Servers:       prev.Servers,
	}
	s.statusMu.Unlock()
}

// reconcilePilots carries each pilot's accumulated position history forward
// from the stored state, matching on (callsign, network id), and appends one
// new history point per cycle. A pilot absent from the new snapshot drops out
// together with its history.
func (s *Service) reconcilePilots(ctx context.Context, incoming []*Pilot, received time.Time) ([]*Pilot, error) {
	existing, err := s.store.GetPilots(ctx)
	if err != nil {
		return nil, err
	}

	type key struct {
		callsign  string
		networkID string
	}
	histories := make(map[key][]PositionPoint, len(existing))
	for _, p := range existing {
		histories[key{p.Callsign, p.NetworkID}] = p.History
	}

	for _, p := range incoming {
		p.History = append(histories[key{p.Callsign, p.NetworkID}], PositionPoint{
			Time:      received,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Altitude:  p.Altitude,
		})
	}
	return incoming, nil
}
