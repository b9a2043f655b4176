package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vatscope/traffic-server/internal/traffic"
	"github.com/vatscope/traffic-server/pkg/logger"
	_ "modernc.org/sqlite"
)

// plan owners, used to scope flight-plan deletes to the record kind that
// filed them
const (
	planOwnerPilot   = "pilot"
	planOwnerPrefile = "prefile"
)

// TrafficStorage is the SQLite-backed current-state store. Each Replace
// method swaps the full record set of its kind inside a single transaction,
// so readers always see a complete snapshot.
type TrafficStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewTrafficStorage opens (or creates) the database at dbPath and prepares
// the schema.
func NewTrafficStorage(dbPath string, log *logger.Logger) (*TrafficStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initTrafficSchema(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &TrafficStorage{
		db:     db,
		logger: storageLogger,
	}, nil
}

// Close closes the database connection
func (s *TrafficStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetDB returns the database connection
func (s *TrafficStorage) GetDB() *sql.DB {
	return s.db
}

func initTrafficSchema(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS flight_plans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner TEXT NOT NULL,
			rules INTEGER NOT NULL,
			aircraft_type TEXT,
			true_air_speed TEXT,
			altitude INTEGER,
			departure_icao TEXT,
			arrival_icao TEXT,
			alternate_icao TEXT,
			estimated_departure TIMESTAMP,
			actual_departure TIMESTAMP,
			time_enroute_secs INTEGER,
			fuel_on_board_secs INTEGER,
			route TEXT,
			remarks TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create flight_plans table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS pilots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			callsign TEXT NOT NULL,
			network_id TEXT NOT NULL,
			name TEXT,
			server TEXT,
			protocol_revision INTEGER,
			logon_time TIMESTAMP,
			latitude REAL,
			longitude REAL,
			altitude INTEGER,
			ground_speed INTEGER,
			heading INTEGER,
			squawk INTEGER,
			flight_plan_id INTEGER,
			FOREIGN KEY (flight_plan_id) REFERENCES flight_plans(id),
			UNIQUE(callsign, network_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create pilots table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS position_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pilot_id INTEGER NOT NULL,
			time TIMESTAMP NOT NULL,
			latitude REAL,
			longitude REAL,
			altitude INTEGER,
			FOREIGN KEY (pilot_id) REFERENCES pilots(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create position_history table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS controllers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			callsign TEXT NOT NULL,
			network_id TEXT NOT NULL,
			name TEXT,
			server TEXT,
			protocol_revision INTEGER,
			logon_time TIMESTAMP,
			frequency TEXT,
			rating INTEGER,
			facility INTEGER,
			visibility_range INTEGER,
			atis TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create controllers table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS flight_notifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			callsign TEXT NOT NULL,
			network_id TEXT NOT NULL,
			name TEXT,
			flight_plan_id INTEGER,
			FOREIGN KEY (flight_plan_id) REFERENCES flight_plans(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create flight_notifications table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS servers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			network_identifier TEXT NOT NULL,
			name TEXT,
			ip_address TEXT,
			location TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create servers table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_position_history_pilot ON position_history(pilot_id, time)`)
	if err != nil {
		return fmt.Errorf("failed to create index on position_history.pilot_id: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_pilots_callsign ON pilots(callsign)`)
	if err != nil {
		return fmt.Errorf("failed to create index on pilots.callsign: %w", err)
	}

	log.Info("Database schema initialized successfully")
	return nil
}

// ReplacePilots swaps the stored pilot set, including flight plans and
// position history, in one transaction.
func (s *TrafficStorage) ReplacePilots(ctx context.Context, pilots []*traffic.Pilot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Pilots go first so the flight-plan rows they reference are free to
	// delete; history rows cascade.
	if _, err := tx.ExecContext(ctx, `DELETE FROM pilots`); err != nil {
		return fmt.Errorf("failed to clear pilots: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM flight_plans WHERE owner = ?`, planOwnerPilot); err != nil {
		return fmt.Errorf("failed to clear pilot flight plans: %w", err)
	}

	for _, p := range pilots {
		planID, err := insertFlightPlan(ctx, tx, planOwnerPilot, p.FlightPlan)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO pilots (
				callsign, network_id, name, server, protocol_revision, logon_time,
				latitude, longitude, altitude, ground_speed, heading, squawk, flight_plan_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			p.Callsign, p.NetworkID, p.Name, p.Server, p.ProtocolRevision, nullTime(p.LogonTime),
			p.Latitude, p.Longitude, p.Altitude, p.GroundSpeed, p.Heading, int(p.Squawk), planID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert pilot %s: %w", p.Callsign, err)
		}
		pilotID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get pilot id: %w", err)
		}

		for _, pt := range p.History {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO position_history (pilot_id, time, latitude, longitude, altitude)
				VALUES (?, ?, ?, ?, ?)
			`, pilotID, pt.Time, pt.Latitude, pt.Longitude, pt.Altitude); err != nil {
				return fmt.Errorf("failed to insert position history for %s: %w", p.Callsign, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pilot replacement: %w", err)
	}
	return nil
}

// ReplaceControllers swaps the stored controller set in one transaction.
func (s *TrafficStorage) ReplaceControllers(ctx context.Context, controllers []*traffic.Controller) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM controllers`); err != nil {
		return fmt.Errorf("failed to clear controllers: %w", err)
	}

	for _, c := range controllers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO controllers (
				callsign, network_id, name, server, protocol_revision, logon_time,
				frequency, rating, facility, visibility_range, atis
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			c.Callsign, c.NetworkID, c.Name, c.Server, c.ProtocolRevision, nullTime(c.LogonTime),
			c.Frequency, int(c.Rating), int(c.Facility), c.VisibilityRange, c.Atis,
		); err != nil {
			return fmt.Errorf("failed to insert controller %s: %w", c.Callsign, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit controller replacement: %w", err)
	}
	return nil
}

// ReplaceFlightNotifications swaps the stored prefile set in one transaction.
func (s *TrafficStorage) ReplaceFlightNotifications(ctx context.Context, notifications []*traffic.FlightNotification) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM flight_notifications`); err != nil {
		return fmt.Errorf("failed to clear flight notifications: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM flight_plans WHERE owner = ?`, planOwnerPrefile); err != nil {
		return fmt.Errorf("failed to clear prefile flight plans: %w", err)
	}

	for _, n := range notifications {
		planID, err := insertFlightPlan(ctx, tx, planOwnerPrefile, n.FlightPlan)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO flight_notifications (callsign, network_id, name, flight_plan_id)
			VALUES (?, ?, ?, ?)
		`, n.Callsign, n.NetworkID, n.Name, planID); err != nil {
			return fmt.Errorf("failed to insert flight notification %s: %w", n.Callsign, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit flight notification replacement: %w", err)
	}
	return nil
}

// ReplaceServers swaps the stored server set in one transaction.
func (s *TrafficStorage) ReplaceServers(ctx context.Context, servers []*traffic.Server) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM servers`); err != nil {
		return fmt.Errorf("failed to clear servers: %w", err)
	}

	for _, srv := range servers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO servers (network_identifier, name, ip_address, location)
			VALUES (?, ?, ?, ?)
		`, srv.NetworkIdentifier, srv.Name, srv.IPAddress, srv.Location); err != nil {
			return fmt.Errorf("failed to insert server %s: %w", srv.NetworkIdentifier, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit server replacement: %w", err)
	}
	return nil
}

// GetPilots returns all stored pilots with their flight plans and full
// position history.
func (s *TrafficStorage) GetPilots(ctx context.Context) ([]*traffic.Pilot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, callsign, network_id, name, server, protocol_revision, logon_time,
			latitude, longitude, altitude, ground_speed, heading, squawk, flight_plan_id
		FROM pilots
		ORDER BY callsign
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pilots: %w", err)
	}
	defer rows.Close()

	pilots := make([]*traffic.Pilot, 0)
	ids := make([]int64, 0)
	planIDs := make(map[int64]int64)
	for rows.Next() {
		var (
			id     int64
			p      traffic.Pilot
			logon  sql.NullTime
			squawk int
			planID sql.NullInt64
		)
		if err := rows.Scan(&id, &p.Callsign, &p.NetworkID, &p.Name, &p.Server, &p.ProtocolRevision, &logon,
			&p.Latitude, &p.Longitude, &p.Altitude, &p.GroundSpeed, &p.Heading, &squawk, &planID); err != nil {
			return nil, fmt.Errorf("failed to scan pilot: %w", err)
		}
		if logon.Valid {
			p.LogonTime = logon.Time.UTC()
		}
		p.Squawk = traffic.Squawk(squawk)
		if planID.Valid {
			planIDs[id] = planID.Int64
		}
		pilots = append(pilots, &p)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pilots: %w", err)
	}

	for i, p := range pilots {
		if planID, ok := planIDs[ids[i]]; ok {
			plan, err := s.getFlightPlan(ctx, planID)
			if err != nil {
				return nil, err
			}
			p.FlightPlan = plan
		}
		history, err := s.getPositionHistory(ctx, ids[i])
		if err != nil {
			return nil, err
		}
		p.History = history
	}

	return pilots, nil
}

// GetPilotByCallsign returns the pilot with the given callsign, or nil if no
// such pilot is online.
func (s *TrafficStorage) GetPilotByCallsign(ctx context.Context, callsign string) (*traffic.Pilot, error) {
	pilots, err := s.GetPilots(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range pilots {
		if p.Callsign == callsign {
			return p, nil
		}
	}
	return nil, nil
}

// GetControllers returns all stored controllers.
func (s *TrafficStorage) GetControllers(ctx context.Context) ([]*traffic.Controller, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT callsign, network_id, name, server, protocol_revision, logon_time,
			frequency, rating, facility, visibility_range, atis
		FROM controllers
		ORDER BY callsign
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query controllers: %w", err)
	}
	defer rows.Close()

	controllers := make([]*traffic.Controller, 0)
	for rows.Next() {
		var (
			c        traffic.Controller
			logon    sql.NullTime
			rating   int
			facility int
		)
		if err := rows.Scan(&c.Callsign, &c.NetworkID, &c.Name, &c.Server, &c.ProtocolRevision, &logon,
			&c.Frequency, &rating, &facility, &c.VisibilityRange, &c.Atis); err != nil {
			return nil, fmt.Errorf("failed to scan controller: %w", err)
		}
		if logon.Valid {
			c.LogonTime = logon.Time.UTC()
		}
		c.Rating = traffic.Rating(rating)
		c.Facility = traffic.Facility(facility)
		controllers = append(controllers, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate controllers: %w", err)
	}
	return controllers, nil
}

// GetFlightNotifications returns all stored prefiled flight plans.
func (s *TrafficStorage) GetFlightNotifications(ctx context.Context) ([]*traffic.FlightNotification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT callsign, network_id, name, flight_plan_id
		FROM flight_notifications
		ORDER BY callsign
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query flight notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*traffic.FlightNotification, 0)
	planIDs := make([]sql.NullInt64, 0)
	for rows.Next() {
		var (
			n      traffic.FlightNotification
			planID sql.NullInt64
		)
		if err := rows.Scan(&n.Callsign, &n.NetworkID, &n.Name, &planID); err != nil {
			return nil, fmt.Errorf("failed to scan flight notification: %w", err)
		}
		notifications = append(notifications, &n)
		planIDs = append(planIDs, planID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flight notifications: %w", err)
	}

	for i, n := range notifications {
		if planIDs[i].Valid {
			plan, err := s.getFlightPlan(ctx, planIDs[i].Int64)
			if err != nil {
				return nil, err
			}
			n.FlightPlan = plan
		}
	}
	return notifications, nil
}

// GetServers returns all stored network servers.
func (s *TrafficStorage) GetServers(ctx context.Context) ([]*traffic.Server, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT network_identifier, name, ip_address, location
		FROM servers
		ORDER BY network_identifier
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query servers: %w", err)
	}
	defer rows.Close()

	servers := make([]*traffic.Server, 0)
	for rows.Next() {
		var srv traffic.Server
		if err := rows.Scan(&srv.NetworkIdentifier, &srv.Name, &srv.IPAddress, &srv.Location); err != nil {
			return nil, fmt.Errorf("failed to scan server: %w", err)
		}
		servers = append(servers, &srv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate servers: %w", err)
	}
	return servers, nil
}

func insertFlightPlan(ctx context.Context, tx *sql.Tx, owner string, plan *traffic.FlightPlan) (sql.NullInt64, error) {
	if plan == nil {
		return sql.NullInt64{}, nil
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO flight_plans (
			owner, rules, aircraft_type, true_air_speed, altitude,
			departure_icao, arrival_icao, alternate_icao,
			estimated_departure, actual_departure,
			time_enroute_secs, fuel_on_board_secs, route, remarks
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		owner, int(plan.Rules), plan.AircraftType, plan.TrueAirSpeed, plan.Altitude,
		plan.DepartureICAO, plan.ArrivalICAO, plan.AlternateICAO,
		nullTimePtr(plan.EstimatedDeparture), nullTimePtr(plan.ActualDeparture),
		int(plan.TimeEnroute.Seconds()), int(plan.FuelOnBoard.Seconds()), plan.Route, plan.Remarks,
	)
	if err != nil {
		return sql.NullInt64{}, fmt.Errorf("failed to insert flight plan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return sql.NullInt64{}, fmt.Errorf("failed to get flight plan id: %w", err)
	}
	return sql.NullInt64{Int64: id, Valid: true}, nil
}

func (s *TrafficStorage) getFlightPlan(ctx context.Context, id int64) (*traffic.FlightPlan, error) {
	var (
		plan        traffic.FlightPlan
		rules       int
		estDep      sql.NullTime
		actDep      sql.NullTime
		enrouteSecs int
		fuelSecs    int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT rules, aircraft_type, true_air_speed, altitude,
			departure_icao, arrival_icao, alternate_icao,
			estimated_departure, actual_departure,
			time_enroute_secs, fuel_on_board_secs, route, remarks
		FROM flight_plans WHERE id = ?
	`, id).Scan(&rules, &plan.AircraftType, &plan.TrueAirSpeed, &plan.Altitude,
		&plan.DepartureICAO, &plan.ArrivalICAO, &plan.AlternateICAO,
		&estDep, &actDep, &enrouteSecs, &fuelSecs, &plan.Route, &plan.Remarks)
	if err != nil {
		return nil, fmt.Errorf("failed to query flight plan %d: %w", id, err)
	}
	plan.Rules = traffic.FlightRules(rules)
	if estDep.Valid {
		t := estDep.Time.UTC()
		plan.EstimatedDeparture = &t
	}
	if actDep.Valid {
		t := actDep.Time.UTC()
		plan.ActualDeparture = &t
	}
	plan.TimeEnroute = time.Duration(enrouteSecs) * time.Second
	plan.FuelOnBoard = time.Duration(fuelSecs) * time.Second
	return &plan, nil
}

func (s *TrafficStorage) getPositionHistory(ctx context.Context, pilotID int64) ([]traffic.PositionPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT time, latitude, longitude, altitude
		FROM position_history
		WHERE pilot_id = ?
		ORDER BY time
	`, pilotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query position history: %w", err)
	}
	defer rows.Close()

	var history []traffic.PositionPoint
	for rows.Next() {
		var pt traffic.PositionPoint
		if err := rows.Scan(&pt.Time, &pt.Latitude, &pt.Longitude, &pt.Altitude); err != nil {
			return nil, fmt.Errorf("failed to scan position point: %w", err)
		}
		pt.Time = pt.Time.UTC()
		history = append(history, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate position history: %w", err)
	}
	return history, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
