package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vatscope/traffic-server/internal/traffic"
	"github.com/vatscope/traffic-server/pkg/logger"
)

// ArchiveStorage keeps every raw status-file snapshot, append-only. Nothing
// in the pipeline ever updates or deletes an archived row.
type ArchiveStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewArchiveStorage creates the archive over an already-open database.
func NewArchiveStorage(db *sql.DB, log *logger.Logger) (*ArchiveStorage, error) {
	storage := &ArchiveStorage{
		db:     db,
		logger: log.Named("sqlite-archive"),
	}
	if err := storage.initDB(); err != nil {
		return nil, err
	}
	return storage, nil
}

func (s *ArchiveStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			raw TEXT NOT NULL,
			source TEXT NOT NULL,
			date_received TIMESTAMP NOT NULL,
			fetch_time_ns INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create snapshots table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_snapshots_date_received ON snapshots(date_received)`)
	if err != nil {
		return fmt.Errorf("failed to create index on snapshots.date_received: %w", err)
	}
	return nil
}

// SaveTrafficData appends one snapshot to the archive.
func (s *ArchiveStorage) SaveTrafficData(ctx context.Context, data *traffic.TrafficData) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (raw, source, date_received, fetch_time_ns)
		VALUES (?, ?, ?, ?)
	`, data.Raw, data.Source, data.DateReceived, int64(data.FetchTime))
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	s.logger.Debug("Archived snapshot",
		logger.String("source", data.Source),
		logger.Int("bytes", len(data.Raw)),
	)
	return nil
}

// GetRecentSnapshots returns the newest snapshots, most recent first, without
// their raw payloads.
func (s *ArchiveStorage) GetRecentSnapshots(ctx context.Context, limit int) ([]*traffic.TrafficData, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, date_received, fetch_time_ns
		FROM snapshots
		ORDER BY date_received DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]*traffic.TrafficData, 0, limit)
	for rows.Next() {
		var (
			data    traffic.TrafficData
			fetchNS int64
		)
		if err := rows.Scan(&data.Source, &data.DateReceived, &fetchNS); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		data.DateReceived = data.DateReceived.UTC()
		data.FetchTime = time.Duration(fetchNS)
		snapshots = append(snapshots, &data)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}
	return snapshots, nil
}
