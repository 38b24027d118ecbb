package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"
)

// queryCtx returns a context with the store's configured query timeout.
func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}

const recordColumns = "id, timestamp, source, severity, log, is_anomaly, anomaly_score, reason, entities, model_used"

func scanRecord(rows *sql.Rows) (*LogRecord, error) {
	var r LogRecord
	var logJSON, entitiesJSON string
	if err := rows.Scan(
		&r.ID, &r.Timestamp, &r.Meta.Source, &r.Meta.Severity,
		&logJSON, &r.IsAnomaly, &r.AnomalyScore, &r.Reason,
		&entitiesJSON, &r.ModelUsed,
	); err != nil {
		return nil, err
	}
	r.Timestamp = r.Timestamp.UTC()
	r.Log = json.RawMessage(logJSON)
	r.Entities = json.RawMessage(entitiesJSON)
	return &r, nil
}

// TotalLogCount returns the number of records in the whole collection.
func (s *Store) TotalLogCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM logs").Scan(&count)
	return count, err
}

// RecentLogs returns one page of records sorted by timestamp descending.
func (s *Store) RecentLogs(limit, skip int) ([]LogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM logs ORDER BY timestamp DESC, id LIMIT ? OFFSET ?",
		limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []LogRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			log.Printf("duckdb scan error (RecentLogs): %v", err)
			continue
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

// WindowCounts returns the total and anomalous record counts for
// timestamp >= since.
func (s *Store) WindowCounts(since time.Time) (total, anomalies int64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_anomaly THEN 1 ELSE 0 END), 0)
		FROM logs WHERE timestamp >= ?`, since).Scan(&total, &anomalies)
	return total, anomalies, err
}

// RecentAnomalies returns the newest-first anomalous records with
// timestamp >= since, capped at limit.
func (s *Store) RecentAnomalies(since time.Time, limit int) ([]LogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM logs WHERE is_anomaly AND timestamp >= ? ORDER BY timestamp DESC, id LIMIT ?",
		since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []LogRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			log.Printf("duckdb scan error (RecentAnomalies): %v", err)
			continue
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}
