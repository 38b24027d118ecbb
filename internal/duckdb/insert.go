package duckdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// InsertLog durably stores one record and returns its server-generated id.
// The insert is synchronous: when InsertLog returns nil, the write is
// confirmed, which is what lets callers broadcast afterwards. Records are
// never updated or deleted after this point.
func (s *Store) InsertLog(record *LogRecord) (string, error) {
	if record == nil {
		return "", fmt.Errorf("duckdb: nil record")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.QueryTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	id := record.ID
	if id == "" {
		id = uuid.NewString()
	}

	logJSON := []byte("null")
	if record.Log != nil {
		logJSON = record.Log
	}
	entitiesJSON := []byte("{}")
	if len(record.Entities) > 0 {
		entitiesJSON = record.Entities
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO logs (id, timestamp, source, severity, log, is_anomaly, anomaly_score, reason, entities, model_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, record.Timestamp, record.Meta.Source, record.Meta.Severity,
		string(logJSON), record.IsAnomaly, record.AnomalyScore,
		record.Reason, string(entitiesJSON), record.ModelUsed,
	)
	if err != nil {
		return "", fmt.Errorf("duckdb: insert log: %w", err)
	}

	record.ID = id
	record.Log = json.RawMessage(logJSON)
	record.Entities = json.RawMessage(entitiesJSON)
	return id, nil
}
