package model

import (
	"encoding/json"
	"time"
)

// SourceMongoDB identifies the producing subsystem on every stored record.
const SourceMongoDB = "mongodb"

// Severity values form a closed set. Anything else normalizes to SeverityInfo.
const (
	SeverityError = "E"
	SeverityWarn  = "W"
	SeverityInfo  = "I"
)

// Meta carries record provenance: which subsystem produced the raw log and
// the severity derived from it at ingestion time.
type Meta struct {
	Source   string `json:"source"`
	Severity string `json:"severity"`
}

// LogRecord is a single enriched log entry used across the system.
// It is the canonical type for storage, the HTTP API, and the broadcast channel.
// Records are immutable once stored; Timestamp is assigned at receipt and the
// Log and Entities payloads are kept verbatim as opaque JSON.
type LogRecord struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	Meta         Meta            `json:"meta"`
	Log          json.RawMessage `json:"log"`
	IsAnomaly    bool            `json:"is_anomaly"`
	AnomalyScore float64         `json:"anomaly_score"`
	Reason       string          `json:"reason"`
	Entities     json.RawMessage `json:"entities"`
	ModelUsed    bool            `json:"model_used"`
}

// AnomalySummary is the projection of an anomalous record returned by the
// stats endpoint. Msg comes from log.msg and may be empty when absent.
type AnomalySummary struct {
	Timestamp time.Time `json:"timestamp"`
	Msg       string    `json:"msg"`
	Reason    string    `json:"reason"`
	Score     float64   `json:"score"`
}

// AggregateStats is computed on demand over the trailing 24-hour window.
// AnomalyRate is a percentage rounded to 2 decimals; ThreatLevel is derived
// from the unrounded rate.
type AggregateStats struct {
	Total           int64            `json:"total"`
	Anomalies       int64            `json:"anomalies"`
	AnomalyRate     float64          `json:"anomalyRate"`
	ThreatLevel     string           `json:"threatLevel"`
	RecentAnomalies []AnomalySummary `json:"recentAnomalies"`
}
