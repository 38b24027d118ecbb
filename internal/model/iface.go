package model

import "time"

// LogWriter provides the single write operation this system has: a durable
// insert of one record. The returned id is server-generated. There is no
// update or delete.
type LogWriter interface {
	InsertLog(record *LogRecord) (string, error)
}

// LogQuerier provides read-only queries on stored records.
type LogQuerier interface {
	TotalLogCount() (int64, error)
	RecentLogs(limit, skip int) ([]LogRecord, error)
	WindowCounts(since time.Time) (total, anomalies int64, err error)
	RecentAnomalies(since time.Time, limit int) ([]LogRecord, error)
}

// LogStore is the unified store contract consumed by the HTTP surface.
type LogStore interface {
	LogWriter
	LogQuerier
}
