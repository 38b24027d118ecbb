// Package stats derives aggregate anomaly statistics from window counts.
package stats

import (
	"math"

	"github.com/vigil-ops/vigil/internal/ingest"
	"github.com/vigil-ops/vigil/internal/model"
)

// Threat levels derived from the anomaly rate.
const (
	ThreatNone   = "none"
	ThreatLow    = "low"
	ThreatMedium = "medium"
	ThreatHigh   = "high"
)

// Rate returns the unrounded anomaly percentage. Zero when total is zero.
func Rate(total, anomalies int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(anomalies) / float64(total) * 100
}

// Round2 rounds half away from zero to 2 decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// ThreatLevel maps the unrounded anomaly rate onto the four-value scale.
// Boundaries are strict: exactly 10 is medium, exactly 3 is low.
func ThreatLevel(rate float64) string {
	switch {
	case rate > 10:
		return ThreatHigh
	case rate > 3:
		return ThreatMedium
	case rate > 0:
		return ThreatLow
	default:
		return ThreatNone
	}
}

// Build assembles the stats response from window counts and the newest-first
// anomalous records of the window.
func Build(total, anomalies int64, anomalous []model.LogRecord) model.AggregateStats {
	rate := Rate(total, anomalies)

	summaries := make([]model.AnomalySummary, 0, len(anomalous))
	for _, rec := range anomalous {
		summaries = append(summaries, model.AnomalySummary{
			Timestamp: rec.Timestamp,
			Msg:       ingest.PayloadMsg(rec.Log),
			Reason:    rec.Reason,
			Score:     rec.AnomalyScore,
		})
	}

	return model.AggregateStats{
		Total:           total,
		Anomalies:       anomalies,
		AnomalyRate:     Round2(rate),
		ThreatLevel:     ThreatLevel(rate),
		RecentAnomalies: summaries,
	}
}
