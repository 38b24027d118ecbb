// Package scorer is the heuristic fallback classifier: it flags suspicious
// entries with rules and a rolling feature-distance score. The statistical
// outlier model is an external collaborator; when it is absent this path
// runs and every result reports model_used=false.
package scorer

import (
	"fmt"
	"math"
	"strings"
)

const (
	// maxSamples bounds the rolling window of observed feature vectors.
	maxSamples = 500

	// minSamples is how many observations the distance score needs before
	// it contributes to classification.
	minSamples = 50

	slowQueryMillis = 3000
)

// Result is the enriched record POSTed to the ingestion API.
type Result struct {
	Log          map[string]any `json:"log"`
	IsAnomaly    bool           `json:"is_anomaly"`
	AnomalyScore float64        `json:"anomaly_score"`
	Reason       string         `json:"reason"`
	Entities     Entities       `json:"entities"`
	ModelUsed    bool           `json:"model_used"`
}

// Scorer keeps a rolling window of feature vectors and classifies entries
// against it. Not safe for concurrent use; the queue consumer is the single
// caller.
type Scorer struct {
	window [][5]float64
	sums   [5]float64
}

// New creates an empty scorer.
func New() *Scorer {
	return &Scorer{window: make([][5]float64, 0, maxSamples)}
}

// Analyze classifies one raw entry and records its features in the window.
func (s *Scorer) Analyze(entry map[string]any) Result {
	features := ExtractFeatures(entry)
	score := s.observe(features)

	isAnomaly := s.classify(entry, features)

	return Result{
		Log:          entry,
		IsAnomaly:    isAnomaly,
		AnomalyScore: math.Round(score*10000) / 10000,
		Reason:       buildReason(entry, isAnomaly, score),
		Entities:     ExtractEntities(entry),
		ModelUsed:    false,
	}
}

// observe records the vector and returns the negated mean distance from the
// rolling centroid. More negative means further from recent normal traffic;
// zero until the window has enough samples.
func (s *Scorer) observe(f Features) float64 {
	vec := f.vector()

	score := 0.0
	if len(s.window) >= minSamples {
		var dist float64
		n := float64(len(s.window))
		for i, v := range vec {
			d := v - s.sums[i]/n
			dist += d * d
		}
		score = -math.Sqrt(dist)
	}

	if len(s.window) == maxSamples {
		oldest := s.window[0]
		s.window = s.window[1:]
		for i := range s.sums {
			s.sums[i] -= oldest[i]
		}
	}
	s.window = append(s.window, vec)
	for i := range s.sums {
		s.sums[i] += vec[i]
	}

	return score
}

// classify applies the rule set: error severity, slow operations, and
// failure-pattern messages are anomalous.
func (s *Scorer) classify(entry map[string]any, f Features) bool {
	if f.SeverityCode == 2 {
		return true
	}
	if numberField(entry, "durationMillis") > slowQueryMillis {
		return true
	}
	msg := strings.ToLower(stringField(entry, "msg"))
	return strings.Contains(msg, "fail") || strings.Contains(msg, "refused")
}

// buildReason mirrors the reasoning the dashboard shows next to each flag.
func buildReason(entry map[string]any, isAnomaly bool, score float64) string {
	if !isAnomaly {
		return "Normal: Feature values within expected range."
	}

	var reasons []string

	severity := stringField(entry, "s")
	if severity == "" {
		severity = stringField(entry, "severity")
	}
	switch severity {
	case "E":
		reasons = append(reasons, "Error severity (E) is rare and increases anomaly score.")
	case "W":
		reasons = append(reasons, "Warning severity (W) is less common than Info.")
	}

	if d := numberField(entry, "durationMillis"); d > slowQueryMillis {
		reasons = append(reasons, fmt.Sprintf("High duration (%.0fms) deviates from typical query times.", d))
	}

	msg := strings.ToLower(stringField(entry, "msg"))
	if strings.Contains(msg, "fail") || strings.Contains(msg, "refused") {
		reasons = append(reasons, "Failure-related message pattern increases anomaly likelihood.")
	}
	if strings.Contains(msg, "auth") {
		reasons = append(reasons, "Authentication events are monitored for security.")
	}

	if len(reasons) == 0 {
		reasons = append(reasons, fmt.Sprintf("Feature-distance score (%.3f) indicates outlier in feature space.", score))
	}

	return strings.Join(reasons, " | ")
}
