package scorer

import (
	"math"
	"regexp"

	"github.com/vigil-ops/vigil/internal/logparse"
)

// Features is the numeric view of one raw log entry. The vector layout is a
// boundary contract shared with the external statistical model; it is not
// interpreted beyond the rolling-window distance heuristic here.
type Features struct {
	SeverityCode     float64
	DurationNorm     float64
	ConnectionIDNorm float64
	HourSin          float64
	HourCos          float64
}

var hourPattern = regexp.MustCompile(`T(\d{2}):`)

// ExtractFeatures computes the feature vector for a raw mongod log entry.
func ExtractFeatures(entry map[string]any) Features {
	severity := stringField(entry, "s")
	if severity == "" {
		severity = stringField(entry, "severity")
	}

	duration := numberField(entry, "durationMillis")
	durationNorm := 0.0
	if duration > 0 {
		durationNorm = math.Min(1.0, duration/10000.0)
	}

	connID := numberField(entry, "connectionId")
	connNorm := 0.0
	if connID > 0 {
		connNorm = math.Mod(connID, 1000) / 1000.0
	}

	hour := 12
	if m := hourPattern.FindStringSubmatch(entryDate(entry)); m != nil {
		hour = int(m[1][0]-'0')*10 + int(m[1][1]-'0')
	}

	return Features{
		SeverityCode:     float64(logparse.SeverityCode(severity)),
		DurationNorm:     durationNorm,
		ConnectionIDNorm: connNorm,
		HourSin:          math.Sin(2 * math.Pi * float64(hour) / 24),
		HourCos:          math.Cos(2 * math.Pi * float64(hour) / 24),
	}
}

func (f Features) vector() [5]float64 {
	return [5]float64{f.SeverityCode, f.DurationNorm, f.ConnectionIDNorm, f.HourSin, f.HourCos}
}

func stringField(entry map[string]any, key string) string {
	s, _ := entry[key].(string)
	return s
}

func numberField(entry map[string]any, key string) float64 {
	switch v := entry[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// entryDate pulls the raw timestamp string out of the mongod t.$date wrapper,
// tolerating a plain string as well.
func entryDate(entry map[string]any) string {
	switch t := entry["t"].(type) {
	case map[string]any:
		s, _ := t["$date"].(string)
		return s
	case string:
		return t
	default:
		return ""
	}
}
