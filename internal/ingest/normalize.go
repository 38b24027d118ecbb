package ingest

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/valyala/fastjson"

	"github.com/vigil-ops/vigil/internal/logparse"
	"github.com/vigil-ops/vigil/internal/model"
	"github.com/vigil-ops/vigil/internal/vigilerr"
)

// emptyEntities is the stored default when the scorer sends no entities.
var emptyEntities = json.RawMessage(`{}`)

// ErrMissingLog is returned when the payload has no log key at all.
// A present-but-null (or otherwise falsy) log value is accepted.
var ErrMissingLog = vigilerr.New(vigilerr.CodeMissingLog, "log field is required", nil)

// Payload is the enriched-record body the scorer POSTs to /api/logs.
// Log and Entities stay opaque; IsAnomaly and ModelUsed are untyped because
// upstream scorers are sloppy about booleans. Extra fields are ignored by
// the JSON decoder.
type Payload struct {
	Log          json.RawMessage `json:"log"`
	IsAnomaly    any             `json:"is_anomaly"`
	AnomalyScore any             `json:"anomaly_score"`
	Reason       string          `json:"reason"`
	Entities     json.RawMessage `json:"entities"`
	ModelUsed    any             `json:"model_used"`
}

// Normalize validates a payload and builds the record to store. The record's
// timestamp is the supplied receipt time, never anything from the caller.
// Only an entirely absent log key is rejected; null and falsy scalars pass.
func Normalize(p Payload, now time.Time) (*model.LogRecord, error) {
	if p.Log == nil {
		return nil, ErrMissingLog
	}

	entities := p.Entities
	if entities == nil {
		entities = emptyEntities
	}

	return &model.LogRecord{
		Timestamp: now.UTC(),
		Meta: model.Meta{
			Source:   model.SourceMongoDB,
			Severity: PayloadSeverity(p.Log),
		},
		Log:          p.Log,
		IsAnomaly:    CoerceBool(p.IsAnomaly),
		AnomalyScore: coerceScore(p.AnomalyScore),
		Reason:       p.Reason,
		Entities:     entities,
		ModelUsed:    CoerceBool(p.ModelUsed),
	}, nil
}

// CoerceBool converts loosely-typed flag values to strict booleans.
// Strings that parse as booleans keep their parsed value; other non-empty
// strings, non-zero numbers, and any structured value count as true.
func CoerceBool(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
		return t != ""
	case float64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	default:
		return true
	}
}

func coerceScore(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}

// PayloadSeverity derives meta.severity from the opaque log payload: the
// severity field, then the s field, normalized to E/W/I, defaulting to I.
func PayloadSeverity(raw json.RawMessage) string {
	v, err := fastjson.ParseBytes(raw)
	if err != nil {
		return model.SeverityInfo
	}
	if sev := v.GetStringBytes("severity"); len(sev) > 0 {
		return logparse.NormalizeSeverity(string(sev))
	}
	if sev := v.GetStringBytes("s"); len(sev) > 0 {
		return logparse.NormalizeSeverity(string(sev))
	}
	return model.SeverityInfo
}

// PayloadMsg reads log.msg for display projections. Empty when absent or when
// the payload is not an object.
func PayloadMsg(raw json.RawMessage) string {
	v, err := fastjson.ParseBytes(raw)
	if err != nil {
		return ""
	}
	return string(v.GetStringBytes("msg"))
}
