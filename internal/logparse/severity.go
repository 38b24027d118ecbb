package logparse

import (
	"strings"

	"github.com/vigil-ops/vigil/internal/model"
)

// NormalizeSeverity converts raw severity strings into the closed E/W/I set
// used by mongod structured logs. Long forms are accepted case-insensitively;
// anything unrecognized falls back to the lowest tier (I).
func NormalizeSeverity(severity string) string {
	normalized := strings.ToUpper(strings.TrimSpace(severity))

	switch normalized {
	case "E", "ERROR", "ERR", "F", "FATAL", "CRITICAL", "CRIT":
		return model.SeverityError
	case "W", "WARN", "WARNING", "WRN":
		return model.SeverityWarn
	case "I", "INFO", "INFORMATION", "INF", "D", "DEBUG", "TRACE":
		return model.SeverityInfo
	default:
		return model.SeverityInfo
	}
}

// SeverityCode maps the closed severity set to the numeric codes the scorer's
// feature vector uses. Unknown values map to 0 (info).
func SeverityCode(severity string) int {
	switch NormalizeSeverity(severity) {
	case model.SeverityError:
		return 2
	case model.SeverityWarn:
		return 1
	default:
		return 0
	}
}
