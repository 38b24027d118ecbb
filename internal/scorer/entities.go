package scorer

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// Entities holds the structures extracted from one raw log entry. The shape
// is a boundary contract with the ingestion API, which stores it verbatim.
type Entities struct {
	IPs       []string `json:"ips"`
	ErrorType string   `json:"error_type,omitempty"`
}

// ipPattern matches IPv4 addresses with an optional port.
var ipPattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}(?::\d+)?\b`)

// ExtractEntities pulls IP addresses and a coarse error type out of a raw
// entry using pattern matching. Natural-language entity extraction is the
// external extractor's job and is not reproduced here.
func ExtractEntities(entry map[string]any) Entities {
	msg := stringField(entry, "msg")

	var full strings.Builder
	full.WriteString(msg)
	full.WriteByte(' ')
	if raw, err := json.Marshal(entry); err == nil {
		full.Write(raw)
	}
	text := full.String()

	seen := make(map[string]struct{})
	var ips []string
	for _, ip := range ipPattern.FindAllString(text, -1) {
		if _, ok := seen[ip]; ok {
			continue
		}
		seen[ip] = struct{}{}
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	if ips == nil {
		ips = []string{}
	}

	return Entities{
		IPs:       ips,
		ErrorType: classifyError(strings.ToLower(msg), strings.ToLower(text)),
	}
}

// classifyError maps message patterns onto the coarse error taxonomy the
// dashboard groups by. Order matters: authentication beats generic failure.
func classifyError(msgLower, textLower string) string {
	switch {
	case strings.Contains(msgLower, "auth") || strings.Contains(textLower, "authentication"):
		return "Authentication"
	case strings.Contains(msgLower, "refused") || strings.Contains(textLower, "connection refused"):
		return "ConnectionRefused"
	case strings.Contains(msgLower, "slow") || strings.Contains(textLower, "slow query"):
		return "SlowQuery"
	case strings.Contains(msgLower, "index") && (strings.Contains(textLower, "fail") || strings.Contains(msgLower, "build")):
		return "IndexBuildFailure"
	case strings.Contains(textLower, "timeout"):
		return "Timeout"
	default:
		return ""
	}
}
