package logparse

import "testing"

func TestNormalizeSeverity(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"E", "E"},
		{"W", "W"},
		{"I", "I"},
		{"e", "E"},
		{"error", "E"},
		{"ERROR", "E"},
		{"fatal", "E"},
		{"CRITICAL", "E"},
		{"warn", "W"},
		{"Warning", "W"},
		{"info", "I"},
		{"DEBUG", "I"},
		{"trace", "I"},
		{"  W  ", "W"},
		{"", "I"},
		{"F5", "I"},
		{"bogus", "I"},
	}

	for _, tt := range tests {
		if got := NormalizeSeverity(tt.input); got != tt.expected {
			t.Errorf("NormalizeSeverity(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestSeverityCode(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"E", 2},
		{"error", 2},
		{"W", 1},
		{"warning", 1},
		{"I", 0},
		{"unknown", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := SeverityCode(tt.input); got != tt.expected {
			t.Errorf("SeverityCode(%q) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}
