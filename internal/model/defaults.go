package model

import "time"

// Shared defaults used across binaries.
const (
	DefaultPageLimit    = 50
	MaxPageLimit        = 200
	StatsWindow         = 24 * time.Hour
	MaxRecentAnomalies  = 100
	DefaultPollInterval = 5 * time.Second
)
