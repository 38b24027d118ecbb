package duckdb

import "github.com/vigil-ops/vigil/internal/model"

// Type aliases re-export model types so Store method signatures stay readable
// at call sites without importing both packages.
type LogRecord = model.LogRecord
type Meta = model.Meta
