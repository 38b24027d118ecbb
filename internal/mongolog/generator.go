// Package mongolog generates synthetic mongod-style structured log entries
// for exercising the pipeline without a real database cluster.
package mongolog

import (
	"fmt"
	"math/rand"
	"time"
)

// Entry is one raw log record in the mongod JSON shape. The map is the wire
// payload; downstream components treat it as opaque.
type Entry = map[string]any

// template produces one entry variant. Each closure fills the randomized
// fields the real server would populate.
type template func(r *rand.Rand) Entry

var templates = []template{
	func(r *rand.Rand) Entry {
		return Entry{"severity": "I", "msg": "connection accepted", "connectionId": connID(r)}
	},
	func(r *rand.Rand) Entry {
		return Entry{"severity": "I", "msg": "connection ended", "connectionId": connID(r)}
	},
	func(r *rand.Rand) Entry {
		return Entry{"severity": "W", "msg": "slow query", "durationMillis": duration(r)}
	},
	func(r *rand.Rand) Entry {
		return Entry{"severity": "E", "msg": "authentication failed", "principalName": fmt.Sprintf("user_%d@example.com", 1+r.Intn(100))}
	},
	func(r *rand.Rand) Entry {
		return Entry{"severity": "I", "msg": "command completed", "command": "find", "durationMillis": duration(r)}
	},
	func(r *rand.Rand) Entry {
		return Entry{"severity": "I", "msg": "command completed", "command": "aggregate", "durationMillis": duration(r)}
	},
	func(r *rand.Rand) Entry {
		return Entry{"severity": "E", "msg": "connection refused", "remote": remoteAddr(r)}
	},
	func(r *rand.Rand) Entry {
		collections := []string{"users", "orders", "sessions"}
		return Entry{"severity": "W", "msg": "index build failed", "index": fmt.Sprintf("idx_%s_%d", collections[r.Intn(len(collections))], 1+r.Intn(10))}
	},
	func(r *rand.Rand) Entry {
		return Entry{"severity": "I", "msg": "replication heartbeat", "term": 1 + r.Intn(10), "oplogPosition": 1000000 + r.Intn(9000000)}
	},
}

func connID(r *rand.Rand) int   { return 1000 + r.Intn(99000) }
func duration(r *rand.Rand) int { return 5 + r.Intn(4996) }

func remoteAddr(r *rand.Rand) string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", 1+r.Intn(255), r.Intn(256), r.Intn(256), 1+r.Intn(255), 1024+r.Intn(64512))
}

// Generator emits randomized entries. Not safe for concurrent use; each
// producer goroutine should own its own Generator.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

// New creates a generator seeded from the clock.
func New() *Generator {
	return &Generator{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
}

// NewWithSeed creates a deterministic generator for tests.
func NewWithSeed(seed int64, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{rng: rand.New(rand.NewSource(seed)), now: now}
}

// Next returns one synthetic log entry with a mongod-style t.$date timestamp.
func (g *Generator) Next() Entry {
	entry := templates[g.rng.Intn(len(templates))](g.rng)
	entry["t"] = map[string]any{"$date": g.now().UTC().Format(time.RFC3339Nano)}
	return entry
}
