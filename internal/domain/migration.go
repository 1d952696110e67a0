package domain

import (
	"fmt"
	"time"
)

// Document is the in-memory representation of a persisted data family.
// Values are JSON-compatible: maps, slices, strings, numbers, bools and nil.
type Document map[string]any

// Clone returns a deep copy so transforms never alias persisted state.
func (d Document) Clone() Document {
	if d == nil {
		return Document{}
	}
	return cloneValue(map[string]any(d)).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return Document(cloneValue(map[string]any(t)).(map[string]any))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// Transform rewrites a family document from one schema version to the next.
// Transforms receive a private copy and may modify it in place.
type Transform func(doc Document) (Document, error)

// MigrationDefinition is one reversible step in a family's schema history.
// Backward(Forward(x)) must equal x for every valid x at version From.
type MigrationDefinition struct {
	Family   string
	From     int
	To       int
	Name     string
	Forward  Transform
	Backward Transform
}

// ID returns the identity of the migration.
func (m MigrationDefinition) ID() MigrationID {
	return MigrationID{Family: m.Family, From: m.From, To: m.To}
}

// MigrationID identifies a migration by family and version pair.
type MigrationID struct {
	Family string
	From   int
	To     int
}

func (id MigrationID) String() string {
	return fmt.Sprintf("%s:%d->%d", id.Family, id.From, id.To)
}

// Direction of a migration run.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionNone Direction = "none"
)

// MigrationStatus is the terminal state of a migration run.
type MigrationStatus string

const (
	MigrationSuccess        MigrationStatus = "success"
	MigrationPartialFailure MigrationStatus = "partial-failure"
)

// MigrationResult captures what happened during a single migrate call.
type MigrationResult struct {
	Family     string
	From       int
	To         int // Version actually reached
	Target     int
	Direction  Direction
	Applied    []MigrationID
	Status     MigrationStatus
	LastGood   int
	Snapshot   string // Pre-migration snapshot path, if one was taken
	Err        error
	ExecutedAt time.Time
	DurationMs int64
}

// Succeeded reports whether the target version was reached.
func (r *MigrationResult) Succeeded() bool {
	return r.Status == MigrationSuccess
}
