package types

import "context"

// ChangeFunc receives one persistence-layer change event, synchronously,
// on the emitting goroutine.
type ChangeFunc func(instance Instance, action ActionType)

// ChangeFeed is a source of change events. Subscribe returns a detach
// function removing exactly that registration; detaching twice is
// harmless.
type ChangeFeed interface {
	Subscribe(fn ChangeFunc) (detach func())
}

// WatchedTable names one table to observe plus the column that becomes
// the document reference.
type WatchedTable struct {
	Name           string
	ReferenceField string
}

// Source is a ChangeFeed managed by the engine: configured from the
// process config, prepared against the tables the registry watches, then
// run until its context is canceled.
type Source interface {
	ChangeFeed

	InternalInit(name string)
	Init(config map[string]any) error
	PrepareListen(ctx context.Context, tables []WatchedTable) error
	Listen(ctx context.Context) error
	Terminate()
}

// Record pairs a reference with its row data. A Record carrying Err
// reports a stream failure; no further records follow it.
type Record struct {
	Reference string
	Data      map[string]any
	Err       error
}

// Fetcher retrieves full records for config-declared table documents.
// Sources backed by a database implement it next to their feed role.
type Fetcher interface {
	Records(ctx context.Context, table, referenceField string, refs []string) (map[string]map[string]any, error)
	AllRecords(ctx context.Context, table, referenceField string) (<-chan Record, error)
	RelatedRefs(ctx context.Context, table, referenceField, foreignKey, ref string) ([]string, error)
}
