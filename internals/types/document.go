package types

import "context"

// Related declares that documents of a primary model must be rebuilt when
// an instance of Model changes. Lookup resolves the changed related
// instance to the primary instances to re-index; it is bound once at
// declaration time, never discovered by name at update time. A nil or
// empty result means nothing depends on this particular instance.
type Related struct {
	Model  string
	Lookup func(ctx context.Context, instance Instance) ([]Instance, error)
}

// Document maps one data model to its representation in one index.
// Implementations are stateless values registered as pointers; the
// registry never mutates them and uses them as set members.
type Document interface {
	Model() string
	Connection() Connection
	IgnoreSignals() bool
	AutoRefresh() bool
	Pagination() int
	RelatedModels() []Related

	ComputeActions(ctx context.Context, instances []Instance, action ActionType) ([]Action, error)
}

// Reindexable is implemented by documents that can enumerate every
// instance of their model, in batches, for a full reindex.
type Reindexable interface {
	EachBatch(ctx context.Context, size int, fn func(batch []Instance) error) error
}

// BaseDocument carries the declarative settings shared by every document
// so concrete documents only provide ComputeActions.
type BaseDocument struct {
	ModelName   string
	Conn        Connection
	SkipSignals bool
	Refresh     bool
	BatchSize   int
	Related     []Related
}

func (d *BaseDocument) Model() string            { return d.ModelName }
func (d *BaseDocument) Connection() Connection   { return d.Conn }
func (d *BaseDocument) IgnoreSignals() bool      { return d.SkipSignals }
func (d *BaseDocument) AutoRefresh() bool        { return d.Refresh }
func (d *BaseDocument) Pagination() int          { return d.BatchSize }
func (d *BaseDocument) RelatedModels() []Related { return d.Related }
