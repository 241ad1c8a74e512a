package types

import "context"

// Connection is a handle to one search cluster. The registry treats it as
// opaque: it is the grouping key when batching actions and the target of
// the resulting bulk call, nothing more.
type Connection interface {
	Bulk(ctx context.Context, actions []Action, opts BulkOptions) error
}

// Output is a Connection managed by the engine: configured from the
// process config, able to bootstrap its declared indices, terminated on
// shutdown.
type Output interface {
	Connection

	InternalInit(name string)
	Init(config map[string]any) error
	EnsureIndices(ctx context.Context, indices []*Index) error
	Terminate()
}
