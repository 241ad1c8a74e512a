package types

// ActionType is the bulk operation requested for a document.
type ActionType string

const (
	ActionIndex  ActionType = "index"
	ActionDelete ActionType = "delete"
	ActionUpdate ActionType = "update"
)

// Action is a single bulk-write instruction. Actions are built on demand,
// handed to a Connection and never stored. Delete actions carry no source.
type Action struct {
	Op      ActionType
	Index   string
	DocType string
	ID      string
	Source  map[string]any
}

// BulkOptions carries the per-call dispatch options forwarded to the bulk
// transport. A nil Refresh means "not set", letting the process-wide
// auto-refresh default apply.
type BulkOptions struct {
	Refresh  *bool
	Pipeline string
}
