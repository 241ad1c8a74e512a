package types

// Index is a named destination grouping one or more documents. Two Index
// values with the same name are the same index for registry purposes.
// Settings and Mappings are only consumed when bootstrapping the index on
// its search cluster.
type Index struct {
	Name     string
	Settings map[string]any
	Mappings map[string]any
}
