package types

// Instance is one record of a data model. The model name is the identity
// the registry keys on, the reference becomes the document id.
type Instance interface {
	ModelName() string
	Reference() string
}

// RawInstance is the instance shape produced by change feeds: a model
// name, a reference and whatever row data the feed already captured.
// Data may be nil, in which case documents fetch the record themselves.
type RawInstance struct {
	Model string
	Ref   string
	Data  map[string]any
}

func (r RawInstance) ModelName() string { return r.Model }
func (r RawInstance) Reference() string { return r.Ref }
