package internals

import (
	"context"

	"github.com/sync-labs/model-el-sync/internals/types"
)

type bulkCall struct {
	actions []types.Action
	opts    types.BulkOptions
}

// fakeConnection records every bulk call it receives.
type fakeConnection struct {
	name  string
	calls []bulkCall
	err   error
}

func (c *fakeConnection) Bulk(_ context.Context, actions []types.Action, opts types.BulkOptions) error {
	c.calls = append(c.calls, bulkCall{actions: actions, opts: opts})
	return c.err
}

// fakeDoc builds one action per instance against a fixed index name.
type fakeDoc struct {
	types.BaseDocument
	indexName  string
	computeErr error
}

func (d *fakeDoc) ComputeActions(_ context.Context, instances []types.Instance, action types.ActionType) ([]types.Action, error) {
	if d.computeErr != nil {
		return nil, d.computeErr
	}
	var actions []types.Action
	for _, instance := range instances {
		act := types.Action{
			Op:      action,
			Index:   d.indexName,
			DocType: d.ModelName,
			ID:      instance.Reference(),
		}
		if action != types.ActionDelete {
			act.Source = map[string]any{"reference": instance.Reference()}
		}
		actions = append(actions, act)
	}
	return actions, nil
}

func instanceOf(model, ref string) types.Instance {
	return types.RawInstance{Model: model, Ref: ref}
}

// relatedTo declares a dependency on model whose lookup always resolves
// to the given primary instances.
func relatedTo(model string, instances ...types.Instance) types.Related {
	return types.Related{
		Model: model,
		Lookup: func(context.Context, types.Instance) ([]types.Instance, error) {
			return instances, nil
		},
	}
}
