package internals

import (
	"context"
	"fmt"

	"github.com/sync-labs/model-el-sync/internals/types"
)

// UpdateOption adjusts one Update or Delete call.
type UpdateOption func(*updateOptions)

type updateOptions struct {
	fromSignal bool
	bulk       types.BulkOptions
}

// FromSignal marks the update as signal-triggered so documents declaring
// IgnoreSignals are skipped.
func FromSignal() UpdateOption {
	return func(o *updateOptions) { o.fromSignal = true }
}

// WithRefresh sets the refresh behavior of every bulk call explicitly,
// overriding the process-wide auto-refresh default.
func WithRefresh(refresh bool) UpdateOption {
	return func(o *updateOptions) { o.bulk.Refresh = &refresh }
}

// WithPipeline routes the bulk calls through an ingest pipeline.
func WithPipeline(pipeline string) UpdateOption {
	return func(o *updateOptions) { o.bulk.Pipeline = pipeline }
}

// connectionGroups batches actions per destination connection. Connections
// keep their discovery order so dispatch is deterministic for a run, and
// actions appended to one connection keep the order their documents were
// visited in: primary-model actions before related-model cascades.
type connectionGroups struct {
	order   []types.Connection
	actions map[types.Connection][]types.Action
}

func newConnectionGroups() *connectionGroups {
	return &connectionGroups{actions: make(map[types.Connection][]types.Action)}
}

func (g *connectionGroups) add(conn types.Connection, actions []types.Action) {
	if len(actions) == 0 {
		return
	}
	if _, known := g.actions[conn]; !known {
		g.order = append(g.order, conn)
	}
	g.actions[conn] = append(g.actions[conn], actions...)
}

// Update recomputes and dispatches every document affected by a change to
// instance. Documents of the instance's own model receive the requested
// action. Documents reached through a related-model edge re-derive their
// primary instances via the declared lookup and are always rebuilt with
// an index action, even when the triggering action is a delete.
//
// One bulk call is issued per distinct connection holding actions;
// connections without actions are not called. Dispatch is fail-fast: an
// error from one connection aborts the calls to subsequent connections
// and propagates, so callers must treat partial dispatch as a possible
// outcome.
func (r *Registry) Update(ctx context.Context, instance types.Instance, action types.ActionType, opts ...UpdateOption) error {
	options := &updateOptions{}
	for _, opt := range opts {
		opt(options)
	}

	model := instance.ModelName()
	groups := newConnectionGroups()

	for _, doc := range r.Documents(model) {
		if options.fromSignal && doc.IgnoreSignals() {
			continue
		}
		actions, err := doc.ComputeActions(ctx, []types.Instance{instance}, action)
		if err != nil {
			return fmt.Errorf("compute %s actions for %s: %w", action, model, err)
		}
		groups.add(doc.Connection(), actions)
	}

	for _, primary := range r.RelatedModels(model) {
		for _, doc := range r.Documents(primary) {
			if options.fromSignal && doc.IgnoreSignals() {
				continue
			}
			lookup := relatedLookup(doc, model)
			if lookup == nil {
				continue
			}
			instances, err := lookup(ctx, instance)
			if err != nil {
				return fmt.Errorf("resolve %s instances from %s: %w", primary, model, err)
			}
			if len(instances) == 0 {
				continue
			}
			actions, err := doc.ComputeActions(ctx, instances, types.ActionIndex)
			if err != nil {
				return fmt.Errorf("compute index actions for %s: %w", primary, err)
			}
			groups.add(doc.Connection(), actions)
		}
	}

	bulk := options.bulk
	if bulk.Refresh == nil && r.config.AutoRefresh {
		refresh := true
		bulk.Refresh = &refresh
	}

	for _, conn := range groups.order {
		if err := conn.Bulk(ctx, groups.actions[conn], bulk); err != nil {
			return fmt.Errorf("bulk dispatch for %s: %w", model, err)
		}
	}
	return nil
}

// Delete removes the documents mirroring instance from their indices.
// Related-model cascades still re-index their primaries.
func (r *Registry) Delete(ctx context.Context, instance types.Instance, opts ...UpdateOption) error {
	return r.Update(ctx, instance, types.ActionDelete, opts...)
}

// relatedLookup returns the lookup doc declared for related, nil when doc
// does not depend on it.
func relatedLookup(doc types.Document, related string) func(context.Context, types.Instance) ([]types.Instance, error) {
	for _, rel := range doc.RelatedModels() {
		if rel.Model == related {
			return rel.Lookup
		}
	}
	return nil
}
