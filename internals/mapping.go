package internals

import (
	"context"
	"fmt"

	"github.com/sync-labs/model-el-sync/internals/types"
)

const DefaultChunkSize = 500

// TableDocument is the document compiled from one config-declared
// mapping: the model is a database table, the document id is the
// reference column and the source is the fetched row. One TableDocument
// targets exactly one connection; a mapping with several outputs compiles
// into one document per output.
type TableDocument struct {
	types.BaseDocument

	index    *types.Index
	refField string
	fetcher  types.Fetcher
}

// NewTableDocument builds the document for one (mapping, connection)
// pair. The related lookups are bound here, once, against the fetcher.
func NewTableDocument(mapping *MappingConfig, conn types.Connection, fetcher types.Fetcher) (*TableDocument, *types.Index, error) {
	if mapping.Index == "" {
		return nil, nil, fmt.Errorf("mapping without index name")
	}
	if mapping.Table == "" {
		return nil, nil, fmt.Errorf("mapping %s without table", mapping.Index)
	}

	refField := mapping.ReferenceField
	if refField == "" {
		refField = "id"
	}
	chunkSize := mapping.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	index := &types.Index{
		Name:     mapping.Index,
		Settings: mapping.Settings,
		Mappings: mapping.EsMappings,
	}

	doc := &TableDocument{
		BaseDocument: types.BaseDocument{
			ModelName:   mapping.Table,
			Conn:        conn,
			SkipSignals: mapping.IgnoreSignals,
			Refresh:     mapping.AutoRefresh,
			BatchSize:   chunkSize,
		},
		index:    index,
		refField: refField,
		fetcher:  fetcher,
	}

	for _, relation := range mapping.Relations {
		if relation.Table == "" || relation.ForeignKey == "" {
			return nil, nil, fmt.Errorf("mapping %s declares a relation without table or foreign_key", mapping.Index)
		}
		doc.Related = append(doc.Related, types.Related{
			Model:  relation.Table,
			Lookup: doc.relatedLookup(relation),
		})
	}
	return doc, index, nil
}

func (d *TableDocument) Index() *types.Index { return d.index }

// ComputeActions builds one bulk action per instance. Index and update
// actions carry the row as source, delete actions carry none.
func (d *TableDocument) ComputeActions(ctx context.Context, instances []types.Instance, action types.ActionType) ([]types.Action, error) {
	var actions []types.Action
	for _, instance := range instances {
		act := types.Action{
			Op:      action,
			Index:   d.index.Name,
			DocType: d.ModelName,
			ID:      instance.Reference(),
		}
		if action != types.ActionDelete {
			source, err := d.source(ctx, instance)
			if err != nil {
				return nil, err
			}
			act.Source = source
		}
		actions = append(actions, act)
	}
	return actions, nil
}

// source prefers the row data the change feed already captured and falls
// back to fetching the record.
func (d *TableDocument) source(ctx context.Context, instance types.Instance) (map[string]any, error) {
	if raw, ok := instance.(types.RawInstance); ok && raw.Data != nil {
		return raw.Data, nil
	}
	ref := instance.Reference()
	records, err := d.fetcher.Records(ctx, d.ModelName, d.refField, []string{ref})
	if err != nil {
		return nil, fmt.Errorf("fetch record %s/%s: %w", d.ModelName, ref, err)
	}
	record, ok := records[ref]
	if !ok {
		return nil, fmt.Errorf("record %s/%s not found", d.ModelName, ref)
	}
	return record, nil
}

// relatedLookup resolves a changed related row to the mapped rows whose
// foreign key points at it.
func (d *TableDocument) relatedLookup(relation *RelationConfig) func(context.Context, types.Instance) ([]types.Instance, error) {
	return func(ctx context.Context, instance types.Instance) ([]types.Instance, error) {
		refs, err := d.fetcher.RelatedRefs(ctx, d.ModelName, d.refField, relation.ForeignKey, instance.Reference())
		if err != nil {
			return nil, err
		}
		var instances []types.Instance
		for _, ref := range refs {
			instances = append(instances, types.RawInstance{Model: d.ModelName, Ref: ref})
		}
		return instances, nil
	}
}

// EachBatch streams every row of the mapped table in batches of size,
// feeding full reindex runs.
func (d *TableDocument) EachBatch(ctx context.Context, size int, fn func(batch []types.Instance) error) error {
	if size <= 0 {
		size = DefaultChunkSize
	}
	records, err := d.fetcher.AllRecords(ctx, d.ModelName, d.refField)
	if err != nil {
		return fmt.Errorf("stream records for %s: %w", d.ModelName, err)
	}

	batch := make([]types.Instance, 0, size)
	for record := range records {
		if record.Err != nil {
			return fmt.Errorf("stream records for %s: %w", d.ModelName, record.Err)
		}
		batch = append(batch, types.RawInstance{Model: d.ModelName, Ref: record.Reference, Data: record.Data})
		if len(batch) < size {
			continue
		}
		if err := fn(batch); err != nil {
			return err
		}
		batch = make([]types.Instance, 0, size)
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
