package internals

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sync-labs/model-el-sync/internals/types"
)

// fakeFetcher serves canned rows: records[table][ref] = row and
// related["table/fk/ref"] = primary refs. A non-nil streamErr is
// delivered after the rows, as a failed stream would deliver it.
type fakeFetcher struct {
	records   map[string]map[string]map[string]any
	related   map[string][]string
	err       error
	streamErr error
}

func (f *fakeFetcher) Records(_ context.Context, table, _ string, refs []string) (map[string]map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	found := make(map[string]map[string]any)
	for _, ref := range refs {
		if row, ok := f.records[table][ref]; ok {
			found[ref] = row
		}
	}
	return found, nil
}

func (f *fakeFetcher) AllRecords(_ context.Context, table, _ string) (<-chan types.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan types.Record, len(f.records[table])+1)
	for ref, row := range f.records[table] {
		out <- types.Record{Reference: ref, Data: row}
	}
	if f.streamErr != nil {
		out <- types.Record{Err: f.streamErr}
	}
	close(out)
	return out, nil
}

func (f *fakeFetcher) RelatedRefs(_ context.Context, table, _, foreignKey, ref string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.related[fmt.Sprintf("%s/%s/%s", table, foreignKey, ref)], nil
}

func postsMapping() *MappingConfig {
	return &MappingConfig{
		Index:          "posts",
		Table:          "posts",
		ReferenceField: "uuid",
		ChunkSize:      2,
		Relations: []*RelationConfig{
			{Table: "authors", ForeignKey: "author_id"},
		},
	}
}

func TestNewTableDocument(t *testing.T) {
	conn := &fakeConnection{}
	doc, index, err := NewTableDocument(postsMapping(), conn, &fakeFetcher{})
	require.NoError(t, err)

	assert.Equal(t, "posts", index.Name)
	assert.Equal(t, "posts", doc.Model())
	assert.Equal(t, conn, doc.Connection())
	assert.Equal(t, 2, doc.Pagination())
	require.Len(t, doc.RelatedModels(), 1)
	assert.Equal(t, "authors", doc.RelatedModels()[0].Model)
	assert.NotNil(t, doc.RelatedModels()[0].Lookup)
}

func TestNewTableDocumentDefaults(t *testing.T) {
	mapping := &MappingConfig{Index: "posts", Table: "posts"}
	doc, _, err := NewTableDocument(mapping, &fakeConnection{}, &fakeFetcher{})
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, doc.Pagination())
	assert.Equal(t, "id", doc.refField)
}

func TestNewTableDocumentValidation(t *testing.T) {
	_, _, err := NewTableDocument(&MappingConfig{Table: "posts"}, &fakeConnection{}, &fakeFetcher{})
	assert.ErrorContains(t, err, "without index name")

	_, _, err = NewTableDocument(&MappingConfig{Index: "posts"}, &fakeConnection{}, &fakeFetcher{})
	assert.ErrorContains(t, err, "without table")

	broken := postsMapping()
	broken.Relations = []*RelationConfig{{Table: "authors"}}
	_, _, err = NewTableDocument(broken, &fakeConnection{}, &fakeFetcher{})
	assert.ErrorContains(t, err, "foreign_key")
}

func TestComputeActionsFetchesMissingSources(t *testing.T) {
	fetcher := &fakeFetcher{
		records: map[string]map[string]map[string]any{
			"posts": {"42": {"title": "hello"}},
		},
	}
	doc, _, err := NewTableDocument(postsMapping(), &fakeConnection{}, fetcher)
	require.NoError(t, err)

	actions, err := doc.ComputeActions(context.Background(), []types.Instance{instanceOf("posts", "42")}, types.ActionIndex)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, types.ActionIndex, actions[0].Op)
	assert.Equal(t, "posts", actions[0].Index)
	assert.Equal(t, "42", actions[0].ID)
	assert.Equal(t, map[string]any{"title": "hello"}, actions[0].Source)
}

func TestComputeActionsPrefersCapturedData(t *testing.T) {
	doc, _, err := NewTableDocument(postsMapping(), &fakeConnection{}, &fakeFetcher{})
	require.NoError(t, err)

	captured := types.RawInstance{Model: "posts", Ref: "42", Data: map[string]any{"title": "cached"}}
	actions, err := doc.ComputeActions(context.Background(), []types.Instance{captured}, types.ActionIndex)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "cached"}, actions[0].Source)
}

func TestComputeActionsMissingRecord(t *testing.T) {
	doc, _, err := NewTableDocument(postsMapping(), &fakeConnection{}, &fakeFetcher{})
	require.NoError(t, err)

	_, err = doc.ComputeActions(context.Background(), []types.Instance{instanceOf("posts", "42")}, types.ActionIndex)
	assert.ErrorContains(t, err, "not found")
}

func TestComputeActionsDelete(t *testing.T) {
	// No fetch happens for deletes: the fetcher knows no rows at all.
	doc, _, err := NewTableDocument(postsMapping(), &fakeConnection{}, &fakeFetcher{})
	require.NoError(t, err)

	actions, err := doc.ComputeActions(context.Background(), []types.Instance{instanceOf("posts", "42")}, types.ActionDelete)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, types.ActionDelete, actions[0].Op)
	assert.Nil(t, actions[0].Source)
}

func TestRelatedLookupResolvesPrimaries(t *testing.T) {
	fetcher := &fakeFetcher{
		related: map[string][]string{"posts/author_id/a7": {"42", "43"}},
	}
	doc, _, err := NewTableDocument(postsMapping(), &fakeConnection{}, fetcher)
	require.NoError(t, err)

	lookup := doc.RelatedModels()[0].Lookup
	instances, err := lookup(context.Background(), instanceOf("authors", "a7"))
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, "posts", instances[0].ModelName())
	assert.Equal(t, "42", instances[0].Reference())
	assert.Equal(t, "43", instances[1].Reference())
}

func TestEachBatchChunksRecords(t *testing.T) {
	rows := map[string]map[string]any{}
	for i := 0; i < 5; i++ {
		ref := fmt.Sprintf("%d", i)
		rows[ref] = map[string]any{"n": i}
	}
	fetcher := &fakeFetcher{records: map[string]map[string]map[string]any{"posts": rows}}
	doc, _, err := NewTableDocument(postsMapping(), &fakeConnection{}, fetcher)
	require.NoError(t, err)

	var sizes []int
	var total int
	err = doc.EachBatch(context.Background(), 2, func(batch []types.Instance) error {
		sizes = append(sizes, len(batch))
		total += len(batch)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestEachBatchReportsStreamFailure(t *testing.T) {
	fetcher := &fakeFetcher{
		records: map[string]map[string]map[string]any{
			"posts": {"1": {"n": 1}, "2": {"n": 2}, "3": {"n": 3}},
		},
		streamErr: fmt.Errorf("connection reset"),
	}
	doc, _, err := NewTableDocument(postsMapping(), &fakeConnection{}, fetcher)
	require.NoError(t, err)

	var delivered int
	err = doc.EachBatch(context.Background(), 2, func(batch []types.Instance) error {
		delivered += len(batch)
		return nil
	})
	require.ErrorContains(t, err, "connection reset")
	assert.Less(t, delivered, 3)
}
