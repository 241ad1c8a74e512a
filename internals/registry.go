package internals

import (
	"fmt"

	"github.com/sync-labs/model-el-sync/internals/types"
	"github.com/sync-labs/model-el-sync/internals/utils"
)

// Registry maps data models to their documents, groups documents under
// named indices and tracks which primary models must be refreshed when a
// related model changes. Pure in-memory bookkeeping: it is populated at
// startup, before traffic, and read-only afterwards. Late registration is
// possible but callers must serialize it themselves, the registry takes
// no locks.
type Registry struct {
	config *Config

	models     map[string]*utils.OrderedSet[types.Document]
	modelOrder []string

	indices    map[string]*indexEntry
	indexOrder []string

	related map[string]*utils.OrderedSet[string]
}

// indexEntry keeps the first Index object registered under a name
// together with the documents grouped into it. Grouping is by name, never
// by object identity.
type indexEntry struct {
	index *types.Index
	docs  *utils.OrderedSet[types.Document]
}

// IndexDocuments is one registry entry snapshot: an index and its
// documents in registration order.
type IndexDocuments struct {
	Index     *types.Index
	Documents []types.Document
}

func NewRegistry(config *Config) *Registry {
	return &Registry{
		config:  config,
		models:  make(map[string]*utils.OrderedSet[types.Document]),
		indices: make(map[string]*indexEntry),
		related: make(map[string]*utils.OrderedSet[string]),
	}
}

// Register adds doc under its model, records the reverse edge for every
// declared related model and groups doc under index. Registering the same
// (index, document) pair again is a no-op, set semantics absorb the
// duplicate. Misconfigured documents are rejected here, not at update
// time.
func (r *Registry) Register(index *types.Index, doc types.Document) error {
	if err := validateDocument(doc); err != nil {
		return err
	}
	if index == nil || index.Name == "" {
		return fmt.Errorf("document for model %s registered without an index name", doc.Model())
	}

	model := doc.Model()
	set, ok := r.models[model]
	if !ok {
		set = &utils.OrderedSet[types.Document]{}
		r.models[model] = set
		r.modelOrder = append(r.modelOrder, model)
	}
	set.Add(doc)

	for _, rel := range doc.RelatedModels() {
		primaries, ok := r.related[rel.Model]
		if !ok {
			primaries = &utils.OrderedSet[string]{}
			r.related[rel.Model] = primaries
		}
		primaries.Add(model)
	}

	entry, ok := r.indices[index.Name]
	if !ok {
		entry = &indexEntry{index: index, docs: &utils.OrderedSet[types.Document]{}}
		r.indices[index.Name] = entry
		r.indexOrder = append(r.indexOrder, index.Name)
	}
	entry.docs.Add(doc)
	return nil
}

func validateDocument(doc types.Document) error {
	if doc == nil {
		return fmt.Errorf("cannot register a nil document")
	}
	if doc.Model() == "" {
		return fmt.Errorf("document declares no model")
	}
	if doc.Connection() == nil {
		return fmt.Errorf("document for model %s has no connection", doc.Model())
	}
	for _, rel := range doc.RelatedModels() {
		if rel.Model == "" {
			return fmt.Errorf("document for model %s declares an unnamed related model", doc.Model())
		}
		if rel.Lookup == nil {
			return fmt.Errorf("document for model %s declares related model %s without a lookup", doc.Model(), rel.Model)
		}
	}
	return nil
}

// Documents returns every registered document exactly once, or, when
// models are given, the union of documents for those models. Unregistered
// models are skipped silently.
func (r *Registry) Documents(models ...string) []types.Document {
	collected := &utils.OrderedSet[types.Document]{}
	if len(models) == 0 {
		for _, name := range r.indexOrder {
			for _, doc := range r.indices[name].docs.Items() {
				collected.Add(doc)
			}
		}
		return collected.Items()
	}
	for _, model := range models {
		set, ok := r.models[model]
		if !ok {
			continue
		}
		for _, doc := range set.Items() {
			collected.Add(doc)
		}
	}
	return collected.Items()
}

// Models returns every primary model with at least one document.
func (r *Registry) Models() []string {
	models := make([]string, len(r.modelOrder))
	copy(models, r.modelOrder)
	return models
}

// Indices returns every distinct registered index, or only the indices
// containing at least one document whose primary model is listed.
func (r *Registry) Indices(models ...string) []*types.Index {
	var indices []*types.Index
	for _, name := range r.indexOrder {
		entry := r.indices[name]
		if len(models) == 0 {
			indices = append(indices, entry.index)
			continue
		}
		for _, doc := range entry.docs.Items() {
			if containsModel(models, doc.Model()) {
				indices = append(indices, entry.index)
				break
			}
		}
	}
	return indices
}

// RelatedModels returns the primary models to refresh when model changes.
// Unknown models yield an empty result, never an error.
func (r *Registry) RelatedModels(model string) []string {
	primaries, ok := r.related[model]
	if !ok {
		return nil
	}
	return primaries.Items()
}

// WatchedModels returns every model the registry cares about: primary
// models plus the related models feeding them. Change-feed sources use it
// to know which tables to observe.
func (r *Registry) WatchedModels() []string {
	watched := &utils.OrderedSet[string]{}
	for _, model := range r.modelOrder {
		watched.Add(model)
	}
	for _, name := range r.indexOrder {
		for _, doc := range r.indices[name].docs.Items() {
			for _, rel := range doc.RelatedModels() {
				watched.Add(rel.Model)
			}
		}
	}
	return watched.Items()
}

// Entries returns each registered index with its documents, in
// registration order.
func (r *Registry) Entries() []IndexDocuments {
	entries := make([]IndexDocuments, 0, len(r.indexOrder))
	for _, name := range r.indexOrder {
		entry := r.indices[name]
		entries = append(entries, IndexDocuments{
			Index:     entry.index,
			Documents: entry.docs.Items(),
		})
	}
	return entries
}

func containsModel(models []string, model string) bool {
	for _, candidate := range models {
		if candidate == model {
			return true
		}
	}
	return false
}
