package internals

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/sync-labs/model-el-sync/internals/types"
	"github.com/sync-labs/model-el-sync/internals/utils"
	"github.com/sync-labs/model-el-sync/publishers/elastic"
	"github.com/sync-labs/model-el-sync/subscribers/postgresql"
)

// Engine wires the process config into a running sync pipeline: output
// connections, change-feed sources, the registry populated from the
// config-declared mappings, and one signal processor per source.
type Engine struct {
	config     *Config
	registry   *Registry
	sources    map[string]types.Source
	outputs    map[string]types.Output
	processors []*SignalProcessor
	logger     zerolog.Logger
}

func (e *Engine) Init(config *Config) error {
	log := zerolog.New(os.Stdout).
		With().Caller().Stack().Timestamp().
		Str("service", "engine").
		Logger()
	e.logger = log
	e.config = config
	e.registry = NewRegistry(config)

	if err := e.loadOutputs(); err != nil {
		return err
	}
	if err := e.loadSources(); err != nil {
		return err
	}
	if err := e.loadMappings(); err != nil {
		return err
	}
	for _, source := range e.sources {
		e.processors = append(e.processors, NewSignalProcessor(e.registry, source, config))
	}
	return nil
}

func (e *Engine) Registry() *Registry {
	return e.registry
}

// Start bootstraps the declared indices, installs the change listeners
// and blocks consuming change events until ctx is canceled.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.ensureIndices(ctx); err != nil {
		return err
	}
	for name, source := range e.sources {
		if err := source.PrepareListen(ctx, e.watchedTables()); err != nil {
			return fmt.Errorf("prepare listen on %s: %w", name, err)
		}
	}
	for _, processor := range e.processors {
		processor.Setup()
	}

	errs := make(chan error, len(e.sources))
	for name, source := range e.sources {
		name, source := name, source
		go func() {
			if err := source.Listen(ctx); err != nil {
				errs <- fmt.Errorf("listen on %s: %w", name, err)
				return
			}
			errs <- nil
		}()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errs:
		return err
	}
}

// FullReindex streams every record of every reindexable document in
// Pagination-sized batches through the regular bulk path.
func (e *Engine) FullReindex(ctx context.Context) error {
	if err := e.ensureIndices(ctx); err != nil {
		return err
	}
	for _, doc := range e.registry.Documents() {
		reindexable, ok := doc.(types.Reindexable)
		if !ok {
			e.logger.Warn().Str("model", doc.Model()).Msg("Document cannot enumerate instances, skipping")
			continue
		}
		e.logger.Info().Str("model", doc.Model()).Msg("Reindex all documents")

		opts := types.BulkOptions{}
		if doc.AutoRefresh() {
			refresh := true
			opts.Refresh = &refresh
		}
		err := reindexable.EachBatch(ctx, doc.Pagination(), func(batch []types.Instance) error {
			actions, err := doc.ComputeActions(ctx, batch, types.ActionIndex)
			if err != nil {
				return err
			}
			return doc.Connection().Bulk(ctx, actions, opts)
		})
		if err != nil {
			return fmt.Errorf("reindex %s: %w", doc.Model(), err)
		}
	}
	return nil
}

func (e *Engine) Terminate() {
	for _, processor := range e.processors {
		processor.Teardown()
	}
	for _, source := range e.sources {
		source.Terminate()
	}
	for _, output := range e.outputs {
		output.Terminate()
	}
}

// -----------------INTERNALS----------------------------------------------

func (e *Engine) loadOutputs() error {
	e.outputs = make(map[string]types.Output)
	for name, config := range e.config.Out {
		var output types.Output
		switch config["driver"] {
		case "elastic":
			output = &elastic.Connection{}
		default:
			return fmt.Errorf("invalid out driver: %s", config["driver"])
		}
		output.InternalInit(name)
		outputConfig := withoutDriver(config)
		if err := output.Init(outputConfig); err != nil {
			return fmt.Errorf("init output %s: %w", name, err)
		}
		e.outputs[name] = output
	}
	return nil
}

func (e *Engine) loadSources() error {
	e.sources = make(map[string]types.Source)
	for name, config := range e.config.In {
		var source types.Source
		switch config["driver"] {
		case "postgresql":
			source = &postgresql.Subscriber{}
		default:
			return fmt.Errorf("invalid in driver: %s", config["driver"])
		}
		source.InternalInit(name)
		sourceConfig := withoutDriver(config)
		if err := source.Init(sourceConfig); err != nil {
			return fmt.Errorf("init source %s: %w", name, err)
		}
		e.sources[name] = source
	}
	return nil
}

// loadMappings compiles each config-declared mapping into table documents
// and registers them. A mapping with several outputs yields one document
// per output connection, all grouped under the same index name.
func (e *Engine) loadMappings() error {
	for _, mapping := range e.config.Mappings {
		fetcher, err := e.fetcherFor(mapping)
		if err != nil {
			return err
		}

		outputNames := mapping.Out
		if len(outputNames) == 0 {
			outputNames = e.config.DefaultOut
		}
		if len(outputNames) == 0 {
			return fmt.Errorf("mapping %s has no output and no default_out is set", mapping.Index)
		}
		for _, name := range outputNames {
			output, ok := e.outputs[name]
			if !ok {
				return fmt.Errorf("invalid output name: %s", name)
			}
			doc, index, err := NewTableDocument(mapping, output, fetcher)
			if err != nil {
				return err
			}
			if err := e.registry.Register(index, doc); err != nil {
				return fmt.Errorf("register mapping %s: %w", mapping.Index, err)
			}
		}
	}
	return nil
}

func (e *Engine) fetcherFor(mapping *MappingConfig) (types.Fetcher, error) {
	sourceName := mapping.In
	if sourceName == "" {
		sourceName = e.config.DefaultIn
	}
	source, ok := e.sources[sourceName]
	if !ok {
		return nil, fmt.Errorf("invalid source name: %s", sourceName)
	}
	fetcher, ok := source.(types.Fetcher)
	if !ok {
		return nil, fmt.Errorf("source %s cannot fetch records", sourceName)
	}
	return fetcher, nil
}

// ensureIndices hands each output the indices its documents write to,
// each index once per output.
func (e *Engine) ensureIndices(ctx context.Context) error {
	perOutput := make(map[types.Output]*utils.OrderedSet[*types.Index])
	var outputs []types.Output
	for _, entry := range e.registry.Entries() {
		for _, doc := range entry.Documents {
			output, ok := doc.Connection().(types.Output)
			if !ok {
				continue
			}
			indices, known := perOutput[output]
			if !known {
				indices = &utils.OrderedSet[*types.Index]{}
				perOutput[output] = indices
				outputs = append(outputs, output)
			}
			indices.Add(entry.Index)
		}
	}
	for _, output := range outputs {
		if err := output.EnsureIndices(ctx, perOutput[output].Items()); err != nil {
			return fmt.Errorf("ensure indices: %w", err)
		}
	}
	return nil
}

// watchedTables lists every table to observe: mapped tables with their
// reference columns plus the related tables feeding them.
func (e *Engine) watchedTables() []types.WatchedTable {
	seen := &utils.OrderedSet[types.WatchedTable]{}
	for _, mapping := range e.config.Mappings {
		refField := mapping.ReferenceField
		if refField == "" {
			refField = "id"
		}
		seen.Add(types.WatchedTable{Name: mapping.Table, ReferenceField: refField})
		for _, relation := range mapping.Relations {
			relRef := relation.ReferenceField
			if relRef == "" {
				relRef = "id"
			}
			seen.Add(types.WatchedTable{Name: relation.Table, ReferenceField: relRef})
		}
	}
	return seen.Items()
}

func withoutDriver(config map[string]any) map[string]any {
	clean := make(map[string]any, len(config))
	for key, value := range config {
		if key == "driver" {
			continue
		}
		clean[key] = value
	}
	return clean
}
