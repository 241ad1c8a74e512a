package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	elasticsearch8 "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sync-labs/model-el-sync/internals/types"
	"github.com/sync-labs/model-el-sync/internals/utils"
	"github.com/sync-labs/model-el-sync/publishers"
)

// Connection is an Elasticsearch output. One Connection value identifies
// one cluster: the registry groups actions by it and dispatches each
// group as a single bulk round trip.
type Connection struct {
	sync.Mutex
	publishers.Publisher
	client *elasticsearch8.Client
	Prefix string
}

func (c *Connection) Init(config map[string]any) error {
	esConfig := elasticsearch8.Config{}
	var endpoints []string
	if err := utils.ParseMapKey(config, "endpoints", &endpoints); err == nil {
		esConfig.Addresses = endpoints
	}
	_ = utils.ParseMapKey(config, "username", &esConfig.Username)
	_ = utils.ParseMapKey(config, "password", &esConfig.Password)
	_ = utils.ParseMapKey(config, "prefix", &c.Prefix)

	es8, err := elasticsearch8.NewClient(esConfig)
	if err != nil {
		return fmt.Errorf("unable to build elasticsearch client: %w", err)
	}
	if _, err = es8.Info(); err != nil {
		return fmt.Errorf("unable to ping elasticsearch: %w", err)
	}
	c.Logger.Print("Successfully connected to elasticsearch")
	c.client = es8
	return nil
}

// Bulk sends every action in one NDJSON body. Empty action lists make no
// round trip.
func (c *Connection) Bulk(ctx context.Context, actions []types.Action, opts types.BulkOptions) error {
	if len(actions) == 0 {
		return nil
	}
	body, err := buildBody(c.Prefix, actions)
	if err != nil {
		return err
	}

	c.Lock()
	defer c.Unlock()

	reqOpts := []func(*esapi.BulkRequest){c.client.Bulk.WithContext(ctx)}
	if opts.Refresh != nil {
		if *opts.Refresh {
			reqOpts = append(reqOpts, c.client.Bulk.WithRefresh("true"))
		} else {
			reqOpts = append(reqOpts, c.client.Bulk.WithRefresh("false"))
		}
	}
	if opts.Pipeline != "" {
		reqOpts = append(reqOpts, c.client.Bulk.WithPipeline(opts.Pipeline))
	}

	res, err := c.client.Bulk(bytes.NewReader(body), reqOpts...)
	if err != nil {
		return fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.New(res.String())
	}
	return nil
}

// buildBody renders the actions as an NDJSON bulk body: one metadata line
// per action, followed by the source line except for deletes. Update
// sources are wrapped in the partial-document envelope.
func buildBody(prefix string, actions []types.Action) ([]byte, error) {
	var lines [][]byte
	for _, action := range actions {
		meta := map[string]map[string]any{
			string(action.Op): {"_index": prefix + action.Index, "_id": action.ID},
		}
		metaLine, err := json.Marshal(meta)
		if err != nil {
			return nil, err
		}
		lines = append(lines, metaLine)

		if action.Op == types.ActionDelete {
			continue
		}
		source := any(action.Source)
		if action.Op == types.ActionUpdate {
			source = map[string]any{"doc": action.Source}
		}
		sourceLine, err := json.Marshal(source)
		if err != nil {
			return nil, err
		}
		lines = append(lines, sourceLine)
	}
	return append(bytes.Join(lines, []byte("\n")), '\n'), nil
}

func (c *Connection) Terminate() {}

// EnsureIndices creates every index that declares settings or mappings
// and does not exist yet.
func (c *Connection) EnsureIndices(ctx context.Context, indices []*types.Index) error {
	for _, index := range indices {
		if len(index.Settings) == 0 && len(index.Mappings) == 0 {
			continue
		}
		name := c.Prefix + index.Name
		res, err := c.client.Indices.Exists([]string{name}, c.client.Indices.Exists.WithContext(ctx))
		if err != nil {
			return err
		}
		res.Body.Close()
		if !res.IsError() {
			continue
		}

		request := map[string]any{}
		if len(index.Settings) > 0 {
			request["settings"] = index.Settings
		}
		if len(index.Mappings) > 0 {
			request["mappings"] = map[string]any{"properties": index.Mappings}
		}
		body, err := json.Marshal(request)
		if err != nil {
			return err
		}
		createRes, err := c.client.Indices.Create(name,
			c.client.Indices.Create.WithContext(ctx),
			c.client.Indices.Create.WithBody(bytes.NewReader(body)),
		)
		if err != nil {
			return err
		}
		defer createRes.Body.Close()
		if createRes.IsError() {
			return errors.New(createRes.String())
		}
	}
	return nil
}
