package internals

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/sync-labs/model-el-sync/internals/types"
)

// SignalProcessor bridges a persistence-layer change feed to the
// registry. It holds no business logic: every event becomes one Update
// call, gated once per event by the process-wide autosync flag.
type SignalProcessor struct {
	registry *Registry
	feed     types.ChangeFeed
	config   *Config
	logger   zerolog.Logger

	detach func()
}

func NewSignalProcessor(registry *Registry, feed types.ChangeFeed, config *Config) *SignalProcessor {
	log := zerolog.New(os.Stdout).
		With().Caller().Stack().Timestamp().
		Str("service", "signals").
		Logger()
	return &SignalProcessor{registry: registry, feed: feed, config: config, logger: log}
}

// Setup attaches the processor to its feed. Calling Setup again without a
// Teardown keeps the existing single subscription.
func (p *SignalProcessor) Setup() {
	if p.detach != nil {
		return
	}
	p.detach = p.feed.Subscribe(p.handle)
}

// Teardown releases the subscription; safe to call repeatedly.
func (p *SignalProcessor) Teardown() {
	if p.detach == nil {
		return
	}
	p.detach()
	p.detach = nil
}

func (p *SignalProcessor) handle(instance types.Instance, action types.ActionType) {
	if !p.config.AutoSync {
		return
	}
	err := p.registry.Update(context.Background(), instance, action, FromSignal())
	if err != nil {
		p.logger.Error().Err(err).
			Str("model", instance.ModelName()).
			Str("reference", instance.Reference()).
			Msg("Cannot propagate change event")
	}
}
