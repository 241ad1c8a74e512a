package subscribers

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sync-labs/model-el-sync/internals/types"
)

// Subscriber is the embedded base for change feeds: a service logger plus
// the handler registry behind Subscribe/Dispatch.
type Subscriber struct {
	Logger zerolog.Logger

	mu       sync.Mutex
	nextID   int
	handlers map[int]types.ChangeFunc
}

// Global method

func (s *Subscriber) InternalInit(name string) {
	s.Logger = zerolog.New(os.Stdout).
		With().Caller().Stack().Timestamp().
		Str("service", "subscriber").Str("serviceName", name).
		Logger()
}

// Subscribe registers fn. The returned detach removes exactly this
// registration; calling it more than once is harmless.
func (s *Subscriber) Subscribe(fn types.ChangeFunc) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = make(map[int]types.ChangeFunc)
	}
	id := s.nextID
	s.nextID++
	s.handlers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	}
}

// Dispatch delivers one change event, synchronously, to every attached
// handler.
func (s *Subscriber) Dispatch(instance types.Instance, action types.ActionType) {
	s.mu.Lock()
	fns := make([]types.ChangeFunc, 0, len(s.handlers))
	for _, fn := range s.handlers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(instance, action)
	}
}

func (s *Subscriber) InternalTerminate() {}
