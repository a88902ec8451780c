package engine

import (
	"sort"
	"sync"
)

// Engine is what the dispatcher needs from the analysis engine.
type Engine interface {
	// IsSymbolic reports whether any byte of [addr, addr+size) is symbolic.
	IsSymbolic(addr, size uint64) bool

	// Invoke sends msg on channel and blocks until the engine has updated
	// it in place.
	Invoke(channel string, msg []byte) error

	// Message emits a diagnostic.
	Message(text string)

	// PrintExpression emits a tagged value.
	PrintExpression(tag string, value uint64)
}

// ResultProber is implemented by engines that can say whether the result
// they wrote into a handled message is symbolic.
type ResultProber interface {
	ResultSymbolic(channel string, msg []byte) bool
}

// Handler serves one channel. Handle rewrites msg in place.
type Handler interface {
	Handle(msg []byte) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(msg []byte) error

// Handle implements Handler.
func (f HandlerFunc) Handle(msg []byte) error {
	return f(msg)
}

// Mux routes messages to handlers by channel name.
//
// Thread-safety: Mux is safe for concurrent use.
type Mux struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewMux creates an empty multiplexer.
func NewMux() *Mux {
	return &Mux{handlers: make(map[string]Handler)}
}

// Register binds h to channel, replacing any previous handler.
func (m *Mux) Register(channel string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[channel] = h
}

// Lookup returns the handler for channel.
func (m *Mux) Lookup(channel string) (Handler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handlers[channel]
	return h, ok
}

// Channels lists registered channels, sorted.
func (m *Mux) Channels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.handlers))
	for ch := range m.handlers {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Dispatch hands msg to the channel's handler.
func (m *Mux) Dispatch(channel string, msg []byte) error {
	h, ok := m.Lookup(channel)
	if !ok {
		return &Error{Code: ErrCodeNoHandler, Channel: channel, Message: "no handler registered"}
	}
	return h.Handle(msg)
}
