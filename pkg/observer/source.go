package observer

import (
	"context"
	"sync"

	"github.com/pagelens/pagelens/pkg/defaults"
	"github.com/pagelens/pagelens/pkg/snapshot"
)

// Kind classifies an observation.
type Kind string

const (
	// KindResource reports a URL the page referenced or requested.
	KindResource Kind = "resource"
	// KindTiming carries size and load time for a URL.
	KindTiming Kind = "timing"
	// KindDocument carries the page HTML.
	KindDocument Kind = "document"
	// KindReady marks the page as loaded and carries navigation timing.
	KindReady Kind = "ready"
)

// Observation is one signal from the page. Times are milliseconds.
type Observation struct {
	Kind             Kind
	URL              string
	ResourceType     string
	Size             int64
	LoadTime         float64
	Metadata         map[string]string
	HTML             string
	Environment      *snapshot.Environment
	DOMContentLoaded float64
	CSP              string
}

// Source produces observations until its channel is closed.
type Source interface {
	Events() <-chan Observation
}

// ChannelSource is a Source fed by Emit. It is used for URL lists and in
// tests.
type ChannelSource struct {
	mu     sync.RWMutex
	ch     chan Observation
	done   chan struct{}
	once   sync.Once
	closed bool
}

// NewChannelSource creates a source with the given buffer size.
func NewChannelSource(buffer int) *ChannelSource {
	if buffer <= 0 {
		buffer = defaults.ChannelSmall
	}
	return &ChannelSource{
		ch:   make(chan Observation, buffer),
		done: make(chan struct{}),
	}
}

// Events implements Source.
func (s *ChannelSource) Events() <-chan Observation {
	return s.ch
}

// Emit sends o, blocking while the buffer is full. It returns false once
// the source is closed; a send still blocked when Close is called is
// dropped.
func (s *ChannelSource) Emit(o Observation) bool {
	return s.EmitContext(context.Background(), o)
}

// EmitContext is like Emit but also gives up when ctx is done.
func (s *ChannelSource) EmitContext(ctx context.Context, o Observation) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- o:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Close ends the stream and releases blocked senders. Events already
// buffered stay readable. Safe to call more than once.
func (s *ChannelSource) Close() {
	s.once.Do(func() { close(s.done) })
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// URLSource returns a closed source replaying urls as resource
// observations.
func URLSource(urls ...string) *ChannelSource {
	s := NewChannelSource(len(urls) + 1)
	for _, u := range urls {
		s.Emit(Observation{Kind: KindResource, URL: u})
	}
	s.Close()
	return s
}
