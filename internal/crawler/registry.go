package crawler

import (
	"fmt"

	"github.com/timmy/leadscout/internal/domain"
)

// Registry resolves the Source and Sink implementation for a platform.
// Dispatch is by registered platform key, never by type inspection.
type Registry struct {
	sources map[domain.Platform]Source
	sinks   map[domain.Platform]Sink
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[domain.Platform]Source),
		sinks:   make(map[domain.Platform]Sink),
	}
}

// RegisterSource adds a crawl source for its platform.
func (r *Registry) RegisterSource(s Source) {
	r.sources[s.Platform()] = s
}

// RegisterSink adds a reply sink for its platform.
func (r *Registry) RegisterSink(s Sink) {
	r.sinks[s.Platform()] = s
}

// Source returns the crawl source for a platform.
func (r *Registry) Source(platform domain.Platform) (Source, error) {
	s, ok := r.sources[platform]
	if !ok {
		return nil, fmt.Errorf("no crawl source registered for platform %q", platform)
	}
	return s, nil
}

// Sink returns the reply sink for a platform.
func (r *Registry) Sink(platform domain.Platform) (Sink, error) {
	s, ok := r.sinks[platform]
	if !ok {
		return nil, fmt.Errorf("no reply sink registered for platform %q", platform)
	}
	return s, nil
}

// Platforms returns all platforms with a registered source.
func (r *Registry) Platforms() []domain.Platform {
	out := make([]domain.Platform, 0, len(r.sources))
	for p := range r.sources {
		out = append(out, p)
	}
	return out
}
