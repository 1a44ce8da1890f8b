package collectors

import (
	"context"
	"fmt"
	"sort"
)

// Collector produces raw share links (or subscription URLs) from a source.
type Collector interface {
	Collect(ctx context.Context, config map[string]interface{}) ([]string, error)
}

type Factory func() Collector

var registry = make(map[string]Factory)

func Register(name string, factory Factory) {
	registry[name] = factory
}

func Get(name string) (Collector, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("collector plugin '%s' not found", name)
	}
	return factory(), nil
}

// Names lists the registered collectors.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
