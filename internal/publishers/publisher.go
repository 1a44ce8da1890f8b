package publishers

import (
	"context"
	"fmt"
	"sort"

	"sublink/internal/model"
)

// TargetLinks is the artifact format holding plain share links.
const TargetLinks = "links"

// Artifact is one built output ready to publish.
type Artifact struct {
	Name        string
	Target      string // singbox, clash, surge, xray or links
	ContentType string
	Data        []byte
	// Nodes feed the links payload; other targets ignore them.
	Nodes []model.Node
}

type Publisher interface {
	Publish(ctx context.Context, artifacts []Artifact, config map[string]interface{}) error
}

type Factory func() Publisher

var registry = make(map[string]Factory)

func Register(name string, factory Factory) {
	registry[name] = factory
}

func Get(name string) (Publisher, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("publisher plugin '%s' not found", name)
	}
	return factory(), nil
}

// Names lists the registered publishers.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
