package categories

import (
	"fmt"

	"sublink/internal/model"
)

// Strategy decides which nodes may serve a rule category's group.
type Strategy interface {
	// Name returns the strategy identifier
	Name() string

	// IsCandidate checks purely static node properties (protocol, UDP
	// capability, TLS, tag). Params come from the category definition.
	IsCandidate(node model.Node, params map[string]interface{}) bool
}

type Factory func() Strategy

var registry = make(map[string]Factory)

func Register(name string, factory Factory) {
	registry[name] = factory
}

func Get(name string) (Strategy, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("strategy '%s' not found", name)
	}
	return factory(), nil
}

// Accepts reports whether the named strategy admits the node. An empty name
// means "standard"; an unknown strategy admits everything.
func Accepts(name string, params map[string]interface{}, node model.Node) bool {
	if name == "" {
		name = "standard"
	}
	s, err := Get(name)
	if err != nil {
		return true
	}
	return s.IsCandidate(node, params)
}
