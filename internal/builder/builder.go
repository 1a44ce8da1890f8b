package builder

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"sublink/internal/model"
	"sublink/internal/rules"
)

// Target is an output client format.
type Target string

const (
	TargetSingbox Target = "singbox"
	TargetClash   Target = "clash"
	TargetSurge   Target = "surge"
	TargetXray    Target = "xray"
)

// ParseTarget accepts the target names and the short-link prefixes b/c/s/x.
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "singbox", "sing-box", "b":
		return TargetSingbox, nil
	case "clash", "mihomo", "c":
		return TargetClash, nil
	case "surge", "s":
		return TargetSurge, nil
	case "xray", "x":
		return TargetXray, nil
	}
	return "", fmt.Errorf("unknown target %q", s)
}

// ContentType is the HTTP content type of the artifact.
func (t Target) ContentType() string {
	switch t {
	case TargetClash:
		return "text/yaml; charset=utf-8"
	case TargetSurge:
		return "text/plain; charset=utf-8"
	default:
		return "application/json; charset=utf-8"
	}
}

// RegionLookup maps a server address to an ISO country code.
type RegionLookup interface {
	Country(host string) (string, bool)
}

// Request is one build: parsed nodes plus rule selections.
type Request struct {
	Nodes       []model.Node
	Categories  []rules.Category
	CustomRules []rules.CustomRule

	// BaseConfig is a stored partial document used instead of the skeleton.
	BaseConfig map[string]interface{}

	// SubscriptionURL is written into the Surge managed-config header.
	SubscriptionURL string

	Sources rules.Sources
	Regions RegionLookup

	// Validate runs the sing-box option parser over the output.
	Validate bool
}

// Builder renders a Request into a client configuration.
type Builder interface {
	Target() Target
	Build(ctx context.Context, req *Request) ([]byte, error)
}

type Factory func() Builder

var registry = make(map[Target]Factory)

func Register(target Target, factory Factory) {
	registry[target] = factory
}

func Get(target Target) (Builder, error) {
	factory, ok := registry[target]
	if !ok {
		return nil, fmt.Errorf("builder '%s' not found", target)
	}
	return factory(), nil
}

// Targets lists the registered targets.
func Targets() []Target {
	out := make([]Target, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
