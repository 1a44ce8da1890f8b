package builder

import (
	"context"
	"fmt"

	"github.com/sagernet/sing-box/include"
	"github.com/sagernet/sing-box/option"
	sJson "github.com/sagernet/sing/common/json"
)

// ValidateSingbox parses raw through sing-box's own option decoder, with the
// protocol registries injected, so unknown fields and types are rejected.
func ValidateSingbox(ctx context.Context, raw []byte) error {
	var opts option.Options
	if err := sJson.UnmarshalContext(include.Context(ctx), raw, &opts); err != nil {
		return fmt.Errorf("sing-box rejected config: %w", err)
	}
	return nil
}
