package builder

import (
	"errors"
	"fmt"
)

// ErrNoNodes means nothing renderable was left after parsing and filtering.
var ErrNoNodes = errors.New("no nodes available")

// BuildError is a format failure: the caller supplied a base config, rule
// selection or custom rule list the builder cannot use.
type BuildError struct {
	Target Target
	Stage  string // "base config", "rules", "custom rules", "render", "validate"
	Err    error
}

func (e *BuildError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("build failed at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("build %s failed at %s: %v", e.Target, e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

func buildErr(target Target, stage string, err error) *BuildError {
	return &BuildError{Target: target, Stage: stage, Err: err}
}
