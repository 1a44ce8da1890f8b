package file

import (
	"context"
	"fmt"
	"os"

	"sublink/internal/collectors"
	"sublink/internal/parser"
)

// Collector reads links from a local text file, one per line.
type Collector struct{}

func (c *Collector) Collect(ctx context.Context, config map[string]interface{}) ([]string, error) {
	path, _ := config["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("missing 'path' in collector config")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read links file: %w", err)
	}
	return parser.SplitLines(string(data)), nil
}

func init() {
	collectors.Register("file", func() collectors.Collector { return &Collector{} })
}
