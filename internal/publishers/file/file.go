package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"sublink/internal/logger"
	"sublink/internal/publishers"
)

// Publisher writes each artifact to <dir>/<name>.<ext>. With a single
// artifact, "path" names the file directly.
type Publisher struct{}

func (p *Publisher) Publish(_ context.Context, artifacts []publishers.Artifact, config map[string]interface{}) error {
	dir, _ := config["dir"].(string)
	path, _ := config["path"].(string)
	if dir == "" && path == "" {
		return fmt.Errorf("file publisher requires dir or path")
	}
	if path != "" && len(artifacts) > 1 {
		return fmt.Errorf("file publisher 'path' takes one artifact, got %d (use 'dir')", len(artifacts))
	}

	for _, a := range artifacts {
		payload, err := publishers.Payload(a, config)
		if err != nil {
			return fmt.Errorf("%s: %w", a.Name, err)
		}
		target := path
		if target == "" {
			target = filepath.Join(dir, publishers.FileName(a))
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
		}
		// readers never observe a partial file
		tmp := target + ".tmp"
		if err := os.WriteFile(tmp, payload, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", tmp, err)
		}
		if err := os.Rename(tmp, target); err != nil {
			return fmt.Errorf("failed to move %s into place: %w", target, err)
		}
		logger.Log.Infof("💾 Wrote %s (%d bytes)", target, len(payload))
	}
	return nil
}

func init() {
	publishers.Register("file", func() publishers.Publisher { return &Publisher{} })
}
