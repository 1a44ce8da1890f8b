package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sublink/internal/builder"
)

// BaseConfigTTL is how long uploaded base configs are kept.
const BaseConfigTTL = 30 * 24 * time.Hour

var ErrInvalidConfig = errors.New("invalid base config")

// SaveBaseConfig validates an uploaded base config and stores it as JSON
// under "<type>_<code>". Clash configs may be YAML.
func SaveBaseConfig(ctx context.Context, s Store, typ, content string) (string, error) {
	target, err := builder.ParseTarget(typ)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	doc, err := decodeBaseConfig(target, content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	id := string(target) + "_" + NewCode(8)
	if err := s.Put(ctx, id, string(raw), BaseConfigTTL); err != nil {
		return "", fmt.Errorf("failed to save base config: %w", err)
	}
	return id, nil
}

func decodeBaseConfig(target builder.Target, content string) (map[string]interface{}, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("empty content")
	}
	var doc map[string]interface{}
	if target == builder.TargetClash {
		// JSON is valid YAML, so one decoder covers both
		if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	} else if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if doc == nil {
		return nil, errors.New("config must be an object")
	}
	return doc, nil
}

// LoadBaseConfig fetches a stored base config. ok is false when the id is
// unknown or expired.
func LoadBaseConfig(ctx context.Context, s Store, id string) (map[string]interface{}, bool, error) {
	raw, ok, err := s.Get(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, false, fmt.Errorf("stored config %s is corrupt: %w", id, err)
	}
	return doc, true, nil
}

// BaseConfigTarget reports the target encoded in a base config id.
func BaseConfigTarget(id string) (builder.Target, bool) {
	prefix, _, ok := strings.Cut(id, "_")
	if !ok {
		return "", false
	}
	t, err := builder.ParseTarget(prefix)
	return t, err == nil
}
