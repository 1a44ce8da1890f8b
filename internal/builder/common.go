package builder

import (
	"encoding/json"
	"fmt"
)

// cloneDocument deep-copies a base config so builds never mutate the stored
// document. Values round-trip through JSON, which is how they were stored.
func cloneDocument(doc map[string]interface{}) (map[string]interface{}, error) {
	if doc == nil {
		return nil, nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("base config is not serialisable: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// asMap returns doc[key] as an object, creating it when absent. A present
// value of another type is a format error.
func asMap(doc map[string]interface{}, key string) (map[string]interface{}, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		m := make(map[string]interface{})
		doc[key] = m
		return m, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%q must be an object, got %T", key, v)
	}
	return m, nil
}

// asList returns doc[key] as an array; absent means empty.
func asList(doc map[string]interface{}, key string) ([]interface{}, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return nil, nil
	}
	l, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%q must be an array, got %T", key, v)
	}
	return l, nil
}

// fieldValues collects a string field from every object in a list.
func fieldValues(list []interface{}, field string) []string {
	var out []string
	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok {
			if s, ok := m[field].(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func toInterfaces(list []string) []interface{} {
	out := make([]interface{}, len(list))
	for i, s := range list {
		out[i] = s
	}
	return out
}

// nodeFields renders a struct through its JSON tags into a generic object.
func nodeFields(v interface{}) map[string]interface{} {
	b, _ := json.Marshal(v)
	var m map[string]interface{}
	_ = json.Unmarshal(b, &m)
	return m
}
