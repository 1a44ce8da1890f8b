package publishers

import (
	"encoding/base64"
	"fmt"
	"strings"

	"sublink/internal/geoip"
	"sublink/internal/logger"
	"sublink/internal/model"
)

// Payload returns the bytes to publish for an artifact.
func Payload(a Artifact, config map[string]interface{}) ([]byte, error) {
	if a.Target != TargetLinks {
		return a.Data, nil
	}
	text, err := GenerateSubscriptionPayload(a.Nodes, config)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// GenerateSubscriptionPayload renders nodes as share links, one per line.
// Params: base64 (bool) encodes the whole body, flag (bool) prefixes each
// remark with the server's country flag when the GeoIP database is loaded.
func GenerateSubscriptionPayload(nodes []model.Node, config map[string]interface{}) (string, error) {
	withFlag, _ := config["flag"].(bool)
	seen := make(map[string]bool)

	var lines []string
	for _, n := range nodes {
		h := n.Hash()
		if seen[h] {
			logger.Log.Debugf("Publisher dropped duplicate node %s", n.Tag)
			continue
		}
		seen[h] = true

		if withFlag {
			if code, ok := geoip.Default().Country(n.Server); ok {
				n.Tag = fmt.Sprintf("%s %s", geoip.Flag(code), n.Tag)
			}
		}
		lines = append(lines, n.ToURI())
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("no nodes to publish")
	}

	finalText := strings.Join(lines, "\n")

	useBase64, _ := config["base64"].(bool)
	if useBase64 {
		return base64.StdEncoding.EncodeToString([]byte(finalText)), nil
	}

	return finalText, nil
}

// FileName is the artifact's default file name.
func FileName(a Artifact) string {
	switch a.Target {
	case "clash":
		return a.Name + ".yaml"
	case "surge":
		return a.Name + ".conf"
	case TargetLinks:
		return a.Name + ".txt"
	}
	return a.Name + ".json"
}
