package truth

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// isJSON reports whether path names a JSON document. JSON indented with tabs
// is not valid YAML, so such files never go through the YAML decoder.
func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func unmarshal(path string, raw []byte, v any) error {
	if isJSON(path) {
		return json.Unmarshal(raw, v)
	}
	return yaml.Unmarshal(raw, v)
}
