package truth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/daveleo/exview-aio-protocol-tool/internal/frame"
)

// DefaultProfile is used when an exclusions file is a bare list.
const DefaultProfile = "exview-aio"

// Exclusion disables one code for a profile.
type Exclusion struct {
	Code   string `yaml:"code" json:"code"`
	Reason string `yaml:"reason" json:"reason"`
}

// Exclusions maps profile name to disabled codes.
type Exclusions map[string]map[string]string

// Lookup returns the exclusion reason for code under profile.
func (e Exclusions) Lookup(profile, code string) (string, bool) {
	if e == nil {
		return "", false
	}
	codes, ok := e[profile]
	if !ok {
		return "", false
	}
	reason, ok := codes[frame.NormalizeCode(code)]
	return reason, ok
}

// Profiles lists profile names present in the file.
func (e Exclusions) Profiles() []string {
	out := make([]string, 0, len(e))
	for p := range e {
		out = append(out, p)
	}
	return out
}

// LoadExclusions reads either {profiles: {name: [{code, reason}]}} or a bare
// list of {code, reason}, which applies to DefaultProfile.
func LoadExclusions(path string) (Exclusions, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read exclusions: %w", err)
	}
	if isJSON(path) {
		return parseExclusionsJSON(raw)
	}
	return ParseExclusions(raw)
}

func parseExclusionsJSON(raw []byte) (Exclusions, error) {
	out := Exclusions{}
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0:
		return out, nil
	case trimmed[0] == '[':
		var list []Exclusion
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("%w: exclusions: %v", ErrMalformed, err)
		}
		if err := out.add(DefaultProfile, list); err != nil {
			return nil, err
		}
	default:
		var doc struct {
			Profiles map[string][]Exclusion `json:"profiles"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("%w: exclusions: %v", ErrMalformed, err)
		}
		for name, list := range doc.Profiles {
			if err := out.add(strings.TrimSpace(name), list); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func ParseExclusions(raw []byte) (Exclusions, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("%w: exclusions: %v", ErrMalformed, err)
	}
	out := Exclusions{}
	if len(node.Content) == 0 {
		return out, nil
	}
	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var list []Exclusion
		if err := root.Decode(&list); err != nil {
			return nil, fmt.Errorf("%w: exclusions: %v", ErrMalformed, err)
		}
		if err := out.add(DefaultProfile, list); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		var doc struct {
			Profiles map[string][]Exclusion `yaml:"profiles"`
		}
		if err := root.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: exclusions: %v", ErrMalformed, err)
		}
		for name, list := range doc.Profiles {
			if err := out.add(strings.TrimSpace(name), list); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: exclusions root must be a list or mapping", ErrMalformed)
	}
	return out, nil
}

func (e Exclusions) add(profile string, list []Exclusion) error {
	codes := e[profile]
	if codes == nil {
		codes = make(map[string]string)
		e[profile] = codes
	}
	for _, x := range list {
		code := frame.NormalizeCode(x.Code)
		if code == "" {
			return fmt.Errorf("%w: exclusion without code in profile %q", ErrMalformed, profile)
		}
		reason := strings.TrimSpace(x.Reason)
		if reason == "" {
			reason = "excluded"
		}
		codes[code] = reason
	}
	return nil
}
