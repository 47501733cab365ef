package server

import (
	"errors"
	"sort"
	"strings"

	"github.com/daveleo/exview-aio-protocol-tool/internal/certify"
	"github.com/daveleo/exview-aio-protocol-tool/internal/policy"
	"github.com/daveleo/exview-aio-protocol-tool/internal/transport"
	"github.com/daveleo/exview-aio-protocol-tool/internal/truth"
)

// Options configures server creation.
type Options struct {
	// ReportsDir receives every report, journal and manifest written by a run.
	ReportsDir string
	Dataset    *truth.Dataset
	Exclusions truth.Exclusions
	Target     transport.Options
	// Run holds the timing and policy defaults; requests may override the
	// profile and the power and closed-loop switches.
	Run     certify.Options
	Formats []string
	// SigningKey, when set, is the PEM RSA key that signs each run manifest.
	SigningKey []byte
}

func (o Options) validate() error {
	if o.Dataset == nil {
		return errors.New("server: no truth dataset")
	}
	if strings.TrimSpace(o.ReportsDir) == "" {
		return errors.New("server: reports dir is empty")
	}
	if strings.TrimSpace(o.Target.Target) == "" {
		return errors.New("server: no device target")
	}
	return nil
}

// Profile describes one certification profile.
type Profile struct {
	ID         string            `json:"id"`
	Default    bool              `json:"default,omitempty"`
	Exclusions []truth.Exclusion `json:"exclusions,omitempty"`
	Quirks     []policy.Quirk    `json:"quirks,omitempty"`
}

// Profiles lists the default profile plus every profile named in the
// exclusions, sorted with the default first.
func Profiles(ex truth.Exclusions, defaultProfile string) []Profile {
	if defaultProfile == "" {
		defaultProfile = certify.DefaultProfile
	}
	ids := map[string]bool{defaultProfile: true}
	for _, p := range ex.Profiles() {
		ids[p] = true
	}
	out := make([]Profile, 0, len(ids))
	for id := range ids {
		p := Profile{ID: id, Default: id == defaultProfile, Quirks: policy.Quirks(id)}
		for code, reason := range ex[id] {
			p.Exclusions = append(p.Exclusions, truth.Exclusion{Code: code, Reason: reason})
		}
		sort.Slice(p.Exclusions, func(i, j int) bool { return p.Exclusions[i].Code < p.Exclusions[j].Code })
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Default != out[j].Default {
			return out[i].Default
		}
		return out[i].ID < out[j].ID
	})
	return out
}
