package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Profile is the optional YAML overlay on top of environment defaults:
// the artifact root, whether outbound transport must be HTTPS-only, and
// the raw JSON Schema text for each action type's parameters.
type Profile struct {
	ArtifactRoot      string            `yaml:"artifact_root,omitempty"`
	HTTPSOnly         *bool             `yaml:"https_only,omitempty"`
	TransportEndpoint string            `yaml:"transport_endpoint,omitempty"`
	ActionSchemas     map[string]string `yaml:"action_schemas,omitempty"`
	AllowedActions    []string          `yaml:"allowed_actions,omitempty"`
	DeniedActions     []string          `yaml:"denied_actions,omitempty"`
}

// LoadProfile reads and parses a YAML profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read profile %q: %w", path, err)
	}
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("config: parse profile %q: %w", path, err)
	}
	return &profile, nil
}

// Apply overlays a loaded Profile onto c, letting YAML-specified fields
// override the environment defaults that were already in c. The merged
// result is re-validated before returning — if the merged HTTPSOnly is
// set while TransportEndpoint is not an https:// URL, Apply returns an
// error rather than letting that combination take effect.
func (c *Config) Apply(p *Profile) error {
	if p.ArtifactRoot != "" {
		c.ArtifactRoot = p.ArtifactRoot
	}
	if p.HTTPSOnly != nil {
		c.HTTPSOnly = *p.HTTPSOnly
	}
	if p.TransportEndpoint != "" {
		c.TransportEndpoint = p.TransportEndpoint
	}
	return c.Validate()
}

// ActionPolicy is the compiled allowlist/denylist plus the per-action
// parameter schema set a profile declares, ready for validation.
type ActionPolicy struct {
	allowed map[string]bool
	denied  map[string]bool
	schemas map[string]*jsonschema.Schema
}

// CompileActionPolicy compiles every action schema in p and builds the
// allow/deny sets. A compile failure for any one schema fails the whole
// profile load — a half-compiled policy is worse than none.
func CompileActionPolicy(p *Profile) (*ActionPolicy, error) {
	policy := &ActionPolicy{
		allowed: make(map[string]bool, len(p.AllowedActions)),
		denied:  make(map[string]bool, len(p.DeniedActions)),
		schemas: make(map[string]*jsonschema.Schema, len(p.ActionSchemas)),
	}
	for _, a := range p.AllowedActions {
		policy.allowed[a] = true
	}
	for _, a := range p.DeniedActions {
		policy.denied[a] = true
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	for actionType, schemaText := range p.ActionSchemas {
		url := fmt.Sprintf("https://guardcore.local/schemas/%s.json", actionType)
		if err := compiler.AddResource(url, strings.NewReader(schemaText)); err != nil {
			return nil, fmt.Errorf("config: load schema for %q: %w", actionType, err)
		}
		compiled, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("config: compile schema for %q: %w", actionType, err)
		}
		policy.schemas[actionType] = compiled
	}
	return policy, nil
}

// IsAllowed reports whether actionType may be dispatched under this
// profile's configured allow/deny lists: present on the allowlist (when
// one is configured) and absent from the denylist. Denylist always wins
// over allowlist. This is a secondary, opt-in narrowing on top of the
// core's hardcoded action.Validate gate, never a substitute for it — an
// empty allowlist here means "no additional restriction beyond the
// hardcoded one", not "everything is permitted". A deployment with no
// profile at all still runs under the hardcoded gate alone.
func (p *ActionPolicy) IsAllowed(actionType string) bool {
	if p.denied[actionType] {
		return false
	}
	if len(p.allowed) == 0 {
		return true
	}
	return p.allowed[actionType]
}

// ValidateParameters validates params against actionType's compiled
// schema, if one is configured. Action types with no configured schema
// pass through unchecked — a profile that wants strict validation must
// say so explicitly.
func (p *ActionPolicy) ValidateParameters(actionType string, params map[string]interface{}) error {
	schema, ok := p.schemas[actionType]
	if !ok {
		return nil
	}
	if err := schema.Validate(params); err != nil {
		return fmt.Errorf("config: parameters for %q failed schema validation: %w", actionType, err)
	}
	return nil
}
