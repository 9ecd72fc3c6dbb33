// Package rulecfg loads direct-path bindings from a declarative YAML file,
// so the wiring of rules to record fields can live next to the data it
// validates instead of in code:
//
//	version: "1"
//	bindings:
//	  - rule: check_iban
//	    on_fail: warn
//	    params:
//	      iban: banking.iban
//	      holder: banking.holder
//
// Rules themselves stay in code; the file references them by name through
// the registry passed to Build.
package rulecfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ruleflow/ruleflow"
)

// File is the parsed bindings file.
type File struct {
	Version  string          `yaml:"version"`
	Bindings []BindingConfig `yaml:"bindings"`
}

// BindingConfig declares one path binding: the rule it references, the
// failure mode and the parameter-to-path mapping.
type BindingConfig struct {
	Rule   string            `yaml:"rule"`
	OnFail string            `yaml:"on_fail,omitempty"`
	Params map[string]string `yaml:"params"`
}

// Parse decodes a bindings file from raw YAML.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("rulecfg: failed to parse bindings file: %w", err)
	}
	for i, b := range f.Bindings {
		if b.Rule == "" {
			return nil, fmt.Errorf("rulecfg: binding #%d has no rule name", i+1)
		}
		switch b.OnFail {
		case "", "error", "warn", "warning":
		default:
			return nil, fmt.Errorf("rulecfg: binding %q has unknown on_fail action %q", b.Rule, b.OnFail)
		}
	}
	return &f, nil
}

// Load reads and parses a bindings file from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rulecfg: failed to read bindings file: %w", err)
	}
	return Parse(data)
}

// Build compiles the declared bindings against a registry of rules by name.
// Unknown rule names and mappings that do not fit the rule's parameters are
// configuration errors.
func (f *File) Build(rules map[string]*ruleflow.Rule) ([]ruleflow.Binding, error) {
	bindings := make([]ruleflow.Binding, 0, len(f.Bindings))
	for _, cfg := range f.Bindings {
		rule, ok := rules[cfg.Rule]
		if !ok {
			return nil, fmt.Errorf("rulecfg: unknown rule %q", cfg.Rule)
		}
		var opts []ruleflow.BindingOption
		if cfg.OnFail == "warn" || cfg.OnFail == "warning" {
			opts = append(opts, ruleflow.AsWarning())
		}
		binding, err := ruleflow.NewPathBinding(rule, cfg.Params, opts...)
		if err != nil {
			return nil, fmt.Errorf("rulecfg: binding for rule %q: %w", cfg.Rule, err)
		}
		bindings = append(bindings, binding)
	}
	return bindings, nil
}
