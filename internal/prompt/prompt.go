package prompt

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Template represents the structure of a TOML prompt file
type Template struct {
	User             string `toml:"user"`
	DecisionServices *bool  `toml:"decision_services,omitempty"` // Overrides the decision-services default when set
}

// Load loads a prompt file and returns its contents
func Load(filePath string) (*Template, error) {
	var tmpl Template
	md, err := toml.DecodeFile(filePath, &tmpl)
	if err != nil {
		return nil, fmt.Errorf("error decoding prompt file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in prompt file: %v", undecoded)
	}
	if tmpl.User == "" {
		return nil, fmt.Errorf("prompt file %s has no user template", filePath)
	}
	return &tmpl, nil
}
