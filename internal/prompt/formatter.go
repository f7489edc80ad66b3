package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Result is a rendered prompt ready to be sent to the agent.
type Result struct {
	Message          string
	DecisionServices *bool
}

// Find returns the path of the named template. Every directory is searched
// and later directories take precedence.
func Find(name string, dirs []string) (string, error) {
	file := name
	if !strings.HasSuffix(file, ".toml") {
		file += ".toml"
	}

	var found string
	for _, dir := range dirs {
		candidate := filepath.Join(dir, file)
		if _, err := os.Stat(candidate); err == nil {
			found = candidate
		}
	}
	if found == "" {
		return "", fmt.Errorf("prompt file '%s' not found in any of the prompt directories: %v", file, dirs)
	}
	return found, nil
}

// Format renders message through the named template. Without a name the
// message is returned unchanged.
func Format(message, name string, dirs, args []string) (*Result, error) {
	if name == "" {
		return &Result{Message: message}, nil
	}

	path, err := Find(name, dirs)
	if err != nil {
		return nil, err
	}
	tmpl, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("error loading prompt file: %w", err)
	}

	argMap, err := ParseArgs(args)
	if err != nil {
		return nil, fmt.Errorf("error processing arguments: %w", err)
	}

	replacements := make(map[string]string, len(argMap)+1)
	for key, value := range argMap {
		replacements[key] = value
	}
	replacements["input"] = message

	user := tmpl.User
	for key, value := range replacements {
		user = strings.ReplaceAll(user, "{{"+key+"}}", value)
	}

	return &Result{Message: user, DecisionServices: tmpl.DecisionServices}, nil
}

// ParseArgs turns key:value arguments into a map. A colon inside the value may
// be escaped as \:. The key "input" is reserved for the message itself.
func ParseArgs(args []string) (map[string]string, error) {
	result := make(map[string]string)
	for _, arg := range args {
		// Handle quoted values
		arg = strings.TrimSpace(arg)
		if len(arg) >= 2 && strings.HasPrefix(arg, `"`) && strings.HasSuffix(arg, `"`) {
			arg = arg[1 : len(arg)-1]
		}

		key, value, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("invalid argument format: %s. Expected format: key:value", arg)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			return nil, fmt.Errorf("invalid argument format: %s. Key must not be empty", arg)
		}

		value = strings.ReplaceAll(value, `\:`, ":")
		value = strings.ReplaceAll(value, `\"`, `"`)

		if key == "input" {
			return nil, fmt.Errorf("'input' is a reserved keyword and cannot be used as a key")
		}
		result[key] = value
	}
	return result, nil
}
