package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// expandEnvVar expands an environment variable reference in the given value
// Supports both $VAR and ${VAR} syntax
// If the environment variable is not set, returns empty string.
func expandEnvVar(value string) string {
	// Not an environment variable reference, return as-is
	if !strings.HasPrefix(value, "$") {
		return value
	}

	var envVarName string
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		envVarName = value[2 : len(value)-1]
	} else {
		envVarName = strings.TrimPrefix(value, "$")
	}

	return os.Getenv(envVarName)
}

// Dir returns the directory of the config file in use, made absolute.
// Without a config file it falls back to $HOME/.config/rulechat
func Dir(v *viper.Viper) (string, error) {
	configFile := v.ConfigFileUsed()
	if configFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		return filepath.Join(home, ".config", "rulechat"), nil
	}

	configDir := filepath.Dir(configFile)
	if !filepath.IsAbs(configDir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current working directory: %w", err)
		}
		configDir = filepath.Join(cwd, configDir)
	}
	return configDir, nil
}

// ResolvePath converts a relative path to absolute path if needed.
// Relative paths are resolved against the config file directory, or the
// working directory when no config file is in use.
func ResolvePath(v *viper.Viper, path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}

	var base string
	if v.ConfigFileUsed() == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("error getting current working directory: %w", err)
		}
		base = cwd
	} else {
		dir, err := Dir(v)
		if err != nil {
			return "", err
		}
		base = dir
	}

	return filepath.Join(base, path), nil
}

// ReadLayered reads config.toml from the first of systemDirs that has one and
// merges the one in userDir over it. Missing files are skipped. The last file
// read becomes v's config file, so relative paths resolve next to it.
func ReadLayered(v *viper.Viper, systemDirs []string, userDir string) ([]string, error) {
	v.SetConfigType("toml")

	var candidates []string
	for _, dir := range systemDirs {
		path := filepath.Join(dir, "config.toml")
		if isFile(path) {
			candidates = append(candidates, path)
			break
		}
	}
	if path := filepath.Join(userDir, "config.toml"); isFile(path) {
		candidates = append(candidates, path)
	}

	var used []string
	for _, path := range candidates {
		if err := mergeFile(v, path); err != nil {
			return used, err
		}
		used = append(used, path)
	}
	if len(used) > 0 {
		v.SetConfigFile(used[len(used)-1])
	}
	return used, nil
}

func mergeFile(v *viper.Viper, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()
	if err := v.MergeConfig(f); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
