package config

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// EnsureConfigUpdated adds settings introduced by newer versions to an
// existing config file, keeping the values already set. It returns the keys
// that were added.
func EnsureConfigUpdated(configPath string) ([]string, error) {
	cfg := CreateDefaultConfig()
	md, err := toml.DecodeFile(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %v: %w", configPath, err)
	}

	known, err := defaultKeys()
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, key := range known {
		if !md.IsDefined(strings.Split(key, ".")...) {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}

	if err := SaveConfig(cfg, configPath); err != nil {
		return nil, fmt.Errorf("failed to update config: %w", err)
	}
	return missing, nil
}

// defaultKeys lists every "section.key" a freshly written config contains.
func defaultKeys() ([]string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(CreateDefaultConfig()); err != nil {
		return nil, err
	}

	var raw map[string]any
	if _, err := toml.Decode(buf.String(), &raw); err != nil {
		return nil, err
	}

	var keys []string
	for section, v := range raw {
		table, ok := v.(map[string]any)
		if !ok {
			keys = append(keys, section)
			continue
		}
		for key := range table {
			keys = append(keys, section+"."+key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
